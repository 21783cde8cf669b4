package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry. Every lifecycle event goes to the lifecycle topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.LifecycleTopic == "" {
		return nil, fmt.Errorf("lifecycle topic is required")
	}
	topic := cfg.LifecycleTopic

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventRequestCreated,
			AggregateType:  enums.AggregateHelpRequest,
			PayloadFactory: func() any { return &payloads.RequestCreatedEvent{} },
		},
		{
			EventType:      enums.EventRequestStatusChanged,
			AggregateType:  enums.AggregateHelpRequest,
			PayloadFactory: func() any { return &payloads.RequestStatusChangedEvent{} },
		},
		{
			EventType:      enums.EventOfferCreated,
			AggregateType:  enums.AggregateOffer,
			PayloadFactory: func() any { return &payloads.OfferCreatedEvent{} },
		},
		{
			EventType:      enums.EventOfferAccepted,
			AggregateType:  enums.AggregateOffer,
			PayloadFactory: func() any { return &payloads.OfferAcceptedEvent{} },
		},
		{
			EventType:      enums.EventOfferDeclined,
			AggregateType:  enums.AggregateOffer,
			PayloadFactory: func() any { return &payloads.OfferDeclinedEvent{} },
		},
		{
			EventType:      enums.EventProfileCreated,
			AggregateType:  enums.AggregateProfile,
			PayloadFactory: func() any { return &payloads.ProfileCreatedEvent{} },
		},
	} {
		desc.Topic = topic
		reg.register(desc)
	}
	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Descriptor returns the registered descriptor for eventType.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// DecoderRegistry builds a consumer-side decoder registry from the same descriptors.
func (r *EventRegistry) DecoderRegistry(version int) *DecoderRegistry {
	decoders := NewDecoderRegistry()
	for eventType, desc := range r.entries {
		factory := desc.PayloadFactory
		decoders.Register(eventType, version, func(payload json.RawMessage) (any, error) {
			target := factory()
			if err := json.Unmarshal(payload, target); err != nil {
				return nil, err
			}
			return target, nil
		})
	}
	return decoders
}
