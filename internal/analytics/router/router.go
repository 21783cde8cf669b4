package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/internal/analytics/types"
	"github.com/angelmondragon/campusaid-backend/internal/analytics/writer"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/registry"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	ErrMalformedPayload     = errors.New("malformed analytics payload")
)

const defaultEnvelopeVersion = 1

// Writer delivers lifecycle rows to the warehouse.
type Writer interface {
	InsertLifecycle(ctx context.Context, row types.LifecycleEventRow) error
}

// Router decodes lifecycle payloads and turns each event into one warehouse row.
type Router struct {
	writer   Writer
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

// NewRouter wires the writer with the decoders registered for lifecycle events.
func NewRouter(w Writer, decoders *registry.DecoderRegistry, logg *logger.Logger) (*Router, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	if decoders == nil {
		return nil, errors.New("decoder registry is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{writer: w, decoders: decoders, logg: logg}, nil
}

// Handle decodes the envelope payload and inserts the resulting row.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	if !envelope.EventType.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if !envelope.HasPayload() {
		return fmt.Errorf("%w: %s has no data", ErrMalformedPayload, envelope.EventType)
	}

	version := envelope.Version
	if version <= 0 {
		version = defaultEnvelopeVersion
	}
	decoded, err := r.decoders.Decode(envelope.EventType, version, envelope.Payload)
	if errors.Is(err, registry.ErrNoDecoder) {
		return fmt.Errorf("%w: %v", ErrUnsupportedEventType, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	row, err := BuildRow(envelope, decoded)
	if err != nil {
		return err
	}
	if err := r.writer.InsertLifecycle(ctx, row); err != nil {
		return fmt.Errorf("insert lifecycle row: %w", err)
	}
	return nil
}

// BuildRow flattens a decoded lifecycle payload into the warehouse schema.
func BuildRow(envelope types.Envelope, decoded any) (types.LifecycleEventRow, error) {
	payload, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.LifecycleEventRow{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	row := types.LifecycleEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt.UTC(),
		ActorID:       optionalString(envelope.ActorID),
		Payload:       payload,
	}

	switch event := decoded.(type) {
	case *payloads.RequestCreatedEvent:
		row.RequestID = optionalString(event.RequestID.String())
		row.CreatorID = optionalString(event.CreatorID.String())
		row.Category = optionalString(string(event.Category))
	case *payloads.RequestStatusChangedEvent:
		row.RequestID = optionalString(event.RequestID.String())
		row.CreatorID = optionalString(event.CreatorID.String())
		row.FromStatus = optionalString(string(event.From))
		row.ToStatus = optionalString(string(event.To))
	case *payloads.OfferCreatedEvent:
		fillOffer(&row, event.OfferID.String(), event.RequestID.String(), event.HelperID.String(), event.CreatorID.String())
	case *payloads.OfferAcceptedEvent:
		fillOffer(&row, event.OfferID.String(), event.RequestID.String(), event.HelperID.String(), event.CreatorID.String())
	case *payloads.OfferDeclinedEvent:
		fillOffer(&row, event.OfferID.String(), event.RequestID.String(), event.HelperID.String(), event.CreatorID.String())
	case *payloads.ProfileCreatedEvent:
		row.CreatorID = optionalString(event.OwnerID.String())
	default:
		return types.LifecycleEventRow{}, fmt.Errorf("%w: %T", ErrUnsupportedEventType, decoded)
	}
	return row, nil
}

func fillOffer(row *types.LifecycleEventRow, offerID, requestID, helperID, creatorID string) {
	row.OfferID = optionalString(offerID)
	row.RequestID = optionalString(requestID)
	row.HelperID = optionalString(helperID)
	row.CreatorID = optionalString(creatorID)
}

func optionalString(value string) *string {
	if value == "" || value == uuid.Nil.String() {
		return nil
	}
	return &value
}
