package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/internal/analytics/router"
	"github.com/angelmondragon/campusaid-backend/internal/analytics/types"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/idempotency"
)

const analyticsConsumerName = "analytics"

// Handler defines how to process lifecycle envelopes.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts functions to the Handler interface.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

// Handle calls the underlying function.
func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type idempotencyChecker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type consumerMetrics interface {
	IncProcessed(eventType string)
	IncDuplicate(eventType string)
}

// Service consumes lifecycle events from Pub/Sub while honoring Redis idempotency.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	manager      idempotencyChecker
	metrics      consumerMetrics
	logg         *logger.Logger
}

// NewService creates a new analytics worker service. metrics may be nil.
func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, metrics consumerMetrics, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if handler == nil {
		return nil, errors.New("analytics handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	return &Service{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		metrics:      metrics,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming lifecycle messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}

	envelope, err := buildEnvelope(msg)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid analytics envelope")
		return processResult{}
	}
	fields["event_id"] = envelope.EventID
	fields["event_type"] = envelope.EventType
	fields["aggregate_type"] = envelope.AggregateType
	fields["aggregate_id"] = envelope.AggregateID
	fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	logCtx := s.logg.WithFields(ctx, fields)

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}

	state, err := s.manager.Claim(logCtx, analyticsConsumerName, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	switch state {
	case idempotency.Done:
		if s.metrics != nil {
			s.metrics.IncDuplicate(string(envelope.EventType))
		}
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	case idempotency.InFlight:
		s.logg.Info(logCtx, "event in flight on another consumer")
		return processResult{nack: true}
	}

	if err := s.handler.Handle(logCtx, *envelope); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) || errors.Is(err, router.ErrMalformedPayload) {
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping analytics event")
			s.complete(logCtx, eventID)
			return processResult{}
		}
		s.logg.Error(logCtx, "handler error", err)
		if relErr := s.manager.Release(logCtx, analyticsConsumerName, eventID); relErr != nil {
			s.logg.Error(logCtx, "idempotency release failed", relErr)
		}
		return processResult{nack: true}
	}

	s.complete(logCtx, eventID)
	if s.metrics != nil {
		s.metrics.IncProcessed(string(envelope.EventType))
	}
	s.logg.Info(logCtx, "analytics event handled")
	return processResult{}
}

// complete records the event as done. A failure leaves the lease to expire; the
// message is still acked.
func (s *Service) complete(ctx context.Context, eventID uuid.UUID) {
	if err := s.manager.Complete(ctx, analyticsConsumerName, eventID); err != nil {
		s.logg.Error(ctx, "idempotency complete failed", err)
	}
}

func buildEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(attribute(msg, "event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}

	aggregateType, err := enums.ParseOutboxAggregateType(attribute(msg, "aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}

	aggregateID := attribute(msg, "aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if created := attribute(msg, "created_at"); created != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, created); err == nil {
				occurredAt = parsed
			}
		}
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attribute(msg, "event_id")
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	envelope := &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       stored.Version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}
	if stored.Actor != nil && stored.Actor.UserID != uuid.Nil {
		envelope.ActorID = stored.Actor.UserID.String()
	}
	return envelope, nil
}

func attribute(msg *gcppubsub.Message, key string) string {
	return strings.TrimSpace(msg.Attributes[key])
}
