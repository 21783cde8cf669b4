package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/registry"
)

// delivery tracks one outbox row from resolution to its recorded outcome.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	pending  publishResult
	err      error
}

func (d *delivery) topic() string {
	if d.resolved == nil {
		return ""
	}
	return d.resolved.Descriptor.Topic
}

// send resolves the row and starts the publish without waiting for the ack.
func (s *Service) send(ctx context.Context, event models.OutboxEvent) *delivery {
	d := &delivery{event: event}
	d.resolved, d.err = s.registry.Resolve(event)
	if d.err != nil {
		return d
	}
	pub := s.publisherFactory(d.topic())
	if pub == nil {
		d.err = registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", d.topic()))
		return d
	}
	d.pending = pub.Publish(ctx, message(event, d.resolved))
	if d.pending == nil {
		d.err = registry.NewNonRetryableError(fmt.Errorf("publisher for topic %q returned no result", d.topic()))
	}
	return d
}

func (d *delivery) await(ctx context.Context) {
	if d.err != nil || d.pending == nil {
		return
	}
	_, d.err = d.pending.Get(ctx)
}

// message publishes the stored envelope unchanged; routing metadata rides in
// attributes so subscribers can filter without decoding the body.
func message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// settle records the delivery: published, retried later, or dead-lettered
// when the failure is permanent or the attempt budget is spent.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, d *delivery) error {
	eventType := string(d.event.EventType)
	logCtx := s.logg.WithFields(ctx, s.fields(d))

	if d.err == nil {
		if err := s.repo.MarkPublishedTx(tx, d.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, err)
		}
		s.count(func(m publishMetrics) { m.IncPublished(eventType) })
		s.logg.Info(logCtx, "outbox.published")
		return nil
	}

	var permanent registry.NonRetryableError
	if errors.As(d.err, &permanent) {
		return s.deadLetter(logCtx, tx, d, enums.OutboxDLQReasonNonRetryable, d.err)
	}
	if d.event.AttemptCount+1 >= s.maxAttempts {
		return s.deadLetter(logCtx, tx, d, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", d.event.AttemptCount+1, d.err))
	}

	retryAt := time.Now().Add(retryBackoff(d.event.AttemptCount + 1))
	s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
		"error":    d.err.Error(),
		"retry_at": retryAt.UTC().Format(time.RFC3339),
	}), "outbox.publish_retry")
	s.count(func(m publishMetrics) { m.IncFailed(eventType) })
	if err := s.repo.MarkFailedTx(tx, d.event.ID, d.err, retryAt); err != nil {
		return fmt.Errorf("mark failed %s: %w", d.event.ID, err)
	}
	return nil
}

const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 5 * time.Minute
)

// retryBackoff doubles from retryBaseDelay per failed attempt, capped at retryMaxDelay.
func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := retryBaseDelay
	for i := 1; i < attempt && delay < retryMaxDelay; i++ {
		delay *= 2
	}
	return min(delay, retryMaxDelay)
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, d *delivery, reason enums.OutboxDLQErrorReason, cause error) error {
	reasonText := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       d.event.ID,
		EventType:     d.event.EventType,
		AggregateType: d.event.AggregateType,
		AggregateID:   d.event.AggregateID,
		Payload:       d.event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &reasonText,
		AttemptCount:  d.event.AttemptCount + 1,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", d.event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, d.event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", d.event.ID, err)
	}
	s.count(func(m publishMetrics) { m.IncDeadLettered(string(d.event.EventType), string(reason)) })
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"error": reasonText, "dlq_reason": reason}), "outbox.dead_lettered")
	return nil
}

func (s *Service) count(fn func(publishMetrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *Service) fields(d *delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt":        d.event.AttemptCount + 1,
	}
	if topic := d.topic(); topic != "" {
		fields["topic"] = topic
	}
	if d.resolved != nil && d.resolved.Envelope.EventID != "" {
		fields["event_id"] = d.resolved.Envelope.EventID
	}
	return fields
}
