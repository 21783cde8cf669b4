package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/registry"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{
				ID:            uuid.New(),
				EventType:     enums.EventOfferAccepted,
				AggregateType: enums.AggregateOffer,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelopePayload(t, "event-one"),
			},
			{
				ID:            uuid.New(),
				EventType:     enums.EventOfferAccepted,
				AggregateType: enums.AggregateOffer,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelopePayload(t, "event-two"),
			},
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "lifecycle-topic",
			AggregateType: enums.AggregateOffer,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.OfferAcceptedEvent{},
	}
	eventRegistry := &fakeRegistry{resolved: resolved}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, eventRegistry, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if !repo.retryAt[0].After(time.Now()) {
		t.Fatalf("expected retry scheduled in the future, got %s", repo.retryAt[0])
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := map[int]time.Duration{
		0:  time.Second,
		1:  time.Second,
		2:  2 * time.Second,
		4:  8 * time.Second,
		9:  256 * time.Second,
		10: 5 * time.Minute,
		40: 5 * time.Minute,
	}
	for attempt, want := range tests {
		if got := retryBackoff(attempt); got != want {
			t.Fatalf("attempt %d: expected %s got %s", attempt, want, got)
		}
	}
}

func TestMessageCarriesRoutingAttributes(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventRequestCreated,
		AggregateType: enums.AggregateHelpRequest,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "created"),
		CreatedAt:     time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC),
	}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "lifecycle-topic", AggregateType: enums.AggregateHelpRequest},
		Envelope:   outbox.PayloadEnvelope{EventID: event.ID.String()},
		Payload:    &payloads.RequestCreatedEvent{},
	}

	msg := message(event, resolved)
	attrs := msg.Attributes
	if attrs["event_type"] != "request.created" || attrs["aggregate_type"] != "help_request" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if attrs["aggregate_id"] != event.AggregateID.String() || attrs["event_id"] != event.ID.String() {
		t.Fatalf("unexpected ids %v", attrs)
	}
	if attrs["created_at"] != "2026-09-03T12:00:00Z" {
		t.Fatalf("unexpected created_at %q", attrs["created_at"])
	}
	if !bytes.Equal(msg.Data, event.Payload) {
		t.Fatal("expected stored envelope published as-is")
	}
}

func TestProcessBatchPublishesBeforeAwaiting(t *testing.T) {
	events := []models.OutboxEvent{
		{ID: uuid.New(), EventType: enums.EventOfferCreated, AggregateType: enums.AggregateOffer, AggregateID: uuid.New(), Payload: mustEnvelopePayload(t, "a")},
		{ID: uuid.New(), EventType: enums.EventOfferCreated, AggregateType: enums.AggregateOffer, AggregateID: uuid.New(), Payload: mustEnvelopePayload(t, "b")},
	}
	pub := &orderingPublisher{}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "lifecycle-topic", AggregateType: enums.AggregateOffer},
		Payload:    &payloads.OfferCreatedEvent{},
	}
	repo := &fakeRepo{events: events}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	want := []string{"publish", "publish", "get", "get"}
	if len(pub.calls) != len(want) {
		t.Fatalf("unexpected calls %v", pub.calls)
	}
	for i := range want {
		if pub.calls[i] != want[i] {
			t.Fatalf("unexpected call order %v", pub.calls)
		}
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected both rows published, got %d", len(repo.published))
	}
}

func TestProcessBatchRecordsMetrics(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOfferCreated,
		AggregateType: enums.AggregateOffer,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "metrics"),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event, event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}, fakePublishResult{err: errors.New("transient")}}}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "lifecycle-topic", AggregateType: enums.AggregateOffer},
		Payload:    &payloads.OfferCreatedEvent{},
	}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, nil)
	recorder := &fakeMetrics{}
	service.metrics = recorder

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if recorder.published["offer.created"] != 1 || recorder.failed["offer.created"] != 1 {
		t.Fatalf("unexpected metrics %+v", recorder)
	}
}

func TestDefaultPublisherFactoryUsesLifecyclePublisher(t *testing.T) {
	client := &fakePubSubClient{}
	cfg := &config.Config{PubSub: config.PubSubConfig{LifecycleTopic: "lifecycle-topic"}}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            &fakeDB{},
		PubSub:        client,
		Repository:    &fakeRepo{},
		Registry:      &fakeRegistry{},
		DLQRepository: &fakeDLQRepo{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if pub := service.publisherFactory("lifecycle-topic"); pub != nil {
		t.Fatal("expected nil publisher when client has none configured")
	}
	if client.lifecycleCalls != 1 {
		t.Fatalf("expected lifecycle publisher lookup, got %d", client.lifecycleCalls)
	}
	service.publisherFactory("other-topic")
	if len(client.named) != 1 || client.named[0] != "other-topic" {
		t.Fatalf("expected named publisher lookup, got %v", client.named)
	}
}

func TestBackoffDoublesToCapAndResets(t *testing.T) {
	base := 100 * time.Millisecond
	b := newBackoff(base, time.Second)

	within := func(got, want time.Duration) bool { return got >= want && got < want+jitterWindow }
	for _, want := range []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second} {
		if got := b.next(); !within(got, want) {
			t.Fatalf("expected about %v, got %v", want, got)
		}
	}
	b.reset()
	if got := b.next(); !within(got, 200*time.Millisecond) {
		t.Fatalf("expected reset to base, got %v", got)
	}
	if got := b.idle(); !within(got, base) {
		t.Fatalf("idle wait out of range: %v", got)
	}
}

func TestServiceProcessBatchWritesDLQOnNonRetryable(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOfferAccepted,
		AggregateType: enums.AggregateOffer,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "nonretryable"),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	registry := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, &fakePublisher{}, registry, dlqRepo, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.Payload == nil || !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq payload mismatch")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
}

func TestServiceProcessBatchWritesDLQOnMaxAttempts(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOfferAccepted,
		AggregateType: enums.AggregateOffer,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, "max-attempts"),
		AttemptCount:  1,
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "lifecycle-topic",
			AggregateType: enums.AggregateOffer,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    event.ID.String(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.OfferAcceptedEvent{},
	}
	registry := &fakeRegistry{resolved: resolved}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, registry, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(dlqRepo.entries); got != 1 {
		t.Fatalf("expected dlq entry, got %d", got)
	}
	entry := dlqRepo.entries[0]
	if entry.EventID != event.ID {
		t.Fatalf("dlq event_id mismatch: %s", entry.EventID)
	}
	if entry.ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected row marked terminal, got %d", len(repo.failed))
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, registry registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         registry,
		PublisherFactory: func(_ string) publisher { return pub },
		DLQRepository:    dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	retryAt   []time.Time
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, retryAt time.Time) error {
	f.failed = append(f.failed, id)
	f.retryAt = append(f.retryAt, retryAt)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct {
	lifecycleCalls int
	named          []string
}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) LifecyclePublisher() *gcppubsub.Publisher {
	f.lifecycleCalls++
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	f.named = append(f.named, name)
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeMetrics struct {
	published    map[string]int
	failed       map[string]int
	deadLettered map[string]int
}

func (f *fakeMetrics) IncPublished(eventType string) {
	if f.published == nil {
		f.published = map[string]int{}
	}
	f.published[eventType]++
}

func (f *fakeMetrics) IncFailed(eventType string) {
	if f.failed == nil {
		f.failed = map[string]int{}
	}
	f.failed[eventType]++
}

func (f *fakeMetrics) IncDeadLettered(eventType, reason string) {
	if f.deadLettered == nil {
		f.deadLettered = map[string]int{}
	}
	f.deadLettered[eventType+":"+reason]++
}

type orderingPublisher struct {
	calls []string
}

func (o *orderingPublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	o.calls = append(o.calls, "publish")
	return orderingResult{o}
}

type orderingResult struct{ o *orderingPublisher }

func (r orderingResult) Get(context.Context) (string, error) {
	r.o.calls = append(r.o.calls, "get")
	return "server-id", nil
}
