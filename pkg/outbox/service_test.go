package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

type stubInserter struct {
	rows []models.OutboxEvent
	err  error
}

func (s *stubInserter) Insert(_ *gorm.DB, event models.OutboxEvent) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, event)
	return nil
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	repo := &stubInserter{}
	svc := &Service{repo: repo}
	actor := uuid.New()
	aggregate := uuid.New()

	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventRequestCreated,
		AggregateType: enums.AggregateHelpRequest,
		AggregateID:   aggregate,
		Actor:         &ActorRef{UserID: actor},
		Data:          map[string]string{"title": "ride to O'Hare"},
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(repo.rows))
	}
	row := repo.rows[0]
	if row.ID == uuid.Nil || row.AggregateID != aggregate {
		t.Fatalf("unexpected row identifiers %+v", row)
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != 1 {
		t.Fatalf("expected version 1, got %d", envelope.Version)
	}
	if envelope.EventID == "" || envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing metadata %+v", envelope)
	}
	if envelope.Actor == nil || envelope.Actor.UserID != actor {
		t.Fatalf("unexpected actor %+v", envelope.Actor)
	}
	var data map[string]string
	if err := json.Unmarshal(envelope.Data, &data); err != nil || data["title"] != "ride to O'Hare" {
		t.Fatalf("unexpected data %s (%v)", envelope.Data, err)
	}
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	svc := &Service{repo: &stubInserter{}}
	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.OutboxEventType("request.deleted"),
		AggregateType: enums.AggregateHelpRequest,
		AggregateID:   uuid.New(),
	})
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}

	err = svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventOfferCreated,
		AggregateType: enums.OutboxAggregateType("store"),
		AggregateID:   uuid.New(),
	})
	if err == nil {
		t.Fatal("expected error for unknown aggregate type")
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := &Service{repo: &stubInserter{}}
	if err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventOfferCreated,
		AggregateType: enums.AggregateOffer,
	}); err == nil {
		t.Fatal("expected error without transaction")
	}
}

func TestEmitPropagatesInsertError(t *testing.T) {
	boom := errors.New("boom")
	svc := &Service{repo: &stubInserter{err: boom}}
	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventProfileCreated,
		AggregateType: enums.AggregateProfile,
		AggregateID:   uuid.New(),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}
}
