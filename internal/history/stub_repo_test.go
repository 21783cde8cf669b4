package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/internal/history"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

type stubRepo struct {
	received []history.EntryRow
	given    []history.EntryRow
}

func (s stubRepo) AcceptedForCreator(context.Context, uuid.UUID) ([]history.EntryRow, error) {
	return s.received, nil
}

func (s stubRepo) AcceptedForHelper(context.Context, uuid.UUID) ([]history.EntryRow, error) {
	return s.given, nil
}

func TestServiceAcceptsRepositoryFromOtherPackages(t *testing.T) {
	row := history.EntryRow{
		RequestID:     uuid.New(),
		RequestTitle:  "Borrow a calculator",
		RequestStatus: enums.RequestStatusAccepted,
		OfferID:       uuid.New(),
		HelperEmail:   "helper@u.northwestern.edu",
		AcceptedAt:    time.Date(2026, 10, 2, 9, 30, 0, 0, time.UTC),
	}
	svc, err := history.NewService(stubRepo{given: []history.EntryRow{row}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	given, err := svc.GivenByUser(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("given: %v", err)
	}
	if len(given) != 1 || given[0].OfferID != row.OfferID || given[0].HelperEmail != row.HelperEmail {
		t.Fatalf("unexpected entries %+v", given)
	}

	received, err := svc.ReceivedByUser(context.Background(), uuid.New())
	if err != nil || len(received) != 0 {
		t.Fatalf("expected no received entries, got %+v err %v", received, err)
	}
}
