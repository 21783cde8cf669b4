package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
)

// Service lists completed matches from either side. Both parties accepted, so
// contact details are always included.
type Service interface {
	ReceivedByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error)
	GivenByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error)
}

type Entry struct {
	RequestID          uuid.UUID             `json:"request_id"`
	RequestTitle       string                `json:"request_title"`
	RequestDescription string                `json:"request_description"`
	RequestCategory    enums.RequestCategory `json:"request_category"`
	RequestStatus      enums.RequestStatus   `json:"request_status"`
	CreatorID          uuid.UUID             `json:"creator_id"`
	CreatorName        string                `json:"creator_name"`
	CreatorEmail       string                `json:"creator_email"`
	OfferID            uuid.UUID             `json:"offer_id"`
	HelperID           uuid.UUID             `json:"helper_id"`
	HelperName         string                `json:"helper_name"`
	HelperEmail        string                `json:"helper_email"`
	HelperYear         enums.Year            `json:"helper_year"`
	HelperMajor        string                `json:"helper_major"`
	HelperAvatarRef    *string               `json:"helper_avatar_ref,omitempty"`
	AcceptedAt         time.Time             `json:"accepted_at"`
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "history repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ReceivedByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	rows, err := s.repo.AcceptedForCreator(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "list help received")
	}
	return toEntries(rows), nil
}

func (s *service) GivenByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	rows, err := s.repo.AcceptedForHelper(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "list help given")
	}
	return toEntries(rows), nil
}

func toEntries(rows []EntryRow) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry(row))
	}
	return out
}
