package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
)

// Service computes the pending-offer inbox on every read. Nothing is persisted,
// so acting on an offer is reflected by the next poll.
type Service interface {
	PendingForUser(ctx context.Context, userID uuid.UUID) ([]Item, error)
	Badge(ctx context.Context, userID uuid.UUID) (*Badge, error)
}

// Item is one pending offer on a request the user created. The helper email
// stays hidden until the offer is accepted, which removes it from this list.
type Item struct {
	RequestID       uuid.UUID         `json:"request_id"`
	RequestTitle    string            `json:"request_title"`
	OfferID         uuid.UUID         `json:"offer_id"`
	HelperID        uuid.UUID         `json:"helper_id"`
	HelperName      string            `json:"helper_name"`
	HelperEmail     string            `json:"helper_email,omitempty"`
	HelperYear      enums.Year        `json:"helper_year"`
	HelperMajor     string            `json:"helper_major"`
	HelperAvatarRef *string           `json:"helper_avatar_ref,omitempty"`
	Status          enums.OfferStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	CreatedAtMs     int64             `json:"created_at_ms"`
}

// Badge is the unread-style counter shown in the navigation bar.
type Badge struct {
	Count int64 `json:"count"`
}

type service struct {
	repo Repository
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) PendingForUser(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	rows, err := s.repo.PendingForCreator(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "list pending offers")
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, Item{
			RequestID:       row.RequestID,
			RequestTitle:    row.RequestTitle,
			OfferID:         row.OfferID,
			HelperID:        row.HelperID,
			HelperName:      row.HelperName,
			HelperYear:      row.HelperYear,
			HelperMajor:     row.HelperMajor,
			HelperAvatarRef: row.HelperAvatarRef,
			Status:          row.Status,
			CreatedAt:       row.CreatedAt,
			CreatedAtMs:     row.CreatedAt.UnixMilli(),
		})
	}
	return items, nil
}

func (s *service) Badge(ctx context.Context, userID uuid.UUID) (*Badge, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	count, err := s.repo.CountPendingForCreator(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "count pending offers")
	}
	return &Badge{Count: count}, nil
}
