package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// Repository reads the pending-offer projection straight from requests and offers.
type Repository interface {
	PendingForCreator(ctx context.Context, creatorID uuid.UUID) ([]PendingRow, error)
	CountPendingForCreator(ctx context.Context, creatorID uuid.UUID) (int64, error)
}

// PendingRow is one pending offer joined with its request title.
type PendingRow struct {
	RequestID       uuid.UUID
	RequestTitle    string
	OfferID         uuid.UUID
	HelperID        uuid.UUID
	HelperName      string
	HelperYear      enums.Year
	HelperMajor     string
	HelperAvatarRef *string
	Status          enums.OfferStatus
	CreatedAt       time.Time
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) pendingQuery(ctx context.Context, creatorID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("offers").
		Joins("JOIN help_requests ON help_requests.id = offers.request_id").
		Where("help_requests.creator_id = ?", creatorID).
		Where("help_requests.status <> ?", enums.RequestStatusClosed).
		Where("offers.status = ?", enums.OfferStatusPending)
}

func (r *repositoryImpl) PendingForCreator(ctx context.Context, creatorID uuid.UUID) ([]PendingRow, error) {
	var rows []PendingRow
	err := r.pendingQuery(ctx, creatorID).
		Select(`help_requests.id AS request_id,
			help_requests.title AS request_title,
			offers.id AS offer_id,
			offers.helper_id,
			offers.helper_name,
			offers.helper_year,
			offers.helper_major,
			offers.helper_avatar_ref,
			offers.status,
			offers.created_at`).
		Order("offers.created_at DESC, offers.id DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *repositoryImpl) CountPendingForCreator(ctx context.Context, creatorID uuid.UUID) (int64, error) {
	var count int64
	err := r.pendingQuery(ctx, creatorID).Count(&count).Error
	return count, err
}
