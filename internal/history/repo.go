package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// Repository joins accepted offers with their requests.
type Repository interface {
	AcceptedForCreator(ctx context.Context, creatorID uuid.UUID) ([]EntryRow, error)
	AcceptedForHelper(ctx context.Context, helperID uuid.UUID) ([]EntryRow, error)
}

// EntryRow is one accepted offer joined with its request.
type EntryRow struct {
	RequestID          uuid.UUID
	RequestTitle       string
	RequestDescription string
	RequestCategory    enums.RequestCategory
	RequestStatus      enums.RequestStatus
	CreatorID          uuid.UUID
	CreatorName        string
	CreatorEmail       string
	OfferID            uuid.UUID
	HelperID           uuid.UUID
	HelperName         string
	HelperEmail        string
	HelperYear         enums.Year
	HelperMajor        string
	HelperAvatarRef    *string
	AcceptedAt         time.Time
}

const entryColumns = `help_requests.id AS request_id,
	help_requests.title AS request_title,
	help_requests.description AS request_description,
	help_requests.category AS request_category,
	help_requests.status AS request_status,
	help_requests.creator_id,
	help_requests.creator_name,
	help_requests.creator_email,
	offers.id AS offer_id,
	offers.helper_id,
	offers.helper_name,
	offers.helper_email,
	offers.helper_year,
	offers.helper_major,
	offers.helper_avatar_ref,
	offers.updated_at AS accepted_at`

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) accepted(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("offers").
		Select(entryColumns).
		Joins("JOIN help_requests ON help_requests.id = offers.request_id").
		Where("offers.status = ?", enums.OfferStatusAccepted).
		Order("offers.updated_at DESC, offers.id DESC")
}

func (r *repository) AcceptedForCreator(ctx context.Context, creatorID uuid.UUID) ([]EntryRow, error) {
	var rows []EntryRow
	err := r.accepted(ctx).Where("help_requests.creator_id = ?", creatorID).Scan(&rows).Error
	return rows, err
}

func (r *repository) AcceptedForHelper(ctx context.Context, helperID uuid.UUID) ([]EntryRow, error) {
	var rows []EntryRow
	err := r.accepted(ctx).Where("offers.helper_id = ?", helperID).Scan(&rows).Error
	return rows, err
}
