package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

const (
	activeOfferIndex   = "offers_active_request_helper_idx"
	acceptedOfferIndex = "offers_one_accepted_per_request_idx"
)

// Repository persists offers in the flat offers table keyed by request_id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, requestID, offerID uuid.UUID) (*models.Offer, error)
	FindByIDForUpdate(ctx context.Context, requestID, offerID uuid.UUID) (*models.Offer, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Offer, error)
	FindActiveByHelper(ctx context.Context, requestID, helperID uuid.UUID) (*models.Offer, error)
	UpdateStatus(ctx context.Context, offerID uuid.UUID, from, to enums.OfferStatus, at time.Time) error
	HasAcceptedOffer(ctx context.Context, requestID, helperID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) FindByID(ctx context.Context, requestID, offerID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).
		Where("id = ? AND request_id = ?", offerID, requestID).
		First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, requestID, offerID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ? AND request_id = ?", offerID, requestID).
		First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Offer, error) {
	var rows []models.Offer
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// FindActiveByHelper returns the latest non-declined offer from helperID on the request.
func (r *repository) FindActiveByHelper(ctx context.Context, requestID, helperID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).
		Where("request_id = ? AND helper_id = ? AND status <> ?", requestID, helperID, enums.OfferStatusDeclined).
		Order("created_at DESC, id DESC").
		First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

// UpdateStatus applies the move only if the row is still in from.
func (r *repository) UpdateStatus(ctx context.Context, offerID uuid.UUID, from, to enums.OfferStatus, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status = ?", offerID, from).
		Updates(map[string]any{"status": to, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) HasAcceptedOffer(ctx context.Context, requestID, helperID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("request_id = ? AND helper_id = ? AND status = ?", requestID, helperID, enums.OfferStatusAccepted).
		Count(&count).Error
	return count > 0, err
}
