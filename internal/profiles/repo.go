package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
)

// Repository persists profiles keyed by owner id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, profile *models.Profile) error
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, ownerID uuid.UUID, fields ProfileFields, at time.Time) error
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

func (r *repository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "owner_id = ?", ownerID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Update overwrites the editable fields and returns gorm.ErrRecordNotFound when no row matched.
// The avatar column is written only when fields carries a new ref or ClearAvatar.
func (r *repository) Update(ctx context.Context, ownerID uuid.UUID, fields ProfileFields, at time.Time) error {
	columns := map[string]any{
		"name":       fields.Name,
		"year":       fields.Year,
		"major":      fields.Major,
		"updated_at": at,
	}
	switch {
	case fields.AvatarRef != nil:
		columns["avatar_ref"] = *fields.AvatarRef
	case fields.ClearAvatar:
		columns["avatar_ref"] = nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("owner_id = ?", ownerID).
		Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
