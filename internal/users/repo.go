package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// Repository exposes identity persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByProviderSubject loads the identity linked to an external provider subject.
func (r *Repository) FindByProviderSubject(ctx context.Context, provider enums.AuthProvider, subject string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_subject = ?", provider, subject).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RecordSignIn stamps last_sign_in_at and refreshes provider-managed fields.
func (r *Repository) RecordSignIn(ctx context.Context, id uuid.UUID, at time.Time, displayName string, avatarRef *string) error {
	updates := map[string]any{
		"last_sign_in_at": at,
		"updated_at":      at,
	}
	if strings.TrimSpace(displayName) != "" {
		updates["display_name"] = displayName
	}
	if avatarRef != nil && strings.TrimSpace(*avatarRef) != "" {
		updates["avatar_ref"] = *avatarRef
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetAvatarRef stores the profile-chosen avatar on the identity.
func (r *Repository) SetAvatarRef(ctx context.Context, id uuid.UUID, avatarRef *string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("avatar_ref", avatarRef).Error
}

func (r *Repository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()}).Error
}
