package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// User is the authenticated identity behind a session.
type User struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Email           string             `gorm:"column:email;type:text;not null;uniqueIndex"`
	DisplayName     string             `gorm:"column:display_name;type:text;not null"`
	AvatarRef       *string            `gorm:"column:avatar_ref;type:text"`
	Provider        enums.AuthProvider `gorm:"column:provider;type:text;not null"`
	ProviderSubject *string            `gorm:"column:provider_subject;type:text"`
	PasswordHash    *string            `gorm:"column:password_hash;type:text"`
	LastSignInAt    *time.Time         `gorm:"column:last_sign_in_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
