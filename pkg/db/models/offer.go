package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// Offer is a helper's commitment to a single help request.
type Offer struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	RequestID       uuid.UUID         `gorm:"column:request_id;type:uuid;not null"`
	HelperID        uuid.UUID         `gorm:"column:helper_id;type:uuid;not null"`
	HelperEmail     string            `gorm:"column:helper_email;type:text;not null"`
	HelperName      string            `gorm:"column:helper_name;type:text;not null"`
	HelperYear      enums.Year        `gorm:"column:helper_year;type:text;not null"`
	HelperMajor     string            `gorm:"column:helper_major;type:text;not null"`
	HelperAvatarRef *string           `gorm:"column:helper_avatar_ref;type:text"`
	Status          enums.OfferStatus `gorm:"column:status;type:text;not null"`
	CreatedAt       time.Time         `gorm:"column:created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at"`
}
