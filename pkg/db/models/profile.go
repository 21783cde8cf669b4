package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// Profile is the one-per-user onboarding record.
type Profile struct {
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;primaryKey"`
	Name      string     `gorm:"column:name;type:text;not null"`
	Year      enums.Year `gorm:"column:year;type:text;not null"`
	Major     string     `gorm:"column:major;type:text;not null"`
	AvatarRef *string    `gorm:"column:avatar_ref;type:text"`
	Email     string     `gorm:"column:email;type:text;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
