package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// HelpRequest is a posted ask for help. Creator fields are copied at creation time.
type HelpRequest struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Title        string                `gorm:"column:title;type:text;not null"`
	Description  string                `gorm:"column:description;type:text;not null"`
	Category     enums.RequestCategory `gorm:"column:category;type:text;not null"`
	CreatorID    uuid.UUID             `gorm:"column:creator_id;type:uuid;not null"`
	CreatorEmail string                `gorm:"column:creator_email;type:text;not null"`
	CreatorName  string                `gorm:"column:creator_name;type:text;not null"`
	CreatorYear  enums.Year            `gorm:"column:creator_year;type:text;not null"`
	CreatorMajor string                `gorm:"column:creator_major;type:text;not null"`
	Status       enums.RequestStatus   `gorm:"column:status;type:text;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at"`
	UpdatedAt    time.Time             `gorm:"column:updated_at"`
}

func (HelpRequest) TableName() string { return "help_requests" }
