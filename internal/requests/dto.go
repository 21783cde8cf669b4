package requests

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
)

// CreateRequestInput is the body of POST /requests.
type CreateRequestInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// SetStatusInput is the body of PATCH /requests/{id}/status.
type SetStatusInput struct {
	Status string `json:"status" validate:"notblank"`
}

// ListOpenInput filters the open board.
type ListOpenInput struct {
	Category string
	Cursor   string
	Limit    int
}

// RequestDTO is the wire shape of a help request. CreatorEmail is only set when revealed.
type RequestDTO struct {
	ID           uuid.UUID             `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Category     enums.RequestCategory `json:"category"`
	CreatorID    uuid.UUID             `json:"creator_id"`
	CreatorEmail string                `json:"creator_email,omitempty"`
	CreatorName  string                `json:"creator_name"`
	CreatorYear  enums.Year            `json:"creator_year"`
	CreatorMajor string                `json:"creator_major"`
	Status       enums.RequestStatus   `json:"status"`
	CreatedAt    time.Time             `json:"created_at"`
	CreatedAtMs  int64                 `json:"created_at_ms"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// ListResult is one page of the open board.
type ListResult struct {
	Items      []RequestDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// FromModel maps a row to its DTO, redacting the creator email unless revealEmail is set.
func FromModel(m *models.HelpRequest, revealEmail bool) RequestDTO {
	dto := RequestDTO{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		Category:     m.Category,
		CreatorID:    m.CreatorID,
		CreatorName:  m.CreatorName,
		CreatorYear:  m.CreatorYear,
		CreatorMajor: m.CreatorMajor,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
		CreatedAtMs:  m.CreatedAt.UnixMilli(),
		UpdatedAt:    m.UpdatedAt,
	}
	if revealEmail {
		dto.CreatorEmail = m.CreatorEmail
	}
	return dto
}

type requestFields struct {
	Title       string
	Description string
	Category    enums.RequestCategory
}

// normalize trims input and reports every violated field. Over-long text is rejected, never cut.
func (in CreateRequestInput) normalize() (requestFields, map[string]string) {
	details := map[string]string{}
	fields := requestFields{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
	}

	switch n := utf8.RuneCountInString(fields.Title); {
	case n == 0:
		details["title"] = "is required"
	case n > maxTitleLength:
		details["title"] = "must be at most 100 characters"
	}
	switch n := utf8.RuneCountInString(fields.Description); {
	case n == 0:
		details["description"] = "is required"
	case n > maxDescriptionLength:
		details["description"] = "must be at most 500 characters"
	}

	category, err := enums.ParseRequestCategory(in.Category)
	if err != nil {
		details["category"] = "must be one of rides, tutoring, errands, moving, other"
	}
	fields.Category = category

	return fields, details
}
