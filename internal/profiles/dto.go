package profiles

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

const maxFieldLength = 100

// ProfileRequest is the body accepted by create and update.
type ProfileRequest struct {
	Name      string  `json:"name" validate:"required"`
	Year      string  `json:"year" validate:"required"`
	Major     string  `json:"major" validate:"required"`
	AvatarRef *string `json:"avatar_ref,omitempty"`
}

// ProfileFields is the validated, normalized form of a ProfileRequest.
// A nil AvatarRef leaves the avatar as it is unless ClearAvatar is set.
type ProfileFields struct {
	Name        string
	Year        enums.Year
	Major       string
	AvatarRef   *string
	ClearAvatar bool
}

// ProfileDTO is the API view of a profile.
type ProfileDTO struct {
	OwnerID   uuid.UUID  `json:"owner_id"`
	Name      string     `json:"name"`
	Year      enums.Year `json:"year"`
	Major     string     `json:"major"`
	AvatarRef *string    `json:"avatar_ref,omitempty"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AvatarUpload describes a stored avatar object.
type AvatarUpload struct {
	URL         string `json:"url"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	SizeBytes   int    `json:"size_bytes"`
}

func FromModel(p *models.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		OwnerID:   p.OwnerID,
		Name:      p.Name,
		Year:      p.Year,
		Major:     p.Major,
		AvatarRef: p.AvatarRef,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// Normalize trims the request and reports every invalid field.
func (r ProfileRequest) Normalize() (ProfileFields, map[string]string) {
	details := map[string]string{}
	fields := ProfileFields{
		Name:  strings.TrimSpace(r.Name),
		Major: strings.TrimSpace(r.Major),
	}
	checkLength(details, "name", fields.Name)
	checkLength(details, "major", fields.Major)

	year, err := enums.ParseYear(strings.TrimSpace(r.Year))
	if err != nil {
		details["year"] = "must be one of Freshman, Sophomore, Junior, Senior, Graduate"
	}
	fields.Year = year

	if r.AvatarRef != nil {
		if ref := strings.TrimSpace(*r.AvatarRef); ref != "" {
			fields.AvatarRef = &ref
		} else {
			fields.ClearAvatar = true
		}
	}
	return fields, details
}

func checkLength(details map[string]string, field, value string) {
	switch n := utf8.RuneCountInString(value); {
	case n == 0:
		details[field] = "is required"
	case n > maxFieldLength:
		details[field] = "must be at most 100 characters"
	}
}
