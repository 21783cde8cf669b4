package offers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// OfferDTO is the wire shape of an offer. HelperEmail is only set when revealed.
type OfferDTO struct {
	ID              uuid.UUID         `json:"id"`
	RequestID       uuid.UUID         `json:"request_id"`
	HelperID        uuid.UUID         `json:"helper_id"`
	HelperEmail     string            `json:"helper_email,omitempty"`
	HelperName      string            `json:"helper_name"`
	HelperYear      enums.Year        `json:"helper_year"`
	HelperMajor     string            `json:"helper_major"`
	HelperAvatarRef *string           `json:"helper_avatar_ref,omitempty"`
	Status          enums.OfferStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	CreatedAtMs     int64             `json:"created_at_ms"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func FromModel(m *models.Offer, revealEmail bool) OfferDTO {
	dto := OfferDTO{
		ID:              m.ID,
		RequestID:       m.RequestID,
		HelperID:        m.HelperID,
		HelperName:      m.HelperName,
		HelperYear:      m.HelperYear,
		HelperMajor:     m.HelperMajor,
		HelperAvatarRef: m.HelperAvatarRef,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
		CreatedAtMs:     m.CreatedAt.UnixMilli(),
		UpdatedAt:       m.UpdatedAt,
	}
	if revealEmail {
		dto.HelperEmail = m.HelperEmail
	}
	return dto
}

// revealHelperEmail: helpers always see their own address; the creator sees it once accepted.
func revealHelperEmail(offer *models.Offer, creatorID, viewerID uuid.UUID) bool {
	if offer.HelperID == viewerID {
		return true
	}
	return viewerID == creatorID && offer.Status == enums.OfferStatusAccepted
}
