package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// RequestCreatedEvent announces a new help request on the board.
type RequestCreatedEvent struct {
	RequestID uuid.UUID             `json:"request_id"`
	CreatorID uuid.UUID             `json:"creator_id"`
	Category  enums.RequestCategory `json:"category"`
	Title     string                `json:"title"`
}

// RequestStatusChangedEvent records a forward move in the request state machine.
type RequestStatusChangedEvent struct {
	RequestID uuid.UUID           `json:"request_id"`
	CreatorID uuid.UUID           `json:"creator_id"`
	From      enums.RequestStatus `json:"from"`
	To        enums.RequestStatus `json:"to"`
}

// OfferCreatedEvent fires when a helper offers on an open request.
type OfferCreatedEvent struct {
	OfferID   uuid.UUID `json:"offer_id"`
	RequestID uuid.UUID `json:"request_id"`
	HelperID  uuid.UUID `json:"helper_id"`
	CreatorID uuid.UUID `json:"creator_id"`
}

// OfferAcceptedEvent is written in the same transaction that moves the request to accepted.
type OfferAcceptedEvent struct {
	OfferID   uuid.UUID `json:"offer_id"`
	RequestID uuid.UUID `json:"request_id"`
	HelperID  uuid.UUID `json:"helper_id"`
	CreatorID uuid.UUID `json:"creator_id"`
}

type OfferDeclinedEvent struct {
	OfferID   uuid.UUID `json:"offer_id"`
	RequestID uuid.UUID `json:"request_id"`
	HelperID  uuid.UUID `json:"helper_id"`
	CreatorID uuid.UUID `json:"creator_id"`
}

type ProfileCreatedEvent struct {
	OwnerID uuid.UUID  `json:"owner_id"`
	Year    enums.Year `json:"year"`
	Major   string     `json:"major"`
}
