package enums

import "fmt"

// OutboxAggregateType identifies the record an outbox event describes.
type OutboxAggregateType string

const (
	AggregateHelpRequest OutboxAggregateType = "help_request"
	AggregateOffer       OutboxAggregateType = "offer"
	AggregateProfile     OutboxAggregateType = "profile"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateHelpRequest,
	AggregateOffer,
	AggregateProfile,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a lifecycle fact published downstream.
type OutboxEventType string

const (
	EventRequestCreated       OutboxEventType = "request.created"
	EventRequestStatusChanged OutboxEventType = "request.status_changed"
	EventOfferCreated         OutboxEventType = "offer.created"
	EventOfferAccepted        OutboxEventType = "offer.accepted"
	EventOfferDeclined        OutboxEventType = "offer.declined"
	EventProfileCreated       OutboxEventType = "profile.created"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRequestCreated,
	EventRequestStatusChanged,
	EventOfferCreated,
	EventOfferAccepted,
	EventOfferDeclined,
	EventProfileCreated,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
