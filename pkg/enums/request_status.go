package enums

import "fmt"

// RequestStatus is the help request lifecycle state.
type RequestStatus string

const (
	RequestStatusOpen     RequestStatus = "open"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusClosed   RequestStatus = "closed"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusOpen,
	RequestStatusAccepted,
	RequestStatusClosed,
}

// requestTransitions lists the forward moves. Nothing returns to open.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusOpen:     {RequestStatusAccepted, RequestStatusClosed},
	RequestStatusAccepted: {RequestStatusClosed},
}

func (s RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a permitted move from s.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, candidate := range requestTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s RequestStatus) IsTerminal() bool {
	return len(requestTransitions[s]) == 0
}

func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}
