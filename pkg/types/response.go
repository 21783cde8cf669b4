// Package types holds the JSON envelopes shared by the API server and pkg/client.
package types

// RequestIDHeader carries the per-request correlation id on requests and responses.
const RequestIDHeader = "X-Request-Id"

// SuccessEnvelope wraps every 2xx body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. For VALIDATION_ERROR, Details maps each
// rejected field to its reason.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
