package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeUnauthorizedDomain Code = "UNAUTHORIZED_DOMAIN"
	CodeForbidden          Code = "FORBIDDEN"
	CodeOnboardingRequired Code = "ONBOARDING_REQUIRED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeDuplicateOffer     Code = "DUPLICATE_OFFER"
	CodeSelfOffer          Code = "SELF_OFFER"
	CodeRequestNotOpen     Code = "REQUEST_NOT_OPEN"
	CodeUploadFailed       Code = "UPLOAD_FAILED"
	CodeIdempotency        Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit          Code = "RATE_LIMIT_EXCEEDED"
	CodeOperationFailed    Code = "OPERATION_FAILED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
	},
	CodeUnauthorizedDomain: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "email domain is not permitted",
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
	},
	CodeOnboardingRequired: {
		HTTPStatus:    http.StatusPreconditionRequired,
		PublicMessage: "profile onboarding required",
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeAlreadyExists: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "resource already exists",
	},
	CodeInvalidTransition: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "status transition disallowed",
		DetailsAllowed: true,
	},
	CodeDuplicateOffer: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "offer already exists for this request",
	},
	CodeSelfOffer: {
		HTTPStatus:    http.StatusUnprocessableEntity,
		PublicMessage: "cannot offer help on your own request",
	},
	CodeRequestNotOpen: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "request is not open",
	},
	CodeUploadFailed: {
		HTTPStatus:    http.StatusBadGateway,
		Retryable:     true,
		PublicMessage: "upload failed",
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus:    http.StatusTooManyRequests,
		PublicMessage: "rate limit exceeded",
	},
	CodeOperationFailed: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "operation failed",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// UserFacing reports whether the error message may be shown to clients verbatim.
func UserFacing(code Code) bool {
	switch code {
	case CodeInternal, CodeOperationFailed, CodeDependency, CodeUploadFailed:
		return false
	}
	_, ok := metadataByCode[code]
	return ok
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
