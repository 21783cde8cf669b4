package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeUnauthorizedDomain, status: http.StatusForbidden, publicMsg: "email domain is not permitted"},
		{code: CodeOnboardingRequired, status: http.StatusPreconditionRequired, publicMsg: "profile onboarding required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeAlreadyExists, status: http.StatusConflict, publicMsg: "resource already exists"},
		{code: CodeInvalidTransition, status: http.StatusUnprocessableEntity, publicMsg: "status transition disallowed", detailsOK: true},
		{code: CodeDuplicateOffer, status: http.StatusConflict, publicMsg: "offer already exists for this request"},
		{code: CodeSelfOffer, status: http.StatusUnprocessableEntity, publicMsg: "cannot offer help on your own request"},
		{code: CodeRequestNotOpen, status: http.StatusConflict, publicMsg: "request is not open"},
		{code: CodeUploadFailed, status: http.StatusBadGateway, publicMsg: "upload failed", retryable: true},
		{code: CodeOperationFailed, status: http.StatusInternalServerError, publicMsg: "operation failed", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestUserFacing(t *testing.T) {
	if !UserFacing(CodeDuplicateOffer) {
		t.Fatalf("duplicate offer message should be user facing")
	}
	if UserFacing(CodeOperationFailed) {
		t.Fatalf("operation failed message should stay internal")
	}
	if UserFacing("SOMETHING_UNKNOWN") {
		t.Fatalf("unknown code should not be user facing")
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing title")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing title" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]string{"title": "required"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeOperationFailed, cause, "insert request")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeOperationFailed {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if got := wrapped.Error(); got != "OPERATION_FAILED: insert request: boom" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestAsAndIsCodeFollowChain(t *testing.T) {
	err := fmt.Errorf("accept offer: %w", New(CodeRequestNotOpen, "request closed"))
	if got := As(err); got == nil || got.Code() != CodeRequestNotOpen {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeRequestNotOpen) {
		t.Fatalf("IsCode should match wrapped code")
	}
	if IsCode(err, CodeSelfOffer) {
		t.Fatalf("IsCode matched unrelated code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpCapturesPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "offers_active_request_helper_idx", TableName: "offers", Message: "duplicate key value"}
	err := Wrap(CodeDuplicateOffer, pgErr, "insert offer")

	dump := Dump(err)
	if dump.Code != CodeDuplicateOffer {
		t.Fatalf("expected code %s got %s", CodeDuplicateOffer, dump.Code)
	}
	if dump.Postgres == nil || dump.Postgres.Code != "23505" || dump.Postgres.Constraint != "offers_active_request_helper_idx" {
		t.Fatalf("postgres fields not captured: %+v", dump.Postgres)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected chain of 2 got %d", len(dump.Chain))
	}

	fields := dump.Fields()
	if fields["pg_table"] != "offers" {
		t.Fatalf("expected pg_table field, got %v", fields["pg_table"])
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty postgres fields should be omitted")
	}
}

func TestDumpCapturesLibPQErrors(t *testing.T) {
	err := fmt.Errorf("claim outbox batch: %w", &pq.Error{Code: "40001", Table: "outbox_events", Message: "could not serialize access"})

	dump := Dump(err)
	if dump.Postgres == nil || dump.Postgres.Code != "40001" || dump.Postgres.Table != "outbox_events" {
		t.Fatalf("pq fields not captured: %+v", dump.Postgres)
	}
	if dump.Code != "" {
		t.Fatalf("untyped error should carry no code, got %s", dump.Code)
	}
	if _, ok := dump.Fields()["error_code"]; ok {
		t.Fatalf("error_code should be omitted for untyped errors")
	}
}

func TestDumpWalksJoinedErrors(t *testing.T) {
	first := stdErrors.New("outbox-retention: db down")
	second := New(CodeDependency, "dlq-retention failed")
	dump := Dump(stdErrors.Join(first, second))

	if len(dump.Chain) != 3 {
		t.Fatalf("expected join plus both causes, got %v", dump.Chain)
	}
	if dump.Code != CodeDependency || !dump.Retryable {
		t.Fatalf("expected typed cause to surface, got %s retryable=%v", dump.Code, dump.Retryable)
	}
}

func TestDumpBoundsChain(t *testing.T) {
	err := stdErrors.New("root")
	for i := 0; i < 3*maxChain; i++ {
		err = fmt.Errorf("layer %d: %w", i, err)
	}
	if got := len(Dump(err).Chain); got != maxChain {
		t.Fatalf("expected chain capped at %d, got %d", maxChain, got)
	}
	if Dump(nil).Fields()["error"] != "" {
		t.Fatalf("nil dump should be empty")
	}
}
