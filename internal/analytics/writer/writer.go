package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/campusaid-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/campusaid-backend/pkg/bigquery"
)

// Config names the destination table and how hard to retry.
type Config struct {
	LifecycleTable string
	Retry          Retry
}

// Retry bounds streaming-insert retries. Zero fields take the defaults.
type Retry struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// DefaultRetry is used for any zero field of Config.Retry.
var DefaultRetry = Retry{Attempts: 3, Base: 250 * time.Millisecond, Cap: 2 * time.Second}

func (r Retry) withDefaults() Retry {
	if r.Attempts <= 0 {
		r.Attempts = DefaultRetry.Attempts
	}
	if r.Base <= 0 {
		r.Base = DefaultRetry.Base
	}
	if r.Cap < r.Base {
		r.Cap = max(DefaultRetry.Cap, r.Base)
	}
	return r
}

// delay is the wait before retry number n (1-based), doubling up to Cap.
func (r Retry) delay(n int) time.Duration {
	d := r.Base
	for i := 1; i < n && d < r.Cap; i++ {
		d *= 2
	}
	return min(d, r.Cap)
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams one lifecycle row per event. The event id is the
// BigQuery insert id, so a retried insert is not counted twice.
type BigQueryWriter struct {
	client tableInserter
	table  string
	retry  Retry
	sleep  func(context.Context, time.Duration) error
}

// New validates cfg against a shared BigQuery client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.LifecycleTable)
	if table == "" {
		return nil, errors.New("lifecycle table is required")
	}
	return &BigQueryWriter{
		client: client,
		table:  table,
		retry:  cfg.Retry.withDefaults(),
		sleep:  sleepCtx,
	}, nil
}

// InsertLifecycle writes row before returning, retrying transient failures.
func (w *BigQueryWriter) InsertLifecycle(ctx context.Context, row types.LifecycleEventRow) error {
	saver := &cbigquery.StructSaver{
		Schema:   types.LifecycleEventsSchema,
		InsertID: row.EventID,
		Struct:   &row,
	}
	rows := []any{saver}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.Attempts || !retryable(err) {
			return fmt.Errorf("insert into %s after %d attempt(s): %w", w.table, attempt, err)
		}
		if err := w.sleep(ctx, w.retry.delay(attempt)); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether every failure inside err is transient. Row-level
// errors from a streaming insert are unwrapped before the check.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return every(multi, retryable)
	}
	var rows cbigquery.PutMultiError
	if errors.As(err, &rows) {
		return every(rows, func(row cbigquery.RowInsertionError) bool { return every(row.Errors, retryable) })
	}
	var row *cbigquery.RowInsertionError
	if errors.As(err, &row) {
		return every(row.Errors, retryable)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return transientGRPC[st.Code()]
	}
	return false
}

// every is false for an empty slice: a failure with no detail is not retried.
func every[T any](items []T, ok func(T) bool) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !ok(item) {
			return false
		}
	}
	return true
}

var transientHTTP = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var transientGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// EncodeJSON turns an event payload into a JSON column value. Empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
