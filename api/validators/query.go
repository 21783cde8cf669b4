package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/pagination"
)

// ParseLimit reads the page size from ?limit. A blank value means the default
// page size and anything above pagination.MaxLimit is capped.
func ParseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return pagination.DefaultLimit, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, limitError("must be a whole number")
	}
	if value < 1 {
		return 0, limitError("must be at least 1")
	}
	return pagination.NormalizeLimit(value), nil
}

func limitError(reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"limit": reason})
}
