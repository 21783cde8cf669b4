package enums

import (
	"fmt"
	"strings"
)

// RequestCategory buckets help requests on the board.
type RequestCategory string

const (
	RequestCategoryRides    RequestCategory = "rides"
	RequestCategoryTutoring RequestCategory = "tutoring"
	RequestCategoryErrands  RequestCategory = "errands"
	RequestCategoryMoving   RequestCategory = "moving"
	RequestCategoryOther    RequestCategory = "other"
)

var validRequestCategories = []RequestCategory{
	RequestCategoryRides,
	RequestCategoryTutoring,
	RequestCategoryErrands,
	RequestCategoryMoving,
	RequestCategoryOther,
}

func (c RequestCategory) IsValid() bool {
	for _, candidate := range validRequestCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseRequestCategory accepts any casing.
func ParseRequestCategory(value string) (RequestCategory, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRequestCategories {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request category %q", value)
}
