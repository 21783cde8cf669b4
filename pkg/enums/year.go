package enums

import "fmt"

// Year is the academic standing captured on a profile.
type Year string

const (
	YearFreshman  Year = "Freshman"
	YearSophomore Year = "Sophomore"
	YearJunior    Year = "Junior"
	YearSenior    Year = "Senior"
	YearGraduate  Year = "Graduate"
)

var validYears = []Year{
	YearFreshman,
	YearSophomore,
	YearJunior,
	YearSenior,
	YearGraduate,
}

// IsValid checks whether the value matches one of the canonical years.
func (y Year) IsValid() bool {
	for _, candidate := range validYears {
		if candidate == y {
			return true
		}
	}
	return false
}

// ParseYear converts raw input into Year.
func ParseYear(value string) (Year, error) {
	for _, candidate := range validYears {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid year %q", value)
}
