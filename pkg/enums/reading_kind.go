package enums

import "fmt"

// ReadingKind names one of the telemetry series every device reports.
type ReadingKind string

const (
	ReadingKindPressure    ReadingKind = "pressure"
	ReadingKindTemperature ReadingKind = "temperature"
	ReadingKindDistance    ReadingKind = "distance"
)

var validReadingKinds = []ReadingKind{
	ReadingKindPressure,
	ReadingKindTemperature,
	ReadingKindDistance,
}

// String implements fmt.Stringer.
func (k ReadingKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known ReadingKind.
func (k ReadingKind) IsValid() bool {
	for _, candidate := range validReadingKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseReadingKind converts raw input into a ReadingKind.
func ParseReadingKind(value string) (ReadingKind, error) {
	for _, candidate := range validReadingKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reading kind %q", value)
}
