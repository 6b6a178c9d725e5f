package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 50
	// MaxLimit caps how many rows a telemetry query can request.
	MaxLimit = 500
	// MaxAuditLimit caps login log listings.
	MaxAuditLimit = 1000
)

// Bounds describes the default and ceiling for one listing.
type Bounds struct {
	Default int
	Max     int
}

var (
	// Telemetry bounds reading listings.
	Telemetry = Bounds{Default: DefaultLimit, Max: MaxLimit}
	// Audit bounds login log listings.
	Audit = Bounds{Default: DefaultLimit, Max: MaxAuditLimit}
)

// Normalize enforces the default and maximum limits.
func (b Bounds) Normalize(limit int) int {
	if limit <= 0 {
		return b.Default
	}
	if limit > b.Max {
		return b.Max
	}
	return limit
}

// NormalizeLimit applies the telemetry bounds.
func NormalizeLimit(limit int) int {
	return Telemetry.Normalize(limit)
}

// ParseLimit reads a raw query value. Empty input yields 0 so Normalize picks the default.
func ParseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if limit < 0 {
		return 0, fmt.Errorf("limit must not be negative")
	}
	return limit, nil
}
