package phone

import (
	"regexp"
	"strings"

	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
)

const countryCode = "91"

var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// ErrInvalid is returned for anything that is not a 10 digit Indian mobile number.
var ErrInvalid = pkgerrors.New(pkgerrors.CodeValidation, "invalid phone number format")

var stripper = strings.NewReplacer(" ", "", "-", "", "+", "", "(", "", ")", "")

// Normalize strips formatting and the country prefix, then validates the result.
func Normalize(raw string) (string, error) {
	cleaned := stripper.Replace(strings.TrimSpace(raw))
	if len(cleaned) == 12 && strings.HasPrefix(cleaned, countryCode) {
		cleaned = cleaned[len(countryCode):]
	}
	if !mobilePattern.MatchString(cleaned) {
		return "", ErrInvalid
	}
	return cleaned, nil
}

// Valid reports whether raw normalizes to a usable number.
func Valid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}

// Mask hides all but the last four digits for log lines.
func Mask(number string) string {
	if len(number) <= 4 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
