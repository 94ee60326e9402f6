// Package plate validates and canonicalizes Ecuadorian license plates.
// Normalization is pure: equal inputs modulo case, whitespace and separators
// always produce the same canonical plate.
package plate

import (
	"regexp"
	"strings"

	dErrors "ecplacas/pkg/domain-errors"
)

// Plate is a canonical plate string: 2-3 uppercase letters followed by 4
// digits, e.g. "ABC0123".
type Plate string

func (p Plate) String() string { return string(p) }

var (
	// Accepted shapes after cleaning. Three-digit forms are legacy plates
	// that the registry stores zero-padded.
	platePattern = regexp.MustCompile(`^([A-Z]{2,3})([0-9]{3,4})$`)

	// Characters that survive cleaning.
	alnumPattern = regexp.MustCompile(`[^A-Z0-9]`)
)

// Normalize strips whitespace and punctuation, uppercases, validates the
// letters-digits shape and zero-pads three-digit plates ("ABC123" becomes
// "ABC0123"). Returns CodeInvalidFormat for anything else.
func Normalize(raw string) (Plate, error) {
	cleaned := alnumPattern.ReplaceAllString(strings.ToUpper(strings.TrimSpace(raw)), "")

	if len(cleaned) < 6 || len(cleaned) > 7 {
		return "", dErrors.Newf(dErrors.CodeInvalidFormat, "plate %q must have 2-3 letters and 3-4 digits", raw)
	}

	m := platePattern.FindStringSubmatch(cleaned)
	if m == nil {
		return "", dErrors.Newf(dErrors.CodeInvalidFormat, "plate %q does not match the letters-digits format", raw)
	}

	letters, digits := m[1], m[2]
	if len(digits) == 3 {
		digits = "0" + digits
	}
	return Plate(letters + digits), nil
}

// IsValid reports whether raw normalizes to a well-formed plate.
func IsValid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
