package domain

import (
	"fmt"
	"strings"
)

const (
	maxLabelLength = 62
	punycodePrefix = "xn--"
)

// NormalizeHandleName trims and lowercases a user provided handle.
func NormalizeHandleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateHandleName checks that name is in the form label@space with both
// labels made of [a-z0-9-], at most 62 chars long, without leading, trailing
// or consecutive hyphens. Punycode labels (xn--) are checked after the
// prefix.
func ValidateHandleName(name string) error {
	parts := strings.Split(name, "@")
	if len(parts) != 2 {
		return fmt.Errorf("%w: %q must be in the form label@space", ErrInvalidHandleName, name)
	}
	for _, label := range parts {
		if !isValidLabel(label) {
			return fmt.Errorf("%w: %q has an invalid label %q", ErrInvalidHandleName, name, label)
		}
	}
	return nil
}

// ParseHandleName normalizes and validates name.
func ParseHandleName(name string) (string, error) {
	name = NormalizeHandleName(name)
	if err := ValidateHandleName(name); err != nil {
		return "", err
	}
	return name, nil
}

func isValidLabel(label string) bool {
	if label == "" || len(label) > maxLabelLength {
		return false
	}
	verifyRange := label
	if strings.HasPrefix(label, punycodePrefix) && len(label) > len(punycodePrefix) {
		verifyRange = label[len(punycodePrefix):]
	}
	if verifyRange[0] == '-' || verifyRange[len(verifyRange)-1] == '-' {
		return false
	}
	var prev rune
	for _, c := range verifyRange {
		if c == '-' && prev == '-' {
			return false
		}
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' {
			return false
		}
		prev = c
	}
	return true
}
