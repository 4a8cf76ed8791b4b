// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxNameLength      = 100
	MaxStockCodeLength = 10
	MaxFieldValueLen   = 64
)

// --- String Validators ---

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

var (
	stockCodeRegex = regexp.MustCompile(`^[0-9A-Za-z]+$`)
	fieldNameRegex = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// ValidateStockCode accepts an empty code (a row not yet filled in) or up to
// ten ASCII letters and digits, e.g. "2330" or "00878".
func ValidateStockCode(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxStockCodeLength, "stock code"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, stockCodeRegex, "stock code", "letters and digits")
}

// ValidateFieldPatch checks the shape of a single-field edit before it reaches the domain.
func ValidateFieldPatch(field, value string) error {
	if err := ValidateStringRegex(field, fieldNameRegex, "field", "letters only"); err != nil {
		return err
	}
	if field == "name" {
		return ValidateStringMaxLength(value, MaxNameLength, field)
	}
	if field == "stockCode" {
		return ValidateStockCode(value)
	}
	return ValidateStringMaxLength(value, MaxFieldValueLen, field)
}
