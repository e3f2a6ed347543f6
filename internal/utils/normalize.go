package utils

import (
	"strings"
)

// NormalizePlate collapses OCR output into the registry's natural key form:
// no whitespace, no dashes, upper case.
func NormalizePlate(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	return strings.ToUpper(normalized)
}

// NormalizePhone returns the E.164 form of a stored phone number. Numbers
// already carrying a leading "+" pass through unchanged; anything else gets
// the default country calling code prepended exactly once. The empty string
// stays empty, that case is the caller's MissingPhone path.
func NormalizePhone(raw, defaultCountryCode string) string {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return defaultCountryCode + phone
}
