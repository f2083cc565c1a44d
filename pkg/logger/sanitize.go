package logger

import (
	"log/slog"
	"strings"
)

// SanitizedPhone masks a phone number for logging, keeping the country
// prefix and last two digits (e.g., "+45******78").
func SanitizedPhone(phone string) string {
	if len(phone) < 6 {
		return "[invalid-phone]"
	}

	keepFront := 3
	keepBack := 2
	masked := len(phone) - keepFront - keepBack
	if masked < 1 {
		return "[invalid-phone]"
	}

	return phone[:keepFront] + strings.Repeat("*", masked) + phone[len(phone)-keepBack:]
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := map[string]bool{
		"password":     true,
		"token":        true,
		"secret":       true,
		"otp":          true,
		"code":         true,
		"phone":        true,
		"phone_number": true,
		"auth":         true,
	}

	query := strings.ToLower(rawQuery)
	for param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
