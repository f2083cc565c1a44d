package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error code
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes an arbitrary payload with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteLocked reports a blacklisted device (423).
func WriteLocked(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusLocked, "device_blacklisted", message)
}

// WriteTooManyRequests reports an active cooldown window (429). The
// expiry is included so clients can back off exactly.
func WriteTooManyRequests(w http.ResponseWriter, message string, cooldownExpiresAt time.Time) {
	WriteJSON(w, http.StatusTooManyRequests, struct {
		Error             string     `json:"error"`
		Message           string     `json:"message"`
		CooldownExpiresAt *time.Time `json:"cooldown_expires_at,omitempty"`
	}{
		Error:             "rate_limited",
		Message:           message,
		CooldownExpiresAt: nonZeroTime(cooldownExpiresAt),
	})
}

// WriteTooEarly reports an active SMS re-send cooldown (425).
func WriteTooEarly(w http.ResponseWriter, message string, smsCooldownExpiresAt time.Time) {
	WriteJSON(w, http.StatusTooEarly, struct {
		Error                string     `json:"error"`
		Message              string     `json:"message"`
		SMSCooldownExpiresAt *time.Time `json:"sms_cooldown_expires_at,omitempty"`
	}{
		Error:                "sms_cooldown",
		Message:              message,
		SMSCooldownExpiresAt: nonZeroTime(smsCooldownExpiresAt),
	})
}

// WriteDeviceVerificationRequired signals that login succeeded from an
// unknown device and a verification code was sent (307). The session id
// identifies the pending device-trust session.
func WriteDeviceVerificationRequired(w http.ResponseWriter, sessionID string) {
	WriteJSON(w, http.StatusTemporaryRedirect, struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}{
		Message:   "device verification required, a code has been sent by sms",
		SessionID: sessionID,
	})
}

func nonZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
