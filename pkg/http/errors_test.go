package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNotFound(w, "bike not found")

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Error != "not_found" {
		t.Errorf("error code = %q, want not_found", resp.Error)
	}
}

func TestWriteTooManyRequestsIncludesCooldown(t *testing.T) {
	w := httptest.NewRecorder()
	expires := time.Now().Add(30 * time.Second).UTC()
	WriteTooManyRequests(w, "cooldown active", expires)

	if w.Code != 429 {
		t.Errorf("status = %d, want 429", w.Code)
	}

	var resp struct {
		CooldownExpiresAt *time.Time `json:"cooldown_expires_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.CooldownExpiresAt == nil || !resp.CooldownExpiresAt.Equal(expires) {
		t.Errorf("cooldown_expires_at = %v, want %v", resp.CooldownExpiresAt, expires)
	}
}

func TestWriteDeviceVerificationRequired(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDeviceVerificationRequired(w, "session-123")

	if w.Code != 307 {
		t.Errorf("status = %d, want 307", w.Code)
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.SessionID != "session-123" {
		t.Errorf("session_id = %q, want session-123", resp.SessionID)
	}
}

func TestWriteLocked(t *testing.T) {
	w := httptest.NewRecorder()
	WriteLocked(w, "device is blocked")

	if w.Code != 423 {
		t.Errorf("status = %d, want 423", w.Code)
	}
}
