package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource state conflict")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Guard / device-trust errors
	ErrDeviceBlacklisted = errors.New("device is blacklisted")
	ErrCooldownActive    = errors.New("login cooldown active")
	ErrSMSCooldownActive = errors.New("sms cooldown active")

	// Transfer state errors
	ErrBikeStolen          = errors.New("bike is reported stolen")
	ErrBikeNotTransferable = errors.New("bike is not transferable")
	ErrTransferClosed      = errors.New("transfer is already closed")

	// Password reset
	ErrResetNotVerified = errors.New("password reset session not verified")
)

// InvalidCredentialsError is returned on a failed login attempt while the
// account still has attempts left before escalation.
type InvalidCredentialsError struct {
	AttemptsLeft int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("wrong phone number or password, %d attempts left", e.AttemptsLeft)
}

func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrUnauthorized
}

// CooldownError is returned while a login cooldown window is active.
type CooldownError struct {
	ExpiresAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("login cooldown active until %s", e.ExpiresAt.Format(time.RFC3339))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// SMSCooldownError is returned when a device-verification code is requested
// again before the previous send window has elapsed.
type SMSCooldownError struct {
	ExpiresAt time.Time
}

func (e *SMSCooldownError) Error() string {
	return fmt.Sprintf("verification code already sent, next send allowed at %s", e.ExpiresAt.Format(time.RFC3339))
}

func (e *SMSCooldownError) Is(target error) bool {
	return target == ErrSMSCooldownActive
}

// SessionRateLimitError is returned when a two-factor session of the same
// kind was created too recently for the same subject.
type SessionRateLimitError struct {
	RetryAfter time.Duration
}

func (e *SessionRateLimitError) Error() string {
	return fmt.Sprintf("a session is already active, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *SessionRateLimitError) Is(target error) bool {
	return target == ErrCooldownActive
}

// ValidationError carries a user-facing message for malformed input
// (frame numbers, phone numbers, weak passwords).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrBadRequest
}
