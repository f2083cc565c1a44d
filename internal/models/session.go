package models

import "time"

// SessionKind discriminates the OTP-protected flows a TwoFactorSession
// can belong to.
type SessionKind string

const (
	KindTrustDevice   SessionKind = "trust-device"
	KindRegistration  SessionKind = "bikeowner-registration"
	KindPasswordReset SessionKind = "password-reset"
)

// TwoFactorSession is a generic, kind-tagged, time-boxed record protected
// by a one-time code. Registration sessions carry phone number + password
// hash, device-trust sessions carry account id + origin, password-reset
// sessions carry phone number + a verified flag. A session is single-use:
// once consumed it is deleted.
//
// The store does not sweep expired sessions; every read treats an expired
// session as absent.
type TwoFactorSession struct {
	ID        string
	Kind      SessionKind
	Code      string
	ExpiresAt time.Time
	Verified  bool

	// Kind-specific payload, unused fields stay empty.
	PhoneNumber  string
	PasswordHash string
	AccountID    string
	IPAddress    string

	CreatedAt time.Time
}

// IsExpired reports whether the session is past its absolute expiry.
func (s *TwoFactorSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
