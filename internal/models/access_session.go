package models

import "time"

// AccessSession tracks login throttling state for one (account, origin)
// pair. It is created lazily on the first failed-or-unknown-device login
// and reused across logins; it is never deleted.
type AccessSession struct {
	ID                   string
	AccountID            string
	IPAddress            string
	LoginAttempts        int
	Code                 string
	CooldownExpiresAt    time.Time
	SMSCooldownExpiresAt time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// InCooldown reports whether further login attempts are currently gated.
func (s *AccessSession) InCooldown(now time.Time) bool {
	return now.Before(s.CooldownExpiresAt)
}

// InSMSCooldown reports whether re-sending a device-verification code is
// currently gated.
func (s *AccessSession) InSMSCooldown(now time.Time) bool {
	return now.Before(s.SMSCooldownExpiresAt)
}
