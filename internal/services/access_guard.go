package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mincykel/backend/internal/models"
	pkgauth "github.com/mincykel/backend/pkg/auth"
	pkglogger "github.com/mincykel/backend/pkg/logger"
)

// AccessSessionRepository defines the login-throttling state operations
type AccessSessionRepository interface {
	GetOrCreate(ctx context.Context, accountID, ipAddress, code string) (*models.AccessSession, error)
	Update(ctx context.Context, session *models.AccessSession) error
}

// SessionRepository defines the expiring two-factor session store
type SessionRepository interface {
	Create(ctx context.Context, session *models.TwoFactorSession, ttl time.Duration) (*models.TwoFactorSession, error)
	GetByID(ctx context.Context, id string) (*models.TwoFactorSession, error)
	MarkVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	MostRecentByPhone(ctx context.Context, kind models.SessionKind, phoneNumber string) (*models.TwoFactorSession, error)
	MostRecentByIP(ctx context.Context, kind models.SessionKind, ipAddress string) (*models.TwoFactorSession, error)
}

// DeviceRegistry is the slice of the account repository the guard needs:
// reading and growing the per-account device lists.
type DeviceRegistry interface {
	GetDevice(ctx context.Context, accountID, ipAddress string) (*models.Device, error)
	AddDevice(ctx context.Context, accountID, ipAddress, label string, listing models.DeviceListing) (*models.Device, error)
}

const (
	// Failed attempts 3 through 6 gate the next attempt behind an
	// escalating cooldown; attempt 7 blacklists unknown devices.
	cooldownFloor      = 3
	blacklistThreshold = 7
)

// cooldownDuration is the escalation table for failed attempts in the
// cooldown band.
func cooldownDuration(attempts int) time.Duration {
	switch attempts {
	case 3:
		return 15 * time.Second
	case 4:
		return 30 * time.Second
	default:
		return 60 * time.Second
	}
}

// GuardConfig holds the tunables of the access-control guard.
type GuardConfig struct {
	SessionTTL  time.Duration // device-trust session validity
	SMSCooldown time.Duration // gap between device-verification code sends
}

// LoginOutcome is the result of a successful password check. Either the
// device was already trusted (tokens may be issued) or a device-trust
// session was opened and its id must be handed back to the client.
type LoginOutcome struct {
	RequiresDeviceVerification bool
	SessionID                  string
}

// AccessGuard throttles login attempts per (account, origin) and manages
// the device white/black lists. Escalating cooldowns slow brute force
// without permanently locking out known devices: a whitelisted device
// that reaches the blacklist threshold is stepped back to the cooldown
// band instead of being blocked.
type AccessGuard struct {
	devices     DeviceRegistry
	sessions    AccessSessionRepository
	twoFactor   SessionRepository
	notifier    Notifier
	config      GuardConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAccessGuard creates a new AccessGuard
func NewAccessGuard(
	devices DeviceRegistry,
	sessions AccessSessionRepository,
	twoFactor SessionRepository,
	notifier Notifier,
	config GuardConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AccessGuard {
	return &AccessGuard{
		devices:     devices,
		sessions:    sessions,
		twoFactor:   twoFactor,
		notifier:    notifier,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Authorize runs the login state machine for one attempt, in this order:
// blacklist check, cooldown check, password check, escalation or reset,
// device-trust handoff for unknown devices.
func (g *AccessGuard) Authorize(ctx context.Context, account *models.Account, password, origin string) (*LoginOutcome, error) {
	now := time.Now()

	device, err := g.devices.GetDevice(ctx, account.ID, origin)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		g.logger.Error("failed to look up device", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if device != nil && device.Listing == models.DeviceBlacklisted {
		g.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			AccountID:     account.ID,
			IPAddress:     origin,
			FailureReason: "device_blacklisted",
			Success:       false,
		})
		return nil, models.ErrDeviceBlacklisted
	}
	whitelisted := device != nil && device.Listing == models.DeviceWhitelisted

	code, err := pkgauth.GenerateOneTimeCode()
	if err != nil {
		return nil, models.ErrInternalServer
	}

	session, err := g.sessions.GetOrCreate(ctx, account.ID, origin, code)
	if err != nil {
		g.logger.Error("failed to load access session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Attempts made during an active cooldown are rejected without
	// escalating the penalty.
	if session.InCooldown(now) {
		return nil, &models.CooldownError{ExpiresAt: session.CooldownExpiresAt}
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, g.escalate(ctx, account, session, whitelisted, now)
	}

	session.LoginAttempts = 0
	if err := g.sessions.Update(ctx, session); err != nil {
		g.logger.Error("failed to reset login attempts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	g.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: account.ID,
		IPAddress: origin,
		Success:   true,
	})

	if whitelisted {
		return &LoginOutcome{}, nil
	}

	return g.beginDeviceVerification(ctx, account, session, origin, now)
}

// escalate applies the failed-attempt transition table and persists it.
func (g *AccessGuard) escalate(ctx context.Context, account *models.Account, session *models.AccessSession, whitelisted bool, now time.Time) error {
	session.LoginAttempts++
	attempts := session.LoginAttempts

	reason := "invalid_credentials"
	defer func() {
		g.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     session.IPAddress,
			FailureReason: reason,
			Success:       false,
		})
	}()

	switch {
	case attempts >= cooldownFloor && attempts < blacklistThreshold:
		session.CooldownExpiresAt = now.Add(cooldownDuration(attempts))
		if err := g.sessions.Update(ctx, session); err != nil {
			return models.ErrInternalServer
		}
		reason = "cooldown"
		return &models.CooldownError{ExpiresAt: session.CooldownExpiresAt}

	case attempts >= blacklistThreshold && whitelisted:
		// A known device is never permanently locked out: step back into
		// the cooldown band instead of blacklisting.
		session.CooldownExpiresAt = now.Add(cooldownDuration(blacklistThreshold - 1))
		session.LoginAttempts = blacklistThreshold - 1
		if err := g.sessions.Update(ctx, session); err != nil {
			return models.ErrInternalServer
		}
		reason = "soft_limited"
		return &models.CooldownError{ExpiresAt: session.CooldownExpiresAt}

	case attempts >= blacklistThreshold:
		if _, err := g.devices.AddDevice(ctx, account.ID, session.IPAddress, "", models.DeviceBlacklisted); err != nil && !errors.Is(err, models.ErrConflict) {
			g.logger.Error("failed to blacklist device", slog.Any("error", err))
			return models.ErrInternalServer
		}
		if err := g.sessions.Update(ctx, session); err != nil {
			return models.ErrInternalServer
		}
		reason = "device_blacklisted"
		return &models.InvalidCredentialsError{AttemptsLeft: 0}

	default:
		if err := g.sessions.Update(ctx, session); err != nil {
			return models.ErrInternalServer
		}
		return &models.InvalidCredentialsError{AttemptsLeft: blacklistThreshold - attempts}
	}
}

// beginDeviceVerification opens a device-trust session for a successful
// login from an unknown origin and sends its code out-of-band.
func (g *AccessGuard) beginDeviceVerification(ctx context.Context, account *models.Account, session *models.AccessSession, origin string, now time.Time) (*LoginOutcome, error) {
	if session.InSMSCooldown(now) {
		return nil, &models.SMSCooldownError{ExpiresAt: session.SMSCooldownExpiresAt}
	}

	code, err := pkgauth.GenerateOneTimeCode()
	if err != nil {
		return nil, models.ErrInternalServer
	}

	trustSession, err := g.twoFactor.Create(ctx, &models.TwoFactorSession{
		Kind:      models.KindTrustDevice,
		Code:      code,
		AccountID: account.ID,
		IPAddress: origin,
	}, g.config.SessionTTL)
	if err != nil {
		g.logger.Error("failed to create device-trust session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Best-effort: a failed send leaves the session usable via re-login
	// after the sms cooldown.
	message := fmt.Sprintf("Your device verification code is %s", code)
	if err := g.notifier.Send(ctx, message, account.PhoneNumber); err != nil {
		g.logger.Warn("device verification sms failed", slog.Any("error", err))
	}

	session.SMSCooldownExpiresAt = now.Add(g.config.SMSCooldown)
	if err := g.sessions.Update(ctx, session); err != nil {
		g.logger.Error("failed to persist sms cooldown", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &LoginOutcome{
		RequiresDeviceVerification: true,
		SessionID:                  trustSession.ID,
	}, nil
}

// TrustDevice verifies a device-trust session and whitelists its origin.
// This is the only path that grows an account's white-list.
func (g *AccessGuard) TrustDevice(ctx context.Context, sessionID, code, label string) (string, error) {
	session, err := g.twoFactor.GetByID(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if err := verifySession(session, models.KindTrustDevice, code); err != nil {
		return "", err
	}

	if _, err := g.devices.AddDevice(ctx, session.AccountID, session.IPAddress, label, models.DeviceWhitelisted); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Already listed; still consume the session below.
			g.logger.Info("device already listed", slog.String("account_id", session.AccountID))
		} else {
			g.logger.Error("failed to whitelist device", slog.Any("error", err))
			return "", models.ErrInternalServer
		}
	}

	if err := g.twoFactor.Delete(ctx, sessionID); err != nil {
		return "", err
	}

	g.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "device_trusted",
		AccountID: session.AccountID,
		IPAddress: session.IPAddress,
		Success:   true,
	})

	return session.AccountID, nil
}

// verifySession checks kind, expiry and code, in that order. The store
// already treats expired sessions as absent; the expiry check here keeps
// the ordering explicit for sessions read moments before their deadline.
func verifySession(session *models.TwoFactorSession, kind models.SessionKind, code string) error {
	if session.Kind != kind {
		return models.ErrNotFound
	}
	if session.IsExpired(time.Now()) {
		return models.ErrNotFound
	}
	if session.Code != code {
		return models.ErrUnauthorized
	}
	return nil
}
