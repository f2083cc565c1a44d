package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/models"
	pkgauth "github.com/mincykel/backend/pkg/auth"
	pkglogger "github.com/mincykel/backend/pkg/logger"
)

// AccountRepository defines the account persistence operations
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account, originIP, originLabel string) (*models.Account, error)
	UpdatePasswordHash(ctx context.Context, accountID, passwordHash string) error
	GetDevice(ctx context.Context, accountID, ipAddress string) (*models.Device, error)
	AddDevice(ctx context.Context, accountID, ipAddress, label string, listing models.DeviceListing) (*models.Device, error)
	ListDevices(ctx context.Context, accountID string) ([]*models.Device, error)
}

// AuthServiceConfig holds the lifetimes of the out-of-band verification
// flows.
type AuthServiceConfig struct {
	RegistrationWindow time.Duration
	ResetWindow        time.Duration
	SMSCooldown        time.Duration
}

// LoginResult carries either a token pair or, for logins from unknown
// devices, the id of the device-trust session the client must complete.
type LoginResult struct {
	AccessToken                string
	RefreshToken               string
	RequiresDeviceVerification bool
	SessionID                  string
}

// AuthResponse is a freshly issued token pair.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthService implements login, registration and password reset. Both
// registration and reset are two-step flows backed by expiring sessions
// whose codes travel out-of-band over SMS.
type AuthService struct {
	accounts     AccountRepository
	sessions     SessionRepository
	guard        *AccessGuard
	tokenManager *auth.TokenManager
	notifier     Notifier
	config       AuthServiceConfig
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accounts AccountRepository,
	sessions SessionRepository,
	guard *AccessGuard,
	tokenManager *auth.TokenManager,
	notifier Notifier,
	config AuthServiceConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		accounts:     accounts,
		sessions:     sessions,
		guard:        guard,
		tokenManager: tokenManager,
		notifier:     notifier,
		config:       config,
		logger:       logger,
		auditLogger:  auditLogger,
	}
}

// Login authenticates an account from the given origin. The guard owns
// throttling, device listing and the unknown-device handoff.
func (s *AuthService) Login(ctx context.Context, phoneNumber, password, origin string) (*LoginResult, error) {
	account, err := s.accounts.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	outcome, err := s.guard.Authorize(ctx, account, password, origin)
	if err != nil {
		return nil, err
	}

	if outcome.RequiresDeviceVerification {
		return &LoginResult{
			RequiresDeviceVerification: true,
			SessionID:                  outcome.SessionID,
		}, nil
	}

	tokens, err := s.issueTokens(account.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

// TrustDevice completes the unknown-device handoff and logs the caller in.
func (s *AuthService) TrustDevice(ctx context.Context, sessionID, code, label string) (*AuthResponse, error) {
	accountID, err := s.guard.TrustDevice(ctx, sessionID, code, label)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(accountID)
}

// Register opens a registration session for a new phone number and sends
// its code over SMS. The account itself is not created until the code is
// verified. Session creation is rate-limited per requesting origin.
func (s *AuthService) Register(ctx context.Context, phoneNumber, password, origin string) (string, error) {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return "", &models.ValidationError{Message: err.Error()}
	}

	_, err := s.accounts.GetByPhoneNumber(ctx, phoneNumber)
	if err == nil {
		return "", models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.checkOriginSendRate(ctx, models.KindRegistration, origin); err != nil {
		return "", err
	}

	passwordHash, err := pkgauth.HashPassword(password)
	if err != nil {
		return "", models.ErrInternalServer
	}

	code, err := pkgauth.GenerateOneTimeCode()
	if err != nil {
		return "", models.ErrInternalServer
	}

	session, err := s.sessions.Create(ctx, &models.TwoFactorSession{
		Kind:         models.KindRegistration,
		Code:         code,
		PhoneNumber:  phoneNumber,
		PasswordHash: passwordHash,
		IPAddress:    origin,
	}, s.config.RegistrationWindow)
	if err != nil {
		s.logger.Error("failed to create registration session", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	message := fmt.Sprintf("Your registration code is %s", code)
	if err := s.notifier.Send(ctx, message, phoneNumber); err != nil {
		s.logger.Error("registration sms failed", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.logger.Info("registration session opened",
		slog.String("phone_number", pkglogger.SanitizedPhone(phoneNumber)))

	return session.ID, nil
}

// VerifyRegistration consumes a registration session and creates the
// account, seeding the white-list with the verifying origin.
func (s *AuthService) VerifyRegistration(ctx context.Context, sessionID, code, origin, originLabel string) (*AuthResponse, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := verifySession(session, models.KindRegistration, code); err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		PhoneNumber:  session.PhoneNumber,
		PasswordHash: session.PasswordHash,
	}, origin, originLabel)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("failed to consume registration session", slog.Any("error", err))
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "account_registered",
		AccountID: account.ID,
		IPAddress: origin,
		Success:   true,
	})

	return s.issueTokens(account.ID)
}

// RequestPasswordReset opens a reset session for an existing account and
// sends its code over SMS.
func (s *AuthService) RequestPasswordReset(ctx context.Context, phoneNumber string) (string, error) {
	account, err := s.accounts.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrNotFound
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.checkSendRate(ctx, models.KindPasswordReset, phoneNumber); err != nil {
		return "", err
	}

	code, err := pkgauth.GenerateOneTimeCode()
	if err != nil {
		return "", models.ErrInternalServer
	}

	session, err := s.sessions.Create(ctx, &models.TwoFactorSession{
		Kind:        models.KindPasswordReset,
		Code:        code,
		PhoneNumber: phoneNumber,
		AccountID:   account.ID,
	}, s.config.ResetWindow)
	if err != nil {
		s.logger.Error("failed to create reset session", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	message := fmt.Sprintf("Your password reset code is %s", code)
	if err := s.notifier.Send(ctx, message, phoneNumber); err != nil {
		s.logger.Error("reset sms failed", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	return session.ID, nil
}

// VerifyPasswordReset checks the reset code and marks the session
// verified so a new password may be submitted against it.
func (s *AuthService) VerifyPasswordReset(ctx context.Context, sessionID, code string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := verifySession(session, models.KindPasswordReset, code); err != nil {
		return err
	}

	return s.sessions.MarkVerified(ctx, sessionID)
}

// ConfirmPasswordReset consumes a verified reset session, rewrites the
// account's password hash and logs the caller in.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, sessionID, newPassword string) (*AuthResponse, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Kind != models.KindPasswordReset {
		return nil, models.ErrNotFound
	}
	if !session.Verified {
		return nil, models.ErrResetNotVerified
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, &models.ValidationError{Message: err.Error()}
	}

	passwordHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	if err := s.accounts.UpdatePasswordHash(ctx, session.AccountID, passwordHash); err != nil {
		s.logger.Error("failed to update password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("failed to consume reset session", slog.Any("error", err))
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "password_reset",
		AccountID: session.AccountID,
		Success:   true,
	})

	return s.issueTokens(session.AccountID)
}

// RefreshToken exchanges a valid refresh token for a fresh token pair.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.tokenManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	if claims.Type != "refresh" {
		return nil, models.ErrUnauthorized
	}

	if _, err := s.accounts.GetByID(ctx, claims.AccountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}

	return s.issueTokens(claims.AccountID)
}

// GetAccount returns the account for an authenticated caller.
func (s *AuthService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

// ListDevices returns the device listings of an account.
func (s *AuthService) ListDevices(ctx context.Context, accountID string) ([]*models.Device, error) {
	return s.accounts.ListDevices(ctx, accountID)
}

// checkSendRate caps how often verification sessions may be opened for
// one phone number, keyed on the most recent session of the same kind.
func (s *AuthService) checkSendRate(ctx context.Context, kind models.SessionKind, phoneNumber string) error {
	recent, err := s.sessions.MostRecentByPhone(ctx, kind, phoneNumber)
	return s.sendRateVerdict(recent, err)
}

// checkOriginSendRate is the same cap keyed on the requesting origin.
// Registration uses it: the phone number is not yet bound to anyone, so
// the origin is the only key an abuser cannot freely vary.
func (s *AuthService) checkOriginSendRate(ctx context.Context, kind models.SessionKind, origin string) error {
	recent, err := s.sessions.MostRecentByIP(ctx, kind, origin)
	return s.sendRateVerdict(recent, err)
}

func (s *AuthService) sendRateVerdict(recent *models.TwoFactorSession, err error) error {
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to check session rate", slog.Any("error", err))
		return models.ErrInternalServer
	}

	elapsed := time.Since(recent.CreatedAt)
	if elapsed < s.config.SMSCooldown {
		return &models.SessionRateLimitError{RetryAfter: s.config.SMSCooldown - elapsed}
	}
	return nil
}

func (s *AuthService) issueTokens(accountID string) (*AuthResponse, error) {
	accessToken, err := s.tokenManager.GenerateAccessToken(accountID)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tokenManager.GenerateRefreshToken(accountID)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return &AuthResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
