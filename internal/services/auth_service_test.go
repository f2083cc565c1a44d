package services

import (
	"context"
	"testing"
	"time"

	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(accounts *mockAccountRepo, sessions *mockSessionRepo, notifier *mockNotifier) *AuthService {
	guard := NewAccessGuard(
		accounts,
		&mockAccessSessionRepo{},
		sessions,
		notifier,
		GuardConfig{SessionTTL: 5 * time.Minute, SMSCooldown: 60 * time.Second},
		testLogger(),
		testAuditLogger(),
	)
	tm := auth.NewTokenManager("test-secret-at-least-32-characters!!", 30*time.Minute, 7*24*time.Hour)
	return NewAuthService(
		accounts,
		sessions,
		guard,
		tm,
		notifier,
		AuthServiceConfig{
			RegistrationWindow: 5 * time.Minute,
			ResetWindow:        5 * time.Minute,
			SMSCooldown:        60 * time.Second,
		},
		testLogger(),
		testAuditLogger(),
	)
}

func TestAuthService_Login(t *testing.T) {
	t.Run("unknown phone number", func(t *testing.T) {
		svc := newTestAuthService(&mockAccountRepo{}, &mockSessionRepo{}, &mockNotifier{})

		_, err := svc.Login(context.Background(), "+4599999999", testPassword, "203.0.113.7")

		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("known device gets tokens", func(t *testing.T) {
		accounts := &mockAccountRepo{
			getByPhoneNumberFn: func(ctx context.Context, phone string) (*models.Account, error) {
				return testAccount(), nil
			},
			getDeviceFn: func(ctx context.Context, accountID, ip string) (*models.Device, error) {
				return whitelistedDevice(), nil
			},
		}
		svc := newTestAuthService(accounts, &mockSessionRepo{}, &mockNotifier{})

		result, err := svc.Login(context.Background(), "+4520304050", testPassword, "203.0.113.7")

		require.NoError(t, err)
		assert.False(t, result.RequiresDeviceVerification)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
	})

	t.Run("unknown device defers to verification", func(t *testing.T) {
		accounts := &mockAccountRepo{
			getByPhoneNumberFn: func(ctx context.Context, phone string) (*models.Account, error) {
				return testAccount(), nil
			},
		}
		svc := newTestAuthService(accounts, &mockSessionRepo{}, &mockNotifier{})

		result, err := svc.Login(context.Background(), "+4520304050", testPassword, "198.51.100.4")

		require.NoError(t, err)
		assert.True(t, result.RequiresDeviceVerification)
		assert.Equal(t, "tfs-1", result.SessionID)
		assert.Empty(t, result.AccessToken)
	})
}

func TestAuthService_Register(t *testing.T) {
	t.Run("opens session and sends code", func(t *testing.T) {
		var created *models.TwoFactorSession
		sessions := &mockSessionRepo{
			createFn: func(ctx context.Context, session *models.TwoFactorSession, ttl time.Duration) (*models.TwoFactorSession, error) {
				session.ID = "tfs-reg"
				created = session
				return session, nil
			},
		}
		notifier := &mockNotifier{}
		svc := newTestAuthService(&mockAccountRepo{}, sessions, notifier)

		sessionID, err := svc.Register(context.Background(), "+4520304050", testPassword, "198.51.100.4")

		require.NoError(t, err)
		assert.Equal(t, "tfs-reg", sessionID)
		require.NotNil(t, created)
		assert.Equal(t, models.KindRegistration, created.Kind)
		assert.Equal(t, "+4520304050", created.PhoneNumber)
		assert.Equal(t, "198.51.100.4", created.IPAddress)
		assert.NotEmpty(t, created.PasswordHash)
		assert.NotEqual(t, testPassword, created.PasswordHash)
		assert.Len(t, notifier.sent, 1)
	})

	t.Run("existing phone number", func(t *testing.T) {
		accounts := &mockAccountRepo{
			getByPhoneNumberFn: func(ctx context.Context, phone string) (*models.Account, error) {
				return testAccount(), nil
			},
		}
		svc := newTestAuthService(accounts, &mockSessionRepo{}, &mockNotifier{})

		_, err := svc.Register(context.Background(), "+4520304050", testPassword, "198.51.100.4")

		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("password too short", func(t *testing.T) {
		svc := newTestAuthService(&mockAccountRepo{}, &mockSessionRepo{}, &mockNotifier{})

		_, err := svc.Register(context.Background(), "+4520304050", "short", "198.51.100.4")

		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("recent session from the same origin rate limits", func(t *testing.T) {
		sessions := &mockSessionRepo{
			mostRecentByIPFn: func(ctx context.Context, kind models.SessionKind, ip string) (*models.TwoFactorSession, error) {
				assert.Equal(t, "198.51.100.4", ip)
				return &models.TwoFactorSession{CreatedAt: time.Now().Add(-10 * time.Second)}, nil
			},
		}
		svc := newTestAuthService(&mockAccountRepo{}, sessions, &mockNotifier{})

		// a different phone number does not dodge the origin cap
		_, err := svc.Register(context.Background(), "+4520304099", testPassword, "198.51.100.4")

		var rateErr *models.SessionRateLimitError
		require.ErrorAs(t, err, &rateErr)
		assert.Greater(t, rateErr.RetryAfter, time.Duration(0))
	})

	t.Run("stale session does not rate limit", func(t *testing.T) {
		sessions := &mockSessionRepo{
			mostRecentByIPFn: func(ctx context.Context, kind models.SessionKind, ip string) (*models.TwoFactorSession, error) {
				return &models.TwoFactorSession{CreatedAt: time.Now().Add(-5 * time.Minute)}, nil
			},
		}
		svc := newTestAuthService(&mockAccountRepo{}, sessions, &mockNotifier{})

		_, err := svc.Register(context.Background(), "+4520304050", testPassword, "198.51.100.4")

		assert.NoError(t, err)
	})
}

func TestAuthService_VerifyRegistration(t *testing.T) {
	regSession := &models.TwoFactorSession{
		ID:           "tfs-reg",
		Kind:         models.KindRegistration,
		Code:         "123456",
		PhoneNumber:  "+4520304050",
		PasswordHash: "$2a$12$hash",
		ExpiresAt:    time.Now().Add(5 * time.Minute),
	}

	t.Run("creates account and consumes session", func(t *testing.T) {
		deleted := false
		sessions := &mockSessionRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.TwoFactorSession, error) {
				s := *regSession
				return &s, nil
			},
			deleteFn: func(ctx context.Context, id string) error {
				deleted = true
				return nil
			},
		}
		var createdAccount *models.Account
		accounts := &mockAccountRepo{
			createFn: func(ctx context.Context, account *models.Account, originIP, originLabel string) (*models.Account, error) {
				account.ID = "acct-new"
				createdAccount = account
				assert.Equal(t, "198.51.100.4", originIP)
				return account, nil
			},
		}
		svc := newTestAuthService(accounts, sessions, &mockNotifier{})

		tokens, err := svc.VerifyRegistration(context.Background(), "tfs-reg", "123456", "198.51.100.4", "iPhone")

		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		require.NotNil(t, createdAccount)
		assert.Equal(t, "+4520304050", createdAccount.PhoneNumber)
		assert.Equal(t, "$2a$12$hash", createdAccount.PasswordHash)
		assert.True(t, deleted)
	})

	t.Run("wrong code", func(t *testing.T) {
		sessions := &mockSessionRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.TwoFactorSession, error) {
				s := *regSession
				return &s, nil
			},
		}
		svc := newTestAuthService(&mockAccountRepo{}, sessions, &mockNotifier{})

		_, err := svc.VerifyRegistration(context.Background(), "tfs-reg", "654321", "198.51.100.4", "")

		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("expired session", func(t *testing.T) {
		sessions := &mockSessionRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.TwoFactorSession, error) {
				s := *regSession
				s.ExpiresAt = time.Now().Add(-time.Minute)
				return &s, nil
			},
		}
		svc := newTestAuthService(&mockAccountRepo{}, sessions, &mockNotifier{})

		_, err := svc.VerifyRegistration(context.Background(), "tfs-reg", "123456", "198.51.100.4", "")

		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestAuthService_PasswordReset(t *testing.T) {
	resetSession := &models.TwoFactorSession{
		ID:          "tfs-reset",
		Kind:        models.KindPasswordReset,
		Code:        "123456",
		PhoneNumber: "+4520304050",
		AccountID:   "acct-1",
		ExpiresAt:   time.Now().Add(5 * time.Minute),
	}

	t.Run("request opens session for existing account", func(t *testing.T) {
		accounts := &mockAccountRepo{
			getByPhoneNumberFn: func(ctx context.Context, phone string) (*models.Account, error) {
				return testAccount(), nil
			},
		}
		var created *models.TwoFactorSession
		sessions := &mockSessionRepo{
			createFn: func(ctx context.Context, session *models.TwoFactorSession, ttl time.Duration) (*models.TwoFactorSession, error) {
				session.ID = "tfs-reset"
				created = session
				return session, nil
			},
		}
		notifier := &mockNotifier{}
		svc := newTestAuthService(accounts, sessions, notifier)

		sessionID, err := svc.RequestPasswordReset(context.Background(), "+4520304050")

		require.NoError(t, err)
		assert.Equal(t, "tfs-reset", sessionID)
		assert.Equal(t, models.KindPasswordReset, created.Kind)
		assert.Equal(t, "acct-1", created.AccountID)
		assert.Len(t, notifier.sent, 1)
	})

	t.Run("request rate limits per phone number", func(t *testing.T) {
		accounts := &mockAccountRepo{
			getByPhoneNumberFn: func(ctx context.Context, phone string) (*models.Account, error) {
				return testAccount(), nil
			},
		}
		sessions := &mockSessionRepo{
			mostRecentByPhoneFn: func(ctx context.Context, kind models.SessionKind, phone string) (*models.TwoFactorSession, error) {
				assert.Equal(t, models.KindPasswordReset, kind)
				assert.Equal(t, "+4520304050", phone)
				return &models.TwoFactorSession{CreatedAt: time.Now().Add(-10 * time.Second)}, nil
			},
		}
		svc := newTestAuthService(accounts, sessions, &mockNotifier{})

		_, err := svc.RequestPasswordReset(context.Background(), "+4520304050")

		var rateErr *models.SessionRateLimitError
		require.ErrorAs(t, err, &rateErr)
	})

	t.Run("request for unknown phone", func(t *testing.T) {
		svc := newTestAuthService(&mockAccountRepo{}, &mockSessionRepo{}, &mockNotifier{})

		_, err := svc.RequestPasswordReset(context.Background(), "+4599999999")

		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("verify marks session verified", func(t *testing.T) {
		verified := false
		sessions := &mockSessionRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.TwoFactorSession, error) {
				s := *resetSession
				return &s, nil
			},
			markVerifiedFn: func(ctx context.Context, id string) error {
				verified = true
				return nil
			},
		}
		svc := newTestAuthService(&mockAccountRepo{}, sessions, &mockNotifier{})

		err := svc.VerifyPasswordReset(context.Background(), "tfs-reset", "123456")

		require.NoError(t, err)
		assert.True(t, verified)
	})

	t.Run("confirm before verify", func(t *testing.T) {
		sessions := &mockSessionRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.TwoFactorSession, error) {
				s := *resetSession
				return &s, nil
			},
		}
		svc := newTestAuthService(&mockAccountRepo{}, sessions, &mockNotifier{})

		_, err := svc.ConfirmPasswordReset(context.Background(), "tfs-reset", "a-new-password-42")

		assert.ErrorIs(t, err, models.ErrResetNotVerified)
	})

	t.Run("confirm rewrites hash and consumes session", func(t *testing.T) {
		deleted := false
		sessions := &mockSessionRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.TwoFactorSession, error) {
				s := *resetSession
				s.Verified = true
				return &s, nil
			},
			deleteFn: func(ctx context.Context, id string) error {
				deleted = true
				return nil
			},
		}
		var newHash string
		accounts := &mockAccountRepo{
			updatePasswordHashFn: func(ctx context.Context, accountID, passwordHash string) error {
				assert.Equal(t, "acct-1", accountID)
				newHash = passwordHash
				return nil
			},
		}
		svc := newTestAuthService(accounts, sessions, &mockNotifier{})

		tokens, err := svc.ConfirmPasswordReset(context.Background(), "tfs-reset", "a-new-password-42")

		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, newHash)
		assert.NotEqual(t, "a-new-password-42", newHash)
		assert.True(t, deleted)
	})
}

func TestAuthService_RefreshToken(t *testing.T) {
	accounts := &mockAccountRepo{
		getByIDFn: func(ctx context.Context, id string) (*models.Account, error) {
			return testAccount(), nil
		},
	}
	svc := newTestAuthService(accounts, &mockSessionRepo{}, &mockNotifier{})
	tm := auth.NewTokenManager("test-secret-at-least-32-characters!!", 30*time.Minute, 7*24*time.Hour)

	t.Run("valid refresh token", func(t *testing.T) {
		refreshToken, err := tm.GenerateRefreshToken("acct-1")
		require.NoError(t, err)

		tokens, err := svc.RefreshToken(context.Background(), refreshToken)

		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
	})

	t.Run("access token rejected", func(t *testing.T) {
		accessToken, err := tm.GenerateAccessToken("acct-1")
		require.NoError(t, err)

		_, err = svc.RefreshToken(context.Background(), accessToken)

		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		_, err := svc.RefreshToken(context.Background(), "not-a-token")

		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}
