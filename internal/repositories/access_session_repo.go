package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mincykel/backend/internal/database"
	"github.com/mincykel/backend/internal/models"
)

// AccessSessionRepository handles login-throttling state per (account, origin)
type AccessSessionRepository struct {
	pool *pgxpool.Pool
}

func NewAccessSessionRepository(db *database.DB) *AccessSessionRepository {
	return &AccessSessionRepository{pool: db.Pool}
}

func scanAccessSessionRow(scanner rowScanner) (*models.AccessSession, error) {
	var session models.AccessSession

	err := scanner.Scan(
		&session.ID, &session.AccountID, &session.IPAddress,
		&session.LoginAttempts, &session.Code,
		&session.CooldownExpiresAt, &session.SMSCooldownExpiresAt,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

func (r *AccessSessionRepository) GetByAccountAndIP(ctx context.Context, accountID, ipAddress string) (*models.AccessSession, error) {
	query := `
		SELECT id, account_id, ip_address, login_attempts, code,
		       cooldown_expires_at, sms_cooldown_expires_at, created_at, updated_at
		FROM access_sessions WHERE account_id = $1 AND ip_address = $2
	`

	return scanAccessSessionRow(r.pool.QueryRow(ctx, query, accountID, ipAddress))
}

// GetOrCreate fetches the session for (account, origin), creating an empty
// one lazily on first use. Sessions are reused across logins and never
// deleted.
func (r *AccessSessionRepository) GetOrCreate(ctx context.Context, accountID, ipAddress, code string) (*models.AccessSession, error) {
	session, err := r.GetByAccountAndIP(ctx, accountID, ipAddress)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	session = &models.AccessSession{
		ID:                   uuid.New().String(),
		AccountID:            accountID,
		IPAddress:            ipAddress,
		LoginAttempts:        0,
		Code:                 code,
		CooldownExpiresAt:    now,
		SMSCooldownExpiresAt: now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	query := `
		INSERT INTO access_sessions
			(id, account_id, ip_address, login_attempts, code,
			 cooldown_expires_at, sms_cooldown_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account_id, ip_address) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		session.ID, session.AccountID, session.IPAddress, session.LoginAttempts, session.Code,
		session.CooldownExpiresAt, session.SMSCooldownExpiresAt, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	// A concurrent request may have won the insert; read back the winner.
	return r.GetByAccountAndIP(ctx, accountID, ipAddress)
}

// Update persists the mutable throttling fields.
func (r *AccessSessionRepository) Update(ctx context.Context, session *models.AccessSession) error {
	query := `
		UPDATE access_sessions
		SET login_attempts = $2, cooldown_expires_at = $3,
		    sms_cooldown_expires_at = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		session.ID, session.LoginAttempts, session.CooldownExpiresAt, session.SMSCooldownExpiresAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
