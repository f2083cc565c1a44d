package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mincykel/backend/internal/database"
	"github.com/mincykel/backend/internal/models"
)

// SessionRepository stores the generic expiring two-factor sessions that
// back registration, password reset and device trust. There is no
// background sweep; callers treat expired rows as absent.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func scanSessionRow(scanner rowScanner) (*models.TwoFactorSession, error) {
	var session models.TwoFactorSession
	var accountID *string

	err := scanner.Scan(
		&session.ID, &session.Kind, &session.Code, &session.ExpiresAt, &session.Verified,
		&session.PhoneNumber, &session.PasswordHash, &accountID, &session.IPAddress,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if accountID != nil {
		session.AccountID = *accountID
	}
	return &session, nil
}

const sessionColumns = `id, kind, code, expires_at, verified, phone_number, password_hash, account_id, ip_address, created_at`

func (r *SessionRepository) Create(ctx context.Context, session *models.TwoFactorSession, ttl time.Duration) (*models.TwoFactorSession, error) {
	session.ID = uuid.New().String()
	session.CreatedAt = time.Now()
	session.ExpiresAt = session.CreatedAt.Add(ttl)

	var accountID *string
	if session.AccountID != "" {
		accountID = &session.AccountID
	}

	query := `
		INSERT INTO two_factor_sessions
			(` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID, session.Kind, session.Code, session.ExpiresAt, session.Verified,
		session.PhoneNumber, session.PasswordHash, accountID, session.IPAddress,
		session.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return session, nil
}

// GetByID returns the session, or ErrNotFound when it does not exist or is
// past its expiry. Expired-but-present rows are a valid transient state.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.TwoFactorSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM two_factor_sessions WHERE id = $1
	`

	session, err := scanSessionRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if session.IsExpired(time.Now()) {
		return nil, models.ErrNotFound
	}

	return session, nil
}

// MarkVerified flips the verified flag without consuming the session.
// Only password-reset sessions use this intermediate state.
func (r *SessionRepository) MarkVerified(ctx context.Context, id string) error {
	query := `UPDATE two_factor_sessions SET verified = TRUE WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Delete consumes a session. Sessions are single-use; a second consume
// attempt returns ErrNotFound.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM two_factor_sessions WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// MostRecentByPhone returns the newest non-expired session of the given
// kind for a phone number. Backed by the (phone_number, kind, created_at)
// index; used to rate-limit repeated session creation.
func (r *SessionRepository) MostRecentByPhone(ctx context.Context, kind models.SessionKind, phoneNumber string) (*models.TwoFactorSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM two_factor_sessions
		WHERE phone_number = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	session, err := scanSessionRow(r.pool.QueryRow(ctx, query, phoneNumber, kind))
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		return nil, models.ErrNotFound
	}

	return session, nil
}

// MostRecentByIP is MostRecentByPhone keyed on the requesting origin,
// used to rate-limit registration sessions per origin.
func (r *SessionRepository) MostRecentByIP(ctx context.Context, kind models.SessionKind, ipAddress string) (*models.TwoFactorSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM two_factor_sessions
		WHERE ip_address = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	session, err := scanSessionRow(r.pool.QueryRow(ctx, query, ipAddress, kind))
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		return nil, models.ErrNotFound
	}

	return session, nil
}
