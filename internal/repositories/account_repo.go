package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mincykel/backend/internal/database"
	"github.com/mincykel/backend/internal/models"
)

type AccountRepository struct {
	pool *pgxpool.Pool
	db   *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool, db: db}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account

	err := scanner.Scan(
		&account.ID, &account.PhoneNumber, &account.PasswordHash,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &account, nil
}

func scanDeviceRow(scanner rowScanner) (*models.Device, error) {
	var device models.Device

	err := scanner.Scan(
		&device.ID, &device.AccountID, &device.IPAddress,
		&device.Label, &device.Listing, &device.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &device, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, phone_number, password_hash, created_at, updated_at
		FROM accounts WHERE id = $1
	`

	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.Account, error) {
	query := `
		SELECT id, phone_number, password_hash, created_at, updated_at
		FROM accounts WHERE phone_number = $1
	`

	return scanAccountRow(r.pool.QueryRow(ctx, query, phoneNumber))
}

// Create inserts the account and seeds its white-list with the confirming
// origin in a single transaction, so a fresh account always has the device
// it registered from.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account, originIP, originLabel string) (*models.Account, error) {
	account.ID = uuid.New().String()
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (id, phone_number, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, account.ID, account.PhoneNumber, account.PasswordHash, account.CreatedAt, account.UpdatedAt)
		if err != nil {
			return database.MapPostgresError(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO account_devices (id, account_id, ip_address, label, listing, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New().String(), account.ID, originIP, originLabel, models.DeviceWhitelisted, now)
		if err != nil {
			return database.MapPostgresError(err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE accounts SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// GetDevice returns the list entry for (account, origin), or ErrNotFound
// when the origin is on neither list.
func (r *AccountRepository) GetDevice(ctx context.Context, accountID, ipAddress string) (*models.Device, error) {
	query := `
		SELECT id, account_id, ip_address, label, listing, created_at
		FROM account_devices WHERE account_id = $1 AND ip_address = $2
	`

	return scanDeviceRow(r.pool.QueryRow(ctx, query, accountID, ipAddress))
}

// AddDevice appends an origin to one of the account's device lists. The
// unique constraint on (account_id, ip_address) keeps an origin off both
// lists at once; a duplicate surfaces as ErrConflict.
func (r *AccountRepository) AddDevice(ctx context.Context, accountID, ipAddress, label string, listing models.DeviceListing) (*models.Device, error) {
	device := &models.Device{
		ID:        uuid.New().String(),
		AccountID: accountID,
		IPAddress: ipAddress,
		Label:     label,
		Listing:   listing,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO account_devices (id, account_id, ip_address, label, listing, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		device.ID, device.AccountID, device.IPAddress, device.Label, device.Listing, device.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return device, nil
}

func (r *AccountRepository) ListDevices(ctx context.Context, accountID string) ([]*models.Device, error) {
	query := `
		SELECT id, account_id, ip_address, label, listing, created_at
		FROM account_devices WHERE account_id = $1 ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*models.Device, 0)
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return devices, nil
}
