package integration

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mincykel/backend/internal/database"
	"github.com/mincykel/backend/internal/models"
	"github.com/mincykel/backend/internal/repositories"
	"github.com/mincykel/backend/pkg/auth"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("mincykel"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	goose.SetLogger(log.New(io.Discard, "", 0))

	// Goose needs a database/sql connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"found_bike_reports",
		"transfers",
		"bikes",
		"two_factor_sessions",
		"access_sessions",
		"account_devices",
		"accounts",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.AccountRepository,
	*repositories.AccessSessionRepository,
	*repositories.SessionRepository,
	*repositories.BikeRepository,
	*repositories.TransferRepository,
	*repositories.FoundReportRepository,
) {
	return repositories.NewAccountRepository(db),
		repositories.NewAccessSessionRepository(db),
		repositories.NewSessionRepository(db),
		repositories.NewBikeRepository(db),
		repositories.NewTransferRepository(db),
		repositories.NewFoundReportRepository(db)
}

// SeedAccount inserts a test account with a hashed password
func SeedAccount(ctx context.Context, pool *pgxpool.Pool, phoneNumber, password string) (*models.Account, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO accounts (id, phone_number, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, phone_number, password_hash, created_at, updated_at
	`

	var account models.Account
	err = pool.QueryRow(ctx, query, uuid.NewString(), phoneNumber, hashedPassword).Scan(
		&account.ID,
		&account.PhoneNumber,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return &account, nil
}

// SeedDevice puts an origin on one of the account's device lists
func SeedDevice(ctx context.Context, pool *pgxpool.Pool, accountID, ipAddress string, listing models.DeviceListing) error {
	query := `
		INSERT INTO account_devices (id, account_id, ip_address, label, listing, created_at)
		VALUES ($1, $2, $3, '', $4, NOW())
	`
	if _, err := pool.Exec(ctx, query, uuid.NewString(), accountID, ipAddress, string(listing)); err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

// SeedBike inserts a bike registered by the given account. A nil owner
// leaves the bike unclaimed.
func SeedBike(ctx context.Context, pool *pgxpool.Pool, frameNumber, registeredBy string, ownerID *string) (*models.Bike, error) {
	state := models.BikeStateUnclaimed
	if ownerID != nil {
		state = models.BikeStateTransferable
	}

	query := `
		INSERT INTO bikes (id, frame_number, owner_id, registered_by, gender, kind, color, brand, claim_token, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'uni_sex', 'city', 'black', 'Centurion', $5, $6, NOW(), NOW())
		RETURNING id, frame_number, owner_id, claim_token, state, created_at
	`

	var bike models.Bike
	err := pool.QueryRow(ctx, query, uuid.NewString(), frameNumber, ownerID, registeredBy, uuid.NewString(), string(state)).Scan(
		&bike.ID,
		&bike.FrameNumber,
		&bike.OwnerID,
		&bike.ClaimToken,
		&bike.State,
		&bike.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bike: %w", err)
	}

	return &bike, nil
}
