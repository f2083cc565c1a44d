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

type BikeRepository struct {
	pool *pgxpool.Pool
}

func NewBikeRepository(db *database.DB) *BikeRepository {
	return &BikeRepository{pool: db.Pool}
}

const bikeColumns = `id, frame_number, owner_id, registered_by, gender, kind, color, brand, is_electric,
	image_url, image_object, receipt_url, receipt_object,
	reported_stolen, stolen_at, claim_token, claimed_at, state, created_at, updated_at`

func scanBikeRow(scanner rowScanner) (*models.Bike, error) {
	var bike models.Bike

	err := scanner.Scan(
		&bike.ID, &bike.FrameNumber, &bike.OwnerID, &bike.RegisteredBy, &bike.Gender, &bike.Kind,
		&bike.Color, &bike.Brand, &bike.IsElectric,
		&bike.ImageURL, &bike.ImageObject, &bike.ReceiptURL, &bike.ReceiptObject,
		&bike.ReportedStolen, &bike.StolenAt, &bike.ClaimToken, &bike.ClaimedAt,
		&bike.State, &bike.CreatedAt, &bike.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &bike, nil
}

func scanBikeRows(rows pgx.Rows) ([]*models.Bike, error) {
	defer rows.Close()

	bikes := make([]*models.Bike, 0)

	for rows.Next() {
		bike, err := scanBikeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bike: %w", err)
		}
		bikes = append(bikes, bike)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return bikes, nil
}

func (r *BikeRepository) Create(ctx context.Context, bike *models.Bike) (*models.Bike, error) {
	bike.ID = uuid.New().String()
	bike.ClaimToken = uuid.New().String()
	bike.State = models.BikeStateUnclaimed

	now := time.Now()
	bike.CreatedAt = now
	bike.UpdatedAt = now

	query := `
		INSERT INTO bikes (` + bikeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.pool.Exec(ctx, query,
		bike.ID, bike.FrameNumber, bike.OwnerID, bike.RegisteredBy, bike.Gender, bike.Kind,
		bike.Color, bike.Brand, bike.IsElectric,
		bike.ImageURL, bike.ImageObject, bike.ReceiptURL, bike.ReceiptObject,
		bike.ReportedStolen, bike.StolenAt, bike.ClaimToken, bike.ClaimedAt,
		bike.State, bike.CreatedAt, bike.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return bike, nil
}

func (r *BikeRepository) GetByID(ctx context.Context, id string) (*models.Bike, error) {
	query := `SELECT ` + bikeColumns + ` FROM bikes WHERE id = $1`

	return scanBikeRow(r.pool.QueryRow(ctx, query, id))
}

func (r *BikeRepository) GetByFrameNumber(ctx context.Context, frameNumber string) (*models.Bike, error) {
	query := `SELECT ` + bikeColumns + ` FROM bikes WHERE frame_number = $1`

	return scanBikeRow(r.pool.QueryRow(ctx, query, frameNumber))
}

func (r *BikeRepository) GetByClaimToken(ctx context.Context, claimToken string) (*models.Bike, error) {
	query := `SELECT ` + bikeColumns + ` FROM bikes WHERE claim_token = $1`

	return scanBikeRow(r.pool.QueryRow(ctx, query, claimToken))
}

func (r *BikeRepository) List(ctx context.Context, limit, offset int) ([]*models.Bike, error) {
	query := `SELECT ` + bikeColumns + ` FROM bikes ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query bikes: %w", err)
	}

	return scanBikeRows(rows)
}

func (r *BikeRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Bike, error) {
	query := `SELECT ` + bikeColumns + ` FROM bikes WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bikes: %w", err)
	}

	return scanBikeRows(rows)
}

// Claim consumes the claim token: the conditional update only matches
// while the bike is still unowned, unclaimed and not stolen, so a second
// claim with the same token loses the race and gets ErrConflict.
func (r *BikeRepository) Claim(ctx context.Context, bikeID, ownerID string) error {
	query := `
		UPDATE bikes
		SET owner_id = $2, state = $3, claimed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND owner_id IS NULL AND state = $4 AND reported_stolen = FALSE
	`

	result, err := r.pool.Exec(ctx, query,
		bikeID, ownerID, models.BikeStateTransferable, models.BikeStateUnclaimed)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrConflict
	}

	return nil
}

// SetReportedStolen toggles the stolen flag; only matches when the flag
// actually changes so a repeated toggle in flight surfaces as ErrConflict.
func (r *BikeRepository) SetReportedStolen(ctx context.Context, bikeID string, stolen bool) error {
	query := `
		UPDATE bikes
		SET reported_stolen = $2,
		    stolen_at = CASE WHEN $2 THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND reported_stolen = NOT $2
	`

	result, err := r.pool.Exec(ctx, query, bikeID, stolen)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrConflict
	}

	return nil
}
