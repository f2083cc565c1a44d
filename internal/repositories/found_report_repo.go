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

type FoundReportRepository struct {
	pool *pgxpool.Pool
}

func NewFoundReportRepository(db *database.DB) *FoundReportRepository {
	return &FoundReportRepository{pool: db.Pool}
}

const foundReportColumns = `id, reporter_id, frame_number, location, comment, image_url, image_object, created_at`

func scanFoundReportRow(scanner rowScanner) (*models.FoundBikeReport, error) {
	var report models.FoundBikeReport

	err := scanner.Scan(
		&report.ID, &report.ReporterID, &report.FrameNumber, &report.Location,
		&report.Comment, &report.ImageURL, &report.ImageObject, &report.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &report, nil
}

func scanFoundReportRows(rows pgx.Rows) ([]*models.FoundBikeReport, error) {
	defer rows.Close()

	reports := make([]*models.FoundBikeReport, 0)

	for rows.Next() {
		report, err := scanFoundReportRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan found report: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return reports, nil
}

func (r *FoundReportRepository) Create(ctx context.Context, report *models.FoundBikeReport) (*models.FoundBikeReport, error) {
	report.ID = uuid.New().String()
	report.CreatedAt = time.Now()

	query := `
		INSERT INTO found_bike_reports (` + foundReportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		report.ID, report.ReporterID, report.FrameNumber, report.Location,
		report.Comment, report.ImageURL, report.ImageObject, report.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return report, nil
}

// ListForOwner returns open discoveries for bikes the account has
// reported stolen.
func (r *FoundReportRepository) ListForOwner(ctx context.Context, accountID string) ([]*models.FoundBikeReport, error) {
	query := `
		SELECT fr.id, fr.reporter_id, fr.frame_number, fr.location, fr.comment,
		       fr.image_url, fr.image_object, fr.created_at
		FROM found_bike_reports fr
		JOIN bikes b ON b.frame_number = fr.frame_number
		WHERE b.owner_id = $1 AND b.reported_stolen = TRUE
		ORDER BY fr.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query found reports: %w", err)
	}

	return scanFoundReportRows(rows)
}

// DeleteByFrameNumber purges all discoveries for a frame number; called
// when the bike's stolen flag is cleared.
func (r *FoundReportRepository) DeleteByFrameNumber(ctx context.Context, frameNumber string) (int64, error) {
	query := `DELETE FROM found_bike_reports WHERE frame_number = $1`

	result, err := r.pool.Exec(ctx, query, frameNumber)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
