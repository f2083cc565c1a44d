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

// TransferRepository persists transfers and owns the transactional writes
// that pair a transfer mutation with the bike state flip. The bike update
// always carries a state precondition, so a concurrent mutation on the
// same bike fails the transaction with ErrConflict instead of double
// applying.
type TransferRepository struct {
	pool *pgxpool.Pool
	db   *database.DB
}

func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{pool: db.Pool, db: db}
}

const transferColumns = `id, sender_id, receiver_id, bike_id, state, created_at, closed_at`

func scanTransferRow(scanner rowScanner) (*models.Transfer, error) {
	var transfer models.Transfer

	err := scanner.Scan(
		&transfer.ID, &transfer.SenderID, &transfer.ReceiverID, &transfer.BikeID,
		&transfer.State, &transfer.CreatedAt, &transfer.ClosedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &transfer, nil
}

func scanTransferRows(rows pgx.Rows) ([]*models.Transfer, error) {
	defer rows.Close()

	transfers := make([]*models.Transfer, 0)

	for rows.Next() {
		transfer, err := scanTransferRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, transfer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return transfers, nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id string) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	return scanTransferRow(r.pool.QueryRow(ctx, query, id))
}

// CreatePending inserts a pending transfer and flips the bike to
// in_transfer in one transaction. The bike must currently be transferable
// and not stolen; otherwise the whole write fails with ErrConflict.
func (r *TransferRepository) CreatePending(ctx context.Context, transfer *models.Transfer) (*models.Transfer, error) {
	transfer.ID = uuid.New().String()
	transfer.State = models.TransferPending
	transfer.CreatedAt = time.Now()
	transfer.ClosedAt = nil

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bikes SET state = $2, updated_at = NOW()
			WHERE id = $1 AND state = $3 AND reported_stolen = FALSE
		`, transfer.BikeID, models.BikeStateInTransfer, models.BikeStateTransferable)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrConflict
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO transfers (`+transferColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, transfer.ID, transfer.SenderID, transfer.ReceiverID, transfer.BikeID,
			transfer.State, transfer.CreatedAt, transfer.ClosedAt)
		if err != nil {
			return database.MapPostgresError(err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return transfer, nil
}

// Close settles a pending transfer as accepted or declined, sets
// closed_at, and returns the bike to transferable. Accepting also hands
// ownership to the receiver.
func (r *TransferRepository) Close(ctx context.Context, transfer *models.Transfer, state models.TransferState) error {
	reassignOwner := state == models.TransferAccepted

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE transfers SET state = $2, closed_at = NOW()
			WHERE id = $1 AND state = $3
		`, transfer.ID, state, models.TransferPending)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrConflict
		}

		if reassignOwner {
			result, err = tx.Exec(ctx, `
				UPDATE bikes SET owner_id = $2, state = $3, updated_at = NOW()
				WHERE id = $1 AND state = $4 AND reported_stolen = FALSE
			`, transfer.BikeID, transfer.ReceiverID, models.BikeStateTransferable, models.BikeStateInTransfer)
		} else {
			result, err = tx.Exec(ctx, `
				UPDATE bikes SET state = $2, updated_at = NOW()
				WHERE id = $1 AND state = $3 AND reported_stolen = FALSE
			`, transfer.BikeID, models.BikeStateTransferable, models.BikeStateInTransfer)
		}
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrConflict
		}

		return nil
	})
}

// DeletePending retracts a transfer: the record is deleted outright, no
// closed row is kept, and the bike returns to transferable.
func (r *TransferRepository) DeletePending(ctx context.Context, transfer *models.Transfer) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			DELETE FROM transfers WHERE id = $1 AND state = $2
		`, transfer.ID, models.TransferPending)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrConflict
		}

		result, err = tx.Exec(ctx, `
			UPDATE bikes SET state = $2, updated_at = NOW()
			WHERE id = $1 AND state = $3
		`, transfer.BikeID, models.BikeStateTransferable, models.BikeStateInTransfer)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrConflict
		}

		return nil
	})
}

// ListPendingBySender returns outgoing pending transfers for an account.
func (r *TransferRepository) ListPendingBySender(ctx context.Context, accountID string) ([]*models.Transfer, error) {
	query := `
		SELECT ` + transferColumns + ` FROM transfers
		WHERE sender_id = $1 AND state = $2
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID, models.TransferPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}

	return scanTransferRows(rows)
}

// ListPendingByReceiver returns incoming pending transfers for an account.
func (r *TransferRepository) ListPendingByReceiver(ctx context.Context, accountID string) ([]*models.Transfer, error) {
	query := `
		SELECT ` + transferColumns + ` FROM transfers
		WHERE receiver_id = $1 AND state = $2
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID, models.TransferPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}

	return scanTransferRows(rows)
}

// ListClosedByAccount returns accepted and declined transfers touching an
// account as sender or receiver, newest settlement first.
func (r *TransferRepository) ListClosedByAccount(ctx context.Context, accountID string) ([]*models.Transfer, error) {
	query := `
		SELECT ` + transferColumns + ` FROM transfers
		WHERE (sender_id = $1 OR receiver_id = $1) AND state IN ($2, $3)
		ORDER BY closed_at DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID, models.TransferAccepted, models.TransferDeclined)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}

	return scanTransferRows(rows)
}
