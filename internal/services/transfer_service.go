package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mincykel/backend/internal/models"
)

// TransferRepository defines the ownership transfer operations
type TransferRepository interface {
	GetByID(ctx context.Context, id string) (*models.Transfer, error)
	CreatePending(ctx context.Context, transfer *models.Transfer) (*models.Transfer, error)
	Close(ctx context.Context, transfer *models.Transfer, state models.TransferState) error
	DeletePending(ctx context.Context, transfer *models.Transfer) error
	ListPendingBySender(ctx context.Context, accountID string) ([]*models.Transfer, error)
	ListPendingByReceiver(ctx context.Context, accountID string) ([]*models.Transfer, error)
	ListClosedByAccount(ctx context.Context, accountID string) ([]*models.Transfer, error)
}

// TransferService implements the ownership handover flow. A transfer is
// offered by the current owner, addressed to another account by phone
// number, and stays pending until the receiver accepts or rejects it or
// the sender retracts it. The bike is locked in_transfer for the whole
// pending window.
type TransferService struct {
	transfers TransferRepository
	bikes     BikeRepository
	accounts  AccountRepository
	logger    *slog.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(
	transfers TransferRepository,
	bikes BikeRepository,
	accounts AccountRepository,
	logger *slog.Logger,
) *TransferService {
	return &TransferService{
		transfers: transfers,
		bikes:     bikes,
		accounts:  accounts,
		logger:    logger,
	}
}

// Create offers the sender's bike to the account behind receiverPhone.
func (s *TransferService) Create(ctx context.Context, senderID, bikeID, receiverPhone string) (*models.Transfer, error) {
	bike, err := s.bikes.GetByID(ctx, bikeID)
	if err != nil {
		return nil, err
	}
	if bike.OwnerID == nil || *bike.OwnerID != senderID {
		return nil, models.ErrForbidden
	}
	if bike.ReportedStolen {
		return nil, models.ErrBikeStolen
	}
	if bike.State != models.BikeStateTransferable {
		return nil, models.ErrBikeNotTransferable
	}

	receiver, err := s.accounts.GetByPhoneNumber(ctx, receiverPhone)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to look up receiver", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if receiver.ID == senderID {
		return nil, &models.ValidationError{Message: "cannot transfer a bike to yourself"}
	}

	transfer, err := s.transfers.CreatePending(ctx, &models.Transfer{
		SenderID:   senderID,
		ReceiverID: receiver.ID,
		BikeID:     bike.ID,
	})
	if err != nil {
		// Lost the race against a concurrent transfer or stolen report.
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create transfer", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("transfer created",
		slog.String("transfer_id", transfer.ID),
		slog.String("bike_id", bike.ID))

	return transfer, nil
}

// Accept closes a pending transfer in the receiver's favor, reassigning
// the bike.
func (s *TransferService) Accept(ctx context.Context, accountID, transferID string) (*models.Transfer, error) {
	return s.close(ctx, accountID, transferID, models.TransferAccepted)
}

// Reject closes a pending transfer without changing ownership.
func (s *TransferService) Reject(ctx context.Context, accountID, transferID string) (*models.Transfer, error) {
	return s.close(ctx, accountID, transferID, models.TransferDeclined)
}

func (s *TransferService) close(ctx context.Context, accountID, transferID string, state models.TransferState) (*models.Transfer, error) {
	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.ReceiverID != accountID {
		return nil, models.ErrForbidden
	}
	if transfer.State != models.TransferPending {
		return nil, models.ErrTransferClosed
	}

	if err := s.transfers.Close(ctx, transfer, state); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrTransferClosed
		}
		s.logger.Error("failed to close transfer", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("transfer closed",
		slog.String("transfer_id", transfer.ID),
		slog.String("state", string(state)))

	return s.transfers.GetByID(ctx, transferID)
}

// Retract withdraws a pending offer. Only the sender may retract, and a
// retracted transfer leaves no trace in either party's history.
func (s *TransferService) Retract(ctx context.Context, accountID, transferID string) error {
	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.SenderID != accountID {
		return models.ErrForbidden
	}
	if transfer.State != models.TransferPending {
		return models.ErrTransferClosed
	}

	if err := s.transfers.DeletePending(ctx, transfer); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return models.ErrTransferClosed
		}
		s.logger.Error("failed to retract transfer", slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// Get returns a transfer visible to the caller. Outsiders get ErrNotFound
// rather than ErrForbidden so transfer ids leak no information.
func (s *TransferService) Get(ctx context.Context, accountID, transferID string) (*models.Transfer, error) {
	transfer, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.SenderID != accountID && transfer.ReceiverID != accountID {
		return nil, models.ErrNotFound
	}
	return transfer, nil
}
