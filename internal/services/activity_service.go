package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mincykel/backend/internal/models"
)

// PartyView identifies one side of a transfer.
type PartyView struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
}

// BikeSummary is the bike as shown inside a transfer. The receipt stays
// private to the owner and is never expanded here.
type BikeSummary struct {
	ID             string            `json:"id"`
	FrameNumber    string            `json:"frame_number"`
	Gender         models.BikeGender `json:"gender"`
	Kind           models.BikeKind   `json:"kind"`
	Color          models.BikeColor  `json:"color"`
	Brand          string            `json:"brand"`
	IsElectric     bool              `json:"is_electric"`
	ImageURL       *string           `json:"image_url"`
	ReportedStolen bool              `json:"reported_stolen"`
	State          models.BikeState  `json:"state"`
}

// TransferView is a transfer with both parties and the bike expanded.
type TransferView struct {
	ID        string               `json:"id"`
	State     models.TransferState `json:"state"`
	Sender    PartyView            `json:"sender"`
	Receiver  PartyView            `json:"receiver"`
	Bike      BikeSummary          `json:"bike"`
	CreatedAt time.Time            `json:"created_at"`
	ClosedAt  *time.Time           `json:"closed_at,omitempty"`
}

// ActivityView is everything actionable or recent for one account.
type ActivityView struct {
	Incoming    []*TransferView           `json:"incoming"`
	Outgoing    []*TransferView           `json:"outgoing"`
	History     []*TransferView           `json:"history"`
	Alerts      int                       `json:"alerts"`
	Discoveries []*models.FoundBikeReport `json:"discoveries"`
}

// ActivityService assembles the per-account activity feed from the
// transfer, bike, account and found-report stores.
type ActivityService struct {
	transfers    TransferRepository
	bikes        BikeRepository
	accounts     AccountRepository
	foundReports FoundReportRepository
	logger       *slog.Logger
}

// NewActivityService creates a new ActivityService
func NewActivityService(
	transfers TransferRepository,
	bikes BikeRepository,
	accounts AccountRepository,
	foundReports FoundReportRepository,
	logger *slog.Logger,
) *ActivityService {
	return &ActivityService{
		transfers:    transfers,
		bikes:        bikes,
		accounts:     accounts,
		foundReports: foundReports,
		logger:       logger,
	}
}

// GetActivities returns the account's pending transfers in both
// directions, its closed transfer history, and the found-bike reports
// filed against its stolen bikes. Alerts counts the pending transfers
// awaiting action on either side.
func (s *ActivityService) GetActivities(ctx context.Context, accountID string) (*ActivityView, error) {
	incoming, err := s.transfers.ListPendingByReceiver(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to list incoming transfers", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	outgoing, err := s.transfers.ListPendingBySender(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to list outgoing transfers", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	history, err := s.transfers.ListClosedByAccount(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to list transfer history", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	discoveries, err := s.foundReports.ListForOwner(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to list found reports", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Accounts and bikes repeat across transfers; resolve each once.
	parties := make(map[string]PartyView)
	bikes := make(map[string]BikeSummary)

	view := &ActivityView{
		Incoming:    make([]*TransferView, 0, len(incoming)),
		Outgoing:    make([]*TransferView, 0, len(outgoing)),
		History:     make([]*TransferView, 0, len(history)),
		Alerts:      len(incoming) + len(outgoing),
		Discoveries: discoveries,
	}

	for _, t := range incoming {
		tv, err := s.expand(ctx, t, parties, bikes)
		if err != nil {
			return nil, err
		}
		view.Incoming = append(view.Incoming, tv)
	}
	for _, t := range outgoing {
		tv, err := s.expand(ctx, t, parties, bikes)
		if err != nil {
			return nil, err
		}
		view.Outgoing = append(view.Outgoing, tv)
	}
	for _, t := range history {
		tv, err := s.expand(ctx, t, parties, bikes)
		if err != nil {
			return nil, err
		}
		view.History = append(view.History, tv)
	}

	return view, nil
}

func (s *ActivityService) expand(ctx context.Context, t *models.Transfer, parties map[string]PartyView, bikes map[string]BikeSummary) (*TransferView, error) {
	sender, err := s.party(ctx, t.SenderID, parties)
	if err != nil {
		return nil, err
	}
	receiver, err := s.party(ctx, t.ReceiverID, parties)
	if err != nil {
		return nil, err
	}

	bike, ok := bikes[t.BikeID]
	if !ok {
		b, err := s.bikes.GetByID(ctx, t.BikeID)
		if err != nil {
			s.logger.Error("failed to expand bike", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		bike = BikeSummary{
			ID:             b.ID,
			FrameNumber:    b.FrameNumber,
			Gender:         b.Gender,
			Kind:           b.Kind,
			Color:          b.Color,
			Brand:          b.Brand,
			IsElectric:     b.IsElectric,
			ImageURL:       b.ImageURL,
			ReportedStolen: b.ReportedStolen,
			State:          b.State,
		}
		bikes[t.BikeID] = bike
	}

	return &TransferView{
		ID:        t.ID,
		State:     t.State,
		Sender:    sender,
		Receiver:  receiver,
		Bike:      bike,
		CreatedAt: t.CreatedAt,
		ClosedAt:  t.ClosedAt,
	}, nil
}

func (s *ActivityService) party(ctx context.Context, accountID string, parties map[string]PartyView) (PartyView, error) {
	if p, ok := parties[accountID]; ok {
		return p, nil
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to expand account", slog.Any("error", err))
		return PartyView{}, models.ErrInternalServer
	}
	p := PartyView{ID: account.ID, PhoneNumber: account.PhoneNumber}
	parties[accountID] = p
	return p, nil
}
