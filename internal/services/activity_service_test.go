package services

import (
	"context"
	"testing"

	"github.com/mincykel/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityService_GetActivities(t *testing.T) {
	accounts := &mockAccountRepo{
		getByIDFn: func(ctx context.Context, id string) (*models.Account, error) {
			return &models.Account{ID: id, PhoneNumber: "+45202020" + id[len(id)-2:]}, nil
		},
	}
	bikes := &mockBikeRepo{
		getByIDFn: func(ctx context.Context, id string) (*models.Bike, error) {
			receipt := "https://blobs.test/receipt"
			b := ownedBikeFixture()
			b.ID = id
			b.ReceiptURL = &receipt
			return b, nil
		},
	}
	transfers := &mockTransferRepo{
		listPendingByReceiverFn: func(ctx context.Context, accountID string) ([]*models.Transfer, error) {
			return []*models.Transfer{
				{ID: "t-in", SenderID: "acct-02", ReceiverID: accountID, BikeID: "bike-1", State: models.TransferPending},
			}, nil
		},
		listPendingBySenderFn: func(ctx context.Context, accountID string) ([]*models.Transfer, error) {
			return []*models.Transfer{
				{ID: "t-out", SenderID: accountID, ReceiverID: "acct-03", BikeID: "bike-2", State: models.TransferPending},
			}, nil
		},
		listClosedByAccountFn: func(ctx context.Context, accountID string) ([]*models.Transfer, error) {
			return []*models.Transfer{
				{ID: "t-old", SenderID: "acct-02", ReceiverID: accountID, BikeID: "bike-1", State: models.TransferAccepted},
			}, nil
		},
	}
	reports := &mockFoundReportRepo{
		listForOwnerFn: func(ctx context.Context, accountID string) ([]*models.FoundBikeReport, error) {
			return []*models.FoundBikeReport{
				{ID: "r-1", FrameNumber: "WB1234567X", Location: "Islands Brygge"},
			}, nil
		},
	}

	svc := NewActivityService(transfers, bikes, accounts, reports, testLogger())

	view, err := svc.GetActivities(context.Background(), "acct-01")
	require.NoError(t, err)

	require.Len(t, view.Incoming, 1)
	require.Len(t, view.Outgoing, 1)
	require.Len(t, view.History, 1)
	// one pending in each direction; found reports do not count as alerts
	assert.Equal(t, 2, view.Alerts)
	assert.Len(t, view.Discoveries, 1)

	in := view.Incoming[0]
	assert.Equal(t, "t-in", in.ID)
	assert.Equal(t, "acct-02", in.Sender.ID)
	assert.NotEmpty(t, in.Sender.PhoneNumber)
	assert.Equal(t, "acct-01", in.Receiver.ID)
	assert.Equal(t, "bike-1", in.Bike.ID)
	assert.Equal(t, "WB1234567X", in.Bike.FrameNumber)

	assert.Equal(t, models.TransferAccepted, view.History[0].State)
}

func TestActivityService_EmptyFeed(t *testing.T) {
	svc := NewActivityService(&mockTransferRepo{}, &mockBikeRepo{}, &mockAccountRepo{}, &mockFoundReportRepo{}, testLogger())

	view, err := svc.GetActivities(context.Background(), "acct-01")
	require.NoError(t, err)

	assert.Empty(t, view.Incoming)
	assert.Empty(t, view.Outgoing)
	assert.Empty(t, view.History)
	assert.Zero(t, view.Alerts)
}
