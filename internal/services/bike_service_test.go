package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/mincykel/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBikeService(bikes *mockBikeRepo, reports *mockFoundReportRepo, blobs *mockBlobStore) *BikeService {
	return NewBikeService(bikes, reports, blobs, "https://mincykel.dk/claim", testLogger())
}

func ownedBikeFixture() *models.Bike {
	ownerID := "acct-1"
	return &models.Bike{
		ID:           "bike-1",
		FrameNumber:  "WB1234567X",
		OwnerID:      &ownerID,
		RegisteredBy: "acct-1",
		Kind:         models.KindCity,
		Color:        models.ColorBlack,
		ClaimToken:   "token-1",
		State:        models.BikeStateTransferable,
	}
}

func unclaimedBikeFixture() *models.Bike {
	return &models.Bike{
		ID:           "bike-1",
		FrameNumber:  "WB1234567X",
		RegisteredBy: "acct-1",
		Kind:         models.KindCity,
		Color:        models.ColorBlack,
		ClaimToken:   "token-1",
		State:        models.BikeStateUnclaimed,
	}
}

func TestBikeService_Register(t *testing.T) {
	t.Run("valid bike", func(t *testing.T) {
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		bike, err := svc.Register(context.Background(), RegisterBikeInput{
			FrameNumber:  "WB1234567X",
			RegisteredBy: "acct-1",
			Gender:       models.GenderUniSex,
			Kind:         models.KindCity,
			Color:        models.ColorBlack,
			Brand:        "Centurion",
		})

		require.NoError(t, err)
		assert.Equal(t, models.BikeStateUnclaimed, bike.State)
		assert.Nil(t, bike.OwnerID)
		assert.Equal(t, "acct-1", bike.RegisteredBy)
	})

	t.Run("invalid frame number", func(t *testing.T) {
		tests := []string{
			"",
			"1234567X",     // no leading letters
			"ABCDE12345X",  // five leading letters
			"WB1234567",    // no trailing letter
			"WB12345 67X",  // whitespace
			"WBX",          // no digits
		}
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		for _, frame := range tests {
			_, err := svc.Register(context.Background(), RegisterBikeInput{FrameNumber: frame})
			assert.ErrorIs(t, err, models.ErrBadRequest, "frame %q", frame)
		}
	})

	t.Run("duplicate frame number", func(t *testing.T) {
		bikes := &mockBikeRepo{
			createFn: func(ctx context.Context, bike *models.Bike) (*models.Bike, error) {
				return nil, models.ErrConflict
			},
		}
		svc := newTestBikeService(bikes, &mockFoundReportRepo{}, &mockBlobStore{})

		_, err := svc.Register(context.Background(), RegisterBikeInput{FrameNumber: "WB1234567X"})

		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("image upload", func(t *testing.T) {
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		bike, err := svc.Register(context.Background(), RegisterBikeInput{
			FrameNumber: "WB1234567X",
			Image:       &Upload{Data: []byte("png bytes"), ContentType: "image/png"},
		})

		require.NoError(t, err)
		require.NotNil(t, bike.ImageURL)
		assert.Contains(t, *bike.ImageURL, "bikes/images")
	})

	t.Run("rejects oversized image", func(t *testing.T) {
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		_, err := svc.Register(context.Background(), RegisterBikeInput{
			FrameNumber: "WB1234567X",
			Image:       &Upload{Data: bytes.Repeat([]byte{0}, maxImageSize+1), ContentType: "image/png"},
		})

		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("rejects pdf as bike image", func(t *testing.T) {
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		_, err := svc.Register(context.Background(), RegisterBikeInput{
			FrameNumber: "WB1234567X",
			Image:       &Upload{Data: []byte("%PDF"), ContentType: "application/pdf"},
		})

		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("accepts pdf receipt", func(t *testing.T) {
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		bike, err := svc.Register(context.Background(), RegisterBikeInput{
			FrameNumber: "WB1234567X",
			Receipt:     &Upload{Data: []byte("%PDF"), ContentType: "application/pdf"},
		})

		require.NoError(t, err)
		assert.NotNil(t, bike.ReceiptURL)
	})
}

func TestBikeService_Claim(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		_, err := svc.Claim(context.Background(), "acct-1", "nope")

		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("stolen bike cannot be claimed", func(t *testing.T) {
		bikes := &mockBikeRepo{
			getByClaimTokenFn: func(ctx context.Context, token string) (*models.Bike, error) {
				return &models.Bike{ID: "bike-1", ReportedStolen: true, State: models.BikeStateUnclaimed}, nil
			},
		}
		svc := newTestBikeService(bikes, &mockFoundReportRepo{}, &mockBlobStore{})

		_, err := svc.Claim(context.Background(), "acct-1", "token-1")

		assert.ErrorIs(t, err, models.ErrBikeStolen)
	})

	t.Run("second claim loses", func(t *testing.T) {
		bikes := &mockBikeRepo{
			getByClaimTokenFn: func(ctx context.Context, token string) (*models.Bike, error) {
				return &models.Bike{ID: "bike-1", State: models.BikeStateUnclaimed}, nil
			},
			claimFn: func(ctx context.Context, bikeID, ownerID string) error {
				return models.ErrConflict
			},
		}
		svc := newTestBikeService(bikes, &mockFoundReportRepo{}, &mockBlobStore{})

		_, err := svc.Claim(context.Background(), "acct-2", "token-1")

		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("claim assigns owner", func(t *testing.T) {
		var claimedBy string
		bikes := &mockBikeRepo{
			getByClaimTokenFn: func(ctx context.Context, token string) (*models.Bike, error) {
				return &models.Bike{ID: "bike-1", State: models.BikeStateUnclaimed}, nil
			},
			claimFn: func(ctx context.Context, bikeID, ownerID string) error {
				claimedBy = ownerID
				return nil
			},
			getByIDFn: func(ctx context.Context, id string) (*models.Bike, error) {
				return ownedBikeFixture(), nil
			},
		}
		svc := newTestBikeService(bikes, &mockFoundReportRepo{}, &mockBlobStore{})

		bike, err := svc.Claim(context.Background(), "acct-1", "token-1")

		require.NoError(t, err)
		assert.Equal(t, "acct-1", claimedBy)
		assert.Equal(t, models.BikeStateTransferable, bike.State)
	})
}

func TestBikeService_SetStolen(t *testing.T) {
	t.Run("non-owner forbidden", func(t *testing.T) {
		bikes := &mockBikeRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.Bike, error) {
				return ownedBikeFixture(), nil
			},
		}
		svc := newTestBikeService(bikes, &mockFoundReportRepo{}, &mockBlobStore{})

		_, err := svc.SetStolen(context.Background(), "acct-2", "bike-1", true)

		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("clearing the flag purges found reports", func(t *testing.T) {
		bikes := &mockBikeRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.Bike, error) {
				b := ownedBikeFixture()
				b.ReportedStolen = true
				return b, nil
			},
		}
		var purgedFrame string
		reports := &mockFoundReportRepo{
			deleteByFrameNumberFn: func(ctx context.Context, frameNumber string) (int64, error) {
				purgedFrame = frameNumber
				return 2, nil
			},
		}
		svc := newTestBikeService(bikes, reports, &mockBlobStore{})

		_, err := svc.SetStolen(context.Background(), "acct-1", "bike-1", false)

		require.NoError(t, err)
		assert.Equal(t, "WB1234567X", purgedFrame)
	})

	t.Run("setting the flag keeps reports", func(t *testing.T) {
		bikes := &mockBikeRepo{
			getByIDFn: func(ctx context.Context, id string) (*models.Bike, error) {
				return ownedBikeFixture(), nil
			},
		}
		purged := false
		reports := &mockFoundReportRepo{
			deleteByFrameNumberFn: func(ctx context.Context, frameNumber string) (int64, error) {
				purged = true
				return 0, nil
			},
		}
		svc := newTestBikeService(bikes, reports, &mockBlobStore{})

		_, err := svc.SetStolen(context.Background(), "acct-1", "bike-1", true)

		require.NoError(t, err)
		assert.False(t, purged)
	})
}

func TestBikeService_ReportFound(t *testing.T) {
	t.Run("records sighting", func(t *testing.T) {
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		report, err := svc.ReportFound(context.Background(), "acct-9", FoundReportInput{
			FrameNumber: "WB1234567X",
			Location:    "Nørrebro station",
		})

		require.NoError(t, err)
		assert.Equal(t, "acct-9", report.ReporterID)
	})

	t.Run("invalid frame number", func(t *testing.T) {
		svc := newTestBikeService(&mockBikeRepo{}, &mockFoundReportRepo{}, &mockBlobStore{})

		_, err := svc.ReportFound(context.Background(), "acct-9", FoundReportInput{FrameNumber: "???"})

		assert.ErrorIs(t, err, models.ErrBadRequest)
	})
}

func TestBikeService_ClaimQR(t *testing.T) {
	claimedSvc := newTestBikeService(&mockBikeRepo{
		getByIDFn: func(ctx context.Context, id string) (*models.Bike, error) {
			return ownedBikeFixture(), nil
		},
	}, &mockFoundReportRepo{}, &mockBlobStore{})
	unclaimedSvc := newTestBikeService(&mockBikeRepo{
		getByIDFn: func(ctx context.Context, id string) (*models.Bike, error) {
			return unclaimedBikeFixture(), nil
		},
	}, &mockFoundReportRepo{}, &mockBlobStore{})

	t.Run("owner gets a png", func(t *testing.T) {
		png, err := claimedSvc.ClaimQR(context.Background(), "acct-1", "bike-1")

		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG"), png[:4])
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		_, err := claimedSvc.ClaimQR(context.Background(), "acct-2", "bike-1")

		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("registrant gets a png while the bike is unclaimed", func(t *testing.T) {
		png, err := unclaimedSvc.ClaimQR(context.Background(), "acct-1", "bike-1")

		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG"), png[:4])
	})

	t.Run("stranger forbidden on an unclaimed bike", func(t *testing.T) {
		_, err := unclaimedSvc.ClaimQR(context.Background(), "acct-2", "bike-1")

		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestBikeService_ListClampsPaging(t *testing.T) {
	var gotLimit, gotOffset int
	bikes := &mockBikeRepo{
		listFn: func(ctx context.Context, limit, offset int) ([]*models.Bike, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	}
	svc := newTestBikeService(bikes, &mockFoundReportRepo{}, &mockBlobStore{})

	_, err := svc.List(context.Background(), 0, -5)

	require.NoError(t, err)
	assert.Equal(t, 50, gotLimit)
	assert.Equal(t, 0, gotOffset)
}
