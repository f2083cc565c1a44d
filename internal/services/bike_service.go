package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mincykel/backend/internal/models"
	"github.com/skip2/go-qrcode"
)

// BikeRepository defines the bike persistence operations
type BikeRepository interface {
	Create(ctx context.Context, bike *models.Bike) (*models.Bike, error)
	GetByID(ctx context.Context, id string) (*models.Bike, error)
	GetByFrameNumber(ctx context.Context, frameNumber string) (*models.Bike, error)
	GetByClaimToken(ctx context.Context, claimToken string) (*models.Bike, error)
	List(ctx context.Context, limit, offset int) ([]*models.Bike, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Bike, error)
	Claim(ctx context.Context, bikeID, ownerID string) error
	SetReportedStolen(ctx context.Context, bikeID string, stolen bool) error
}

// FoundReportRepository defines the found-bike report operations
type FoundReportRepository interface {
	Create(ctx context.Context, report *models.FoundBikeReport) (*models.FoundBikeReport, error)
	ListForOwner(ctx context.Context, accountID string) ([]*models.FoundBikeReport, error)
	DeleteByFrameNumber(ctx context.Context, frameNumber string) (int64, error)
}

const (
	maxImageSize   = 5 << 20  // 5 MiB
	maxReceiptSize = 10 << 20 // 10 MiB
)

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var receiptContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// Upload is a file received from a client.
type Upload struct {
	Data        []byte
	ContentType string
}

// RegisterBikeInput is the payload for registering a new bike.
// RegisteredBy is the authenticated caller filing the registration.
type RegisterBikeInput struct {
	FrameNumber  string
	RegisteredBy string
	Gender       models.BikeGender
	Kind         models.BikeKind
	Color        models.BikeColor
	Brand        string
	IsElectric   bool
	Image        *Upload
	Receipt      *Upload
}

// FoundReportInput is the payload for reporting a sighted bike.
type FoundReportInput struct {
	FrameNumber string
	Location    string
	Comment     string
	Image       *Upload
}

// BikeService implements bike registration, claiming and stolen
// reporting.
type BikeService struct {
	bikes        BikeRepository
	foundReports FoundReportRepository
	blobs        BlobStore
	claimBaseURL string
	logger       *slog.Logger
}

// NewBikeService creates a new BikeService
func NewBikeService(
	bikes BikeRepository,
	foundReports FoundReportRepository,
	blobs BlobStore,
	claimBaseURL string,
	logger *slog.Logger,
) *BikeService {
	return &BikeService{
		bikes:        bikes,
		foundReports: foundReports,
		blobs:        blobs,
		claimBaseURL: claimBaseURL,
		logger:       logger,
	}
}

// Register records a new bike in the unclaimed state and mints its claim
// token. The frame number is globally unique.
func (s *BikeService) Register(ctx context.Context, input RegisterBikeInput) (*models.Bike, error) {
	if !models.ValidFrameNumber(input.FrameNumber) {
		return nil, &models.ValidationError{Message: "invalid frame number format"}
	}

	bike := &models.Bike{
		FrameNumber:  input.FrameNumber,
		RegisteredBy: input.RegisteredBy,
		Gender:       input.Gender,
		Kind:         input.Kind,
		Color:        input.Color,
		Brand:        input.Brand,
		IsElectric:   input.IsElectric,
	}

	if input.Image != nil {
		ref, err := s.upload(ctx, input.Image, imageContentTypes, maxImageSize, "bikes/images")
		if err != nil {
			return nil, err
		}
		bike.ImageURL = &ref.URL
		bike.ImageObject = &ref.ObjectName
	}

	if input.Receipt != nil {
		ref, err := s.upload(ctx, input.Receipt, receiptContentTypes, maxReceiptSize, "bikes/receipts")
		if err != nil {
			return nil, err
		}
		bike.ReceiptURL = &ref.URL
		bike.ReceiptObject = &ref.ObjectName
	}

	created, err := s.bikes.Create(ctx, bike)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create bike", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("bike registered",
		slog.String("bike_id", created.ID),
		slog.String("frame_number", created.FrameNumber))

	return created, nil
}

// Claim consumes a claim token and makes the caller the bike's first
// owner. Exactly one claim can win; later attempts see ErrConflict.
func (s *BikeService) Claim(ctx context.Context, accountID, claimToken string) (*models.Bike, error) {
	bike, err := s.bikes.GetByClaimToken(ctx, claimToken)
	if err != nil {
		return nil, err
	}

	if bike.ReportedStolen {
		return nil, models.ErrBikeStolen
	}

	if err := s.bikes.Claim(ctx, bike.ID, accountID); err != nil {
		return nil, err
	}

	s.logger.Info("bike claimed",
		slog.String("bike_id", bike.ID),
		slog.String("account_id", accountID))

	return s.bikes.GetByID(ctx, bike.ID)
}

// ClaimQR renders the bike's claim link as a PNG, sized for a frame
// sticker. The owner may request it at any time; the registrant only
// while the bike is still unclaimed.
func (s *BikeService) ClaimQR(ctx context.Context, accountID, bikeID string) ([]byte, error) {
	bike, err := s.bikes.GetByID(ctx, bikeID)
	if err != nil {
		return nil, err
	}
	if !bike.ClaimTokenAccessibleBy(accountID) {
		return nil, models.ErrForbidden
	}

	link := fmt.Sprintf("%s/%s", s.claimBaseURL, bike.ClaimToken)
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		s.logger.Error("failed to encode claim qr", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return png, nil
}

// SetStolen toggles the owner's stolen flag. Clearing it also purges the
// found-bike reports filed against the frame number, so old sightings do
// not resurface if the bike is stolen again.
func (s *BikeService) SetStolen(ctx context.Context, accountID, bikeID string, stolen bool) (*models.Bike, error) {
	bike, err := s.ownedBike(ctx, accountID, bikeID)
	if err != nil {
		return nil, err
	}

	if err := s.bikes.SetReportedStolen(ctx, bike.ID, stolen); err != nil {
		return nil, err
	}

	if !stolen {
		purged, err := s.foundReports.DeleteByFrameNumber(ctx, bike.FrameNumber)
		if err != nil {
			s.logger.Error("failed to purge found reports", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if purged > 0 {
			s.logger.Info("purged found reports",
				slog.String("bike_id", bike.ID),
				slog.Int64("count", purged))
		}
	}

	return s.bikes.GetByID(ctx, bike.ID)
}

// ReportFound records a sighting of a bike by frame number. The reporter
// does not need to own anything; the report surfaces in the owner's
// activity feed while the bike is flagged stolen.
func (s *BikeService) ReportFound(ctx context.Context, reporterID string, input FoundReportInput) (*models.FoundBikeReport, error) {
	if !models.ValidFrameNumber(input.FrameNumber) {
		return nil, &models.ValidationError{Message: "invalid frame number format"}
	}

	report := &models.FoundBikeReport{
		ReporterID:  reporterID,
		FrameNumber: input.FrameNumber,
		Location:    input.Location,
		Comment:     input.Comment,
	}

	if input.Image != nil {
		ref, err := s.upload(ctx, input.Image, imageContentTypes, maxImageSize, "found-reports")
		if err != nil {
			return nil, err
		}
		report.ImageURL = &ref.URL
		report.ImageObject = &ref.ObjectName
	}

	created, err := s.foundReports.Create(ctx, report)
	if err != nil {
		s.logger.Error("failed to create found report", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return created, nil
}

// Get returns a single bike by id.
func (s *BikeService) Get(ctx context.Context, bikeID string) (*models.Bike, error) {
	return s.bikes.GetByID(ctx, bikeID)
}

// List returns a page of registered bikes, newest first.
func (s *BikeService) List(ctx context.Context, limit, offset int) ([]*models.Bike, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.bikes.List(ctx, limit, offset)
}

// ListByOwner returns the caller's bikes, newest first.
func (s *BikeService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Bike, error) {
	return s.bikes.ListByOwner(ctx, ownerID)
}

// ownedBike loads a bike and checks the caller owns it.
func (s *BikeService) ownedBike(ctx context.Context, accountID, bikeID string) (*models.Bike, error) {
	bike, err := s.bikes.GetByID(ctx, bikeID)
	if err != nil {
		return nil, err
	}
	if bike.OwnerID == nil || *bike.OwnerID != accountID {
		return nil, models.ErrForbidden
	}
	return bike, nil
}

func (s *BikeService) upload(ctx context.Context, u *Upload, allowed map[string]bool, maxSize int, path string) (*BlobRef, error) {
	if !allowed[u.ContentType] {
		return nil, &models.ValidationError{Message: fmt.Sprintf("unsupported content type %q", u.ContentType)}
	}
	if len(u.Data) > maxSize {
		return nil, &models.ValidationError{Message: "file too large"}
	}

	ref, err := s.blobs.Upload(ctx, u.Data, u.ContentType, path)
	if err != nil {
		s.logger.Error("blob upload failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return ref, nil
}
