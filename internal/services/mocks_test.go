package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mincykel/backend/internal/models"
	pkgauth "github.com/mincykel/backend/pkg/auth"
	pkglogger "github.com/mincykel/backend/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

var (
	testHashOnce sync.Once
	testHash     string
)

const testPassword = "correct-horse-battery"

// testPasswordHash hashes once per test binary; bcrypt at production cost
// is too slow to repeat per case.
func testPasswordHash() string {
	testHashOnce.Do(func() {
		h, err := pkgauth.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		testHash = h
	})
	return testHash
}

type mockAccountRepo struct {
	getByIDFn            func(ctx context.Context, id string) (*models.Account, error)
	getByPhoneNumberFn   func(ctx context.Context, phoneNumber string) (*models.Account, error)
	createFn             func(ctx context.Context, account *models.Account, originIP, originLabel string) (*models.Account, error)
	updatePasswordHashFn func(ctx context.Context, accountID, passwordHash string) error
	getDeviceFn          func(ctx context.Context, accountID, ipAddress string) (*models.Device, error)
	addDeviceFn          func(ctx context.Context, accountID, ipAddress, label string, listing models.DeviceListing) (*models.Device, error)
	listDevicesFn        func(ctx context.Context, accountID string) ([]*models.Device, error)
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.getByIDFn == nil {
		return nil, models.ErrNotFound
	}
	return m.getByIDFn(ctx, id)
}

func (m *mockAccountRepo) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.Account, error) {
	if m.getByPhoneNumberFn == nil {
		return nil, models.ErrNotFound
	}
	return m.getByPhoneNumberFn(ctx, phoneNumber)
}

func (m *mockAccountRepo) Create(ctx context.Context, account *models.Account, originIP, originLabel string) (*models.Account, error) {
	if m.createFn == nil {
		account.ID = "acct-created"
		return account, nil
	}
	return m.createFn(ctx, account, originIP, originLabel)
}

func (m *mockAccountRepo) UpdatePasswordHash(ctx context.Context, accountID, passwordHash string) error {
	if m.updatePasswordHashFn == nil {
		return nil
	}
	return m.updatePasswordHashFn(ctx, accountID, passwordHash)
}

func (m *mockAccountRepo) GetDevice(ctx context.Context, accountID, ipAddress string) (*models.Device, error) {
	if m.getDeviceFn == nil {
		return nil, models.ErrNotFound
	}
	return m.getDeviceFn(ctx, accountID, ipAddress)
}

func (m *mockAccountRepo) AddDevice(ctx context.Context, accountID, ipAddress, label string, listing models.DeviceListing) (*models.Device, error) {
	if m.addDeviceFn == nil {
		return &models.Device{AccountID: accountID, IPAddress: ipAddress, Label: label, Listing: listing}, nil
	}
	return m.addDeviceFn(ctx, accountID, ipAddress, label, listing)
}

func (m *mockAccountRepo) ListDevices(ctx context.Context, accountID string) ([]*models.Device, error) {
	if m.listDevicesFn == nil {
		return nil, nil
	}
	return m.listDevicesFn(ctx, accountID)
}

type mockAccessSessionRepo struct {
	getOrCreateFn func(ctx context.Context, accountID, ipAddress, code string) (*models.AccessSession, error)
	updateFn      func(ctx context.Context, session *models.AccessSession) error
}

func (m *mockAccessSessionRepo) GetOrCreate(ctx context.Context, accountID, ipAddress, code string) (*models.AccessSession, error) {
	if m.getOrCreateFn == nil {
		return &models.AccessSession{ID: "sess-1", AccountID: accountID, IPAddress: ipAddress, Code: code}, nil
	}
	return m.getOrCreateFn(ctx, accountID, ipAddress, code)
}

func (m *mockAccessSessionRepo) Update(ctx context.Context, session *models.AccessSession) error {
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, session)
}

type mockSessionRepo struct {
	createFn            func(ctx context.Context, session *models.TwoFactorSession, ttl time.Duration) (*models.TwoFactorSession, error)
	getByIDFn           func(ctx context.Context, id string) (*models.TwoFactorSession, error)
	markVerifiedFn      func(ctx context.Context, id string) error
	deleteFn            func(ctx context.Context, id string) error
	mostRecentByPhoneFn func(ctx context.Context, kind models.SessionKind, phoneNumber string) (*models.TwoFactorSession, error)
	mostRecentByIPFn    func(ctx context.Context, kind models.SessionKind, ipAddress string) (*models.TwoFactorSession, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.TwoFactorSession, ttl time.Duration) (*models.TwoFactorSession, error) {
	if m.createFn == nil {
		session.ID = "tfs-1"
		session.ExpiresAt = time.Now().Add(ttl)
		return session, nil
	}
	return m.createFn(ctx, session, ttl)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*models.TwoFactorSession, error) {
	if m.getByIDFn == nil {
		return nil, models.ErrNotFound
	}
	return m.getByIDFn(ctx, id)
}

func (m *mockSessionRepo) MarkVerified(ctx context.Context, id string) error {
	if m.markVerifiedFn == nil {
		return nil
	}
	return m.markVerifiedFn(ctx, id)
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, id)
}

func (m *mockSessionRepo) MostRecentByPhone(ctx context.Context, kind models.SessionKind, phoneNumber string) (*models.TwoFactorSession, error) {
	if m.mostRecentByPhoneFn == nil {
		return nil, models.ErrNotFound
	}
	return m.mostRecentByPhoneFn(ctx, kind, phoneNumber)
}

func (m *mockSessionRepo) MostRecentByIP(ctx context.Context, kind models.SessionKind, ipAddress string) (*models.TwoFactorSession, error) {
	if m.mostRecentByIPFn == nil {
		return nil, models.ErrNotFound
	}
	return m.mostRecentByIPFn(ctx, kind, ipAddress)
}

type mockNotifier struct {
	sendFn func(ctx context.Context, message, phoneNumber string) error
	sent   []string
}

func (m *mockNotifier) Send(ctx context.Context, message, phoneNumber string) error {
	m.sent = append(m.sent, message)
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, message, phoneNumber)
}

type mockBlobStore struct {
	uploadFn func(ctx context.Context, data []byte, contentType, path string) (*BlobRef, error)
}

func (m *mockBlobStore) Upload(ctx context.Context, data []byte, contentType, path string) (*BlobRef, error) {
	if m.uploadFn == nil {
		return &BlobRef{URL: "https://blobs.test/" + path + "/obj", ObjectName: path + "/obj"}, nil
	}
	return m.uploadFn(ctx, data, contentType, path)
}

type mockBikeRepo struct {
	createFn            func(ctx context.Context, bike *models.Bike) (*models.Bike, error)
	getByIDFn           func(ctx context.Context, id string) (*models.Bike, error)
	getByFrameNumberFn  func(ctx context.Context, frameNumber string) (*models.Bike, error)
	getByClaimTokenFn   func(ctx context.Context, claimToken string) (*models.Bike, error)
	listFn              func(ctx context.Context, limit, offset int) ([]*models.Bike, error)
	listByOwnerFn       func(ctx context.Context, ownerID string) ([]*models.Bike, error)
	claimFn             func(ctx context.Context, bikeID, ownerID string) error
	setReportedStolenFn func(ctx context.Context, bikeID string, stolen bool) error
}

func (m *mockBikeRepo) Create(ctx context.Context, bike *models.Bike) (*models.Bike, error) {
	if m.createFn == nil {
		bike.ID = "bike-created"
		bike.State = models.BikeStateUnclaimed
		return bike, nil
	}
	return m.createFn(ctx, bike)
}

func (m *mockBikeRepo) GetByID(ctx context.Context, id string) (*models.Bike, error) {
	if m.getByIDFn == nil {
		return nil, models.ErrNotFound
	}
	return m.getByIDFn(ctx, id)
}

func (m *mockBikeRepo) GetByFrameNumber(ctx context.Context, frameNumber string) (*models.Bike, error) {
	if m.getByFrameNumberFn == nil {
		return nil, models.ErrNotFound
	}
	return m.getByFrameNumberFn(ctx, frameNumber)
}

func (m *mockBikeRepo) GetByClaimToken(ctx context.Context, claimToken string) (*models.Bike, error) {
	if m.getByClaimTokenFn == nil {
		return nil, models.ErrNotFound
	}
	return m.getByClaimTokenFn(ctx, claimToken)
}

func (m *mockBikeRepo) List(ctx context.Context, limit, offset int) ([]*models.Bike, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, limit, offset)
}

func (m *mockBikeRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Bike, error) {
	if m.listByOwnerFn == nil {
		return nil, nil
	}
	return m.listByOwnerFn(ctx, ownerID)
}

func (m *mockBikeRepo) Claim(ctx context.Context, bikeID, ownerID string) error {
	if m.claimFn == nil {
		return nil
	}
	return m.claimFn(ctx, bikeID, ownerID)
}

func (m *mockBikeRepo) SetReportedStolen(ctx context.Context, bikeID string, stolen bool) error {
	if m.setReportedStolenFn == nil {
		return nil
	}
	return m.setReportedStolenFn(ctx, bikeID, stolen)
}

type mockTransferRepo struct {
	getByIDFn               func(ctx context.Context, id string) (*models.Transfer, error)
	createPendingFn         func(ctx context.Context, transfer *models.Transfer) (*models.Transfer, error)
	closeFn                 func(ctx context.Context, transfer *models.Transfer, state models.TransferState) error
	deletePendingFn         func(ctx context.Context, transfer *models.Transfer) error
	listPendingBySenderFn   func(ctx context.Context, accountID string) ([]*models.Transfer, error)
	listPendingByReceiverFn func(ctx context.Context, accountID string) ([]*models.Transfer, error)
	listClosedByAccountFn   func(ctx context.Context, accountID string) ([]*models.Transfer, error)
}

func (m *mockTransferRepo) GetByID(ctx context.Context, id string) (*models.Transfer, error) {
	if m.getByIDFn == nil {
		return nil, models.ErrNotFound
	}
	return m.getByIDFn(ctx, id)
}

func (m *mockTransferRepo) CreatePending(ctx context.Context, transfer *models.Transfer) (*models.Transfer, error) {
	if m.createPendingFn == nil {
		transfer.ID = "transfer-created"
		transfer.State = models.TransferPending
		return transfer, nil
	}
	return m.createPendingFn(ctx, transfer)
}

func (m *mockTransferRepo) Close(ctx context.Context, transfer *models.Transfer, state models.TransferState) error {
	if m.closeFn == nil {
		return nil
	}
	return m.closeFn(ctx, transfer, state)
}

func (m *mockTransferRepo) DeletePending(ctx context.Context, transfer *models.Transfer) error {
	if m.deletePendingFn == nil {
		return nil
	}
	return m.deletePendingFn(ctx, transfer)
}

func (m *mockTransferRepo) ListPendingBySender(ctx context.Context, accountID string) ([]*models.Transfer, error) {
	if m.listPendingBySenderFn == nil {
		return nil, nil
	}
	return m.listPendingBySenderFn(ctx, accountID)
}

func (m *mockTransferRepo) ListPendingByReceiver(ctx context.Context, accountID string) ([]*models.Transfer, error) {
	if m.listPendingByReceiverFn == nil {
		return nil, nil
	}
	return m.listPendingByReceiverFn(ctx, accountID)
}

func (m *mockTransferRepo) ListClosedByAccount(ctx context.Context, accountID string) ([]*models.Transfer, error) {
	if m.listClosedByAccountFn == nil {
		return nil, nil
	}
	return m.listClosedByAccountFn(ctx, accountID)
}

type mockFoundReportRepo struct {
	createFn              func(ctx context.Context, report *models.FoundBikeReport) (*models.FoundBikeReport, error)
	listForOwnerFn        func(ctx context.Context, accountID string) ([]*models.FoundBikeReport, error)
	deleteByFrameNumberFn func(ctx context.Context, frameNumber string) (int64, error)
}

func (m *mockFoundReportRepo) Create(ctx context.Context, report *models.FoundBikeReport) (*models.FoundBikeReport, error) {
	if m.createFn == nil {
		report.ID = "report-created"
		return report, nil
	}
	return m.createFn(ctx, report)
}

func (m *mockFoundReportRepo) ListForOwner(ctx context.Context, accountID string) ([]*models.FoundBikeReport, error) {
	if m.listForOwnerFn == nil {
		return nil, nil
	}
	return m.listForOwnerFn(ctx, accountID)
}

func (m *mockFoundReportRepo) DeleteByFrameNumber(ctx context.Context, frameNumber string) (int64, error) {
	if m.deleteByFrameNumberFn == nil {
		return 0, nil
	}
	return m.deleteByFrameNumberFn(ctx, frameNumber)
}
