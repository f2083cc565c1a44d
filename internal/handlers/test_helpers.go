package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/models"
	"github.com/mincykel/backend/internal/services"
	pkghttp "github.com/mincykel/backend/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds an authenticated account id to the request context
func WithAuthContext(req *http.Request, accountID string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.AccountContextKey, accountID)
	return req.WithContext(ctx)
}

// WithURLParams injects chi URL parameters into the request context
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

// MultipartFile is one file part of a multipart test request
type MultipartFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewMultipartRequest creates a multipart/form-data request for testing
func NewMultipartRequest(t *testing.T, method, url string, fields map[string]string, files map[string]MultipartFile) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}
	for field, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file.Filename))
		header.Set("Content-Type", file.ContentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create form file %s: %v", field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			t.Fatalf("failed to write form file %s: %v", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to finalize multipart body: %v", err)
	}

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc                func(ctx context.Context, phoneNumber, password, origin string) (*services.LoginResult, error)
	TrustDeviceFunc          func(ctx context.Context, sessionID, code, label string) (*services.AuthResponse, error)
	RegisterFunc             func(ctx context.Context, phoneNumber, password, origin string) (string, error)
	VerifyRegistrationFunc   func(ctx context.Context, sessionID, code, origin, originLabel string) (*services.AuthResponse, error)
	RequestPasswordResetFunc func(ctx context.Context, phoneNumber string) (string, error)
	VerifyPasswordResetFunc  func(ctx context.Context, sessionID, code string) error
	ConfirmPasswordResetFunc func(ctx context.Context, sessionID, newPassword string) (*services.AuthResponse, error)
	RefreshTokenFunc         func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	GetAccountFunc           func(ctx context.Context, accountID string) (*models.Account, error)
	ListDevicesFunc          func(ctx context.Context, accountID string) ([]*models.Device, error)
}

func (m *MockAuthService) Login(ctx context.Context, phoneNumber, password, origin string) (*services.LoginResult, error) {
	return m.LoginFunc(ctx, phoneNumber, password, origin)
}

func (m *MockAuthService) TrustDevice(ctx context.Context, sessionID, code, label string) (*services.AuthResponse, error) {
	return m.TrustDeviceFunc(ctx, sessionID, code, label)
}

func (m *MockAuthService) Register(ctx context.Context, phoneNumber, password, origin string) (string, error) {
	return m.RegisterFunc(ctx, phoneNumber, password, origin)
}

func (m *MockAuthService) VerifyRegistration(ctx context.Context, sessionID, code, origin, originLabel string) (*services.AuthResponse, error) {
	return m.VerifyRegistrationFunc(ctx, sessionID, code, origin, originLabel)
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, phoneNumber string) (string, error) {
	return m.RequestPasswordResetFunc(ctx, phoneNumber)
}

func (m *MockAuthService) VerifyPasswordReset(ctx context.Context, sessionID, code string) error {
	return m.VerifyPasswordResetFunc(ctx, sessionID, code)
}

func (m *MockAuthService) ConfirmPasswordReset(ctx context.Context, sessionID, newPassword string) (*services.AuthResponse, error) {
	return m.ConfirmPasswordResetFunc(ctx, sessionID, newPassword)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return m.GetAccountFunc(ctx, accountID)
}

func (m *MockAuthService) ListDevices(ctx context.Context, accountID string) ([]*models.Device, error) {
	return m.ListDevicesFunc(ctx, accountID)
}

// MockBikeService implements BikeServiceInterface for testing
type MockBikeService struct {
	RegisterFunc    func(ctx context.Context, input services.RegisterBikeInput) (*models.Bike, error)
	ClaimFunc       func(ctx context.Context, accountID, claimToken string) (*models.Bike, error)
	ClaimQRFunc     func(ctx context.Context, accountID, bikeID string) ([]byte, error)
	SetStolenFunc   func(ctx context.Context, accountID, bikeID string, stolen bool) (*models.Bike, error)
	ReportFoundFunc func(ctx context.Context, reporterID string, input services.FoundReportInput) (*models.FoundBikeReport, error)
	GetFunc         func(ctx context.Context, bikeID string) (*models.Bike, error)
	ListFunc        func(ctx context.Context, limit, offset int) ([]*models.Bike, error)
	ListByOwnerFunc func(ctx context.Context, ownerID string) ([]*models.Bike, error)
}

func (m *MockBikeService) Register(ctx context.Context, input services.RegisterBikeInput) (*models.Bike, error) {
	return m.RegisterFunc(ctx, input)
}

func (m *MockBikeService) Claim(ctx context.Context, accountID, claimToken string) (*models.Bike, error) {
	return m.ClaimFunc(ctx, accountID, claimToken)
}

func (m *MockBikeService) ClaimQR(ctx context.Context, accountID, bikeID string) ([]byte, error) {
	return m.ClaimQRFunc(ctx, accountID, bikeID)
}

func (m *MockBikeService) SetStolen(ctx context.Context, accountID, bikeID string, stolen bool) (*models.Bike, error) {
	return m.SetStolenFunc(ctx, accountID, bikeID, stolen)
}

func (m *MockBikeService) ReportFound(ctx context.Context, reporterID string, input services.FoundReportInput) (*models.FoundBikeReport, error) {
	return m.ReportFoundFunc(ctx, reporterID, input)
}

func (m *MockBikeService) Get(ctx context.Context, bikeID string) (*models.Bike, error) {
	return m.GetFunc(ctx, bikeID)
}

func (m *MockBikeService) List(ctx context.Context, limit, offset int) ([]*models.Bike, error) {
	return m.ListFunc(ctx, limit, offset)
}

func (m *MockBikeService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Bike, error) {
	return m.ListByOwnerFunc(ctx, ownerID)
}

// MockTransferService implements TransferServiceInterface for testing
type MockTransferService struct {
	CreateFunc  func(ctx context.Context, senderID, bikeID, receiverPhone string) (*models.Transfer, error)
	AcceptFunc  func(ctx context.Context, accountID, transferID string) (*models.Transfer, error)
	RejectFunc  func(ctx context.Context, accountID, transferID string) (*models.Transfer, error)
	RetractFunc func(ctx context.Context, accountID, transferID string) error
	GetFunc     func(ctx context.Context, accountID, transferID string) (*models.Transfer, error)
}

func (m *MockTransferService) Create(ctx context.Context, senderID, bikeID, receiverPhone string) (*models.Transfer, error) {
	return m.CreateFunc(ctx, senderID, bikeID, receiverPhone)
}

func (m *MockTransferService) Accept(ctx context.Context, accountID, transferID string) (*models.Transfer, error) {
	return m.AcceptFunc(ctx, accountID, transferID)
}

func (m *MockTransferService) Reject(ctx context.Context, accountID, transferID string) (*models.Transfer, error) {
	return m.RejectFunc(ctx, accountID, transferID)
}

func (m *MockTransferService) Retract(ctx context.Context, accountID, transferID string) error {
	return m.RetractFunc(ctx, accountID, transferID)
}

func (m *MockTransferService) Get(ctx context.Context, accountID, transferID string) (*models.Transfer, error) {
	return m.GetFunc(ctx, accountID, transferID)
}

// MockActivityService implements ActivityServiceInterface for testing
type MockActivityService struct {
	GetActivitiesFunc func(ctx context.Context, accountID string) (*services.ActivityView, error)
}

func (m *MockActivityService) GetActivities(ctx context.Context, accountID string) (*services.ActivityView, error) {
	return m.GetActivitiesFunc(ctx, accountID)
}
