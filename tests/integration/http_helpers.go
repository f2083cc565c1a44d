package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/config"
	"github.com/mincykel/backend/internal/database"
	"github.com/mincykel/backend/internal/handlers"
	middlewareCustom "github.com/mincykel/backend/internal/middleware"
	"github.com/mincykel/backend/internal/routes"
	"github.com/mincykel/backend/internal/services"
	pkghttp "github.com/mincykel/backend/pkg/http"
	pkglogger "github.com/mincykel/backend/pkg/logger"
)

// SentSMS represents a captured text message
type SentSMS struct {
	To      string
	Message string
}

// CapturingNotifier records sent messages for test assertions
type CapturingNotifier struct {
	SentMessages []SentSMS
	mu           sync.Mutex
}

// Send records the message
func (n *CapturingNotifier) Send(ctx context.Context, message, phoneNumber string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.SentMessages = append(n.SentMessages, SentSMS{To: phoneNumber, Message: message})
	return nil
}

// LastMessage returns the most recent message sent
func (n *CapturingNotifier) LastMessage() *SentSMS {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.SentMessages) == 0 {
		return nil
	}
	return &n.SentMessages[len(n.SentMessages)-1]
}

// MemoryBlobStore keeps uploaded blobs in memory
type MemoryBlobStore struct {
	Uploads map[string][]byte
	mu      sync.Mutex
}

func (s *MemoryBlobStore) Upload(ctx context.Context, data []byte, contentType, path string) (*services.BlobRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Uploads == nil {
		s.Uploads = make(map[string][]byte)
	}
	objectName := fmt.Sprintf("%s/%d", path, len(s.Uploads))
	s.Uploads[objectName] = data

	return &services.BlobRef{
		URL:        "https://blobs.test.local/" + objectName,
		ObjectName: objectName,
	}, nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Notifier *CapturingNotifier
	Blobs    *MemoryBlobStore
	Config   *config.Config

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server with a real database
// and captured SMS delivery
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
			SessionTTL:         5 * time.Minute,
			RegistrationWindow: 1 * time.Minute,
			ResetWindow:        1 * time.Minute,
			SMSCooldown:        1 * time.Minute,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			ClaimBaseURL:   "https://test.local/claim",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
	}

	accountRepo, accessSessionRepo, sessionRepo, bikeRepo, transferRepo, foundReportRepo :=
		InitializeRepositories(db)

	notifier := &CapturingNotifier{}
	blobs := &MemoryBlobStore{}

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	guard := services.NewAccessGuard(
		accountRepo,
		accessSessionRepo,
		sessionRepo,
		notifier,
		services.GuardConfig{
			SessionTTL:  cfg.Auth.SessionTTL,
			SMSCooldown: cfg.Auth.SMSCooldown,
		},
		logger,
		auditLogger,
	)
	authService := services.NewAuthService(
		accountRepo,
		sessionRepo,
		guard,
		tokenManager,
		notifier,
		services.AuthServiceConfig{
			RegistrationWindow: cfg.Auth.RegistrationWindow,
			ResetWindow:        cfg.Auth.ResetWindow,
			SMSCooldown:        cfg.Auth.SMSCooldown,
		},
		logger,
		auditLogger,
	)
	bikeService := services.NewBikeService(bikeRepo, foundReportRepo, blobs, cfg.Server.ClaimBaseURL, logger)
	transferService := services.NewTransferService(transferRepo, bikeRepo, accountRepo, logger)
	activityService := services.NewActivityService(transferRepo, bikeRepo, accountRepo, foundReportRepo, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	bikeHandler := handlers.NewBikeHandler(bikeService)
	transferHandler := handlers.NewTransferHandler(transferService)
	activityHandler := handlers.NewActivityHandler(activityService)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(router, authHandler, bikeHandler, transferHandler, activityHandler, tokenManager)

	server := httptest.NewServer(router)

	return &TestServer{
		Server:   server,
		DB:       db,
		Notifier: notifier,
		Blobs:    blobs,
		Config:   cfg,
		logger:   logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// DoJSON sends a JSON request. An empty token leaves the request
// unauthenticated.
func (ts *TestServer) DoJSON(t testingT, method, path string, body interface{}, token string) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// DecodeBody decodes a JSON response body into target
func DecodeBody(t testingT, resp *http.Response, target interface{}) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to decode response body %q: %v", data, err)
	}
}

// testingT is the subset of *testing.T the helpers need
type testingT interface {
	Fatalf(format string, args ...any)
}
