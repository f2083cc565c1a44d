package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/config"
	"github.com/mincykel/backend/internal/database"
	"github.com/mincykel/backend/internal/handlers"
	middlewareCustom "github.com/mincykel/backend/internal/middleware"
	"github.com/mincykel/backend/internal/repositories"
	"github.com/mincykel/backend/internal/routes"
	"github.com/mincykel/backend/internal/services"
	pkghttp "github.com/mincykel/backend/pkg/http"
	pkglogger "github.com/mincykel/backend/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	accessSessionRepo := repositories.NewAccessSessionRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	bikeRepo := repositories.NewBikeRepository(db)
	transferRepo := repositories.NewTransferRepository(db)
	foundReportRepo := repositories.NewFoundReportRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// SMS delivery: AWS SNS in production, log-only in development
	var notifier services.Notifier
	if cfg.SMS.Enabled {
		snsNotifier, err := services.NewSNSNotifier(cfg.SMS.AWSRegion, cfg.SMS.SenderID, logger)
		if err != nil {
			logger.Error("failed to initialize sms service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = snsNotifier
	} else {
		notifier = services.NewLogNotifier(logger)
	}

	// Blob storage for bike images and receipts
	blobStore, err := services.NewS3BlobStore(cfg.Storage.AWSRegion, cfg.Storage.Bucket, logger)
	if err != nil {
		logger.Error("failed to initialize blob storage", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
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
	bikeService := services.NewBikeService(bikeRepo, foundReportRepo, blobStore, cfg.Server.ClaimBaseURL, logger)
	transferService := services.NewTransferService(transferRepo, bikeRepo, accountRepo, logger)
	activityService := services.NewActivityService(transferRepo, bikeRepo, accountRepo, foundReportRepo, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	bikeHandler := handlers.NewBikeHandler(bikeService)
	transferHandler := handlers.NewTransferHandler(transferService)
	activityHandler := handlers.NewActivityHandler(activityService)

	// Setup router
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, bikeHandler, transferHandler, activityHandler, tokenManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
