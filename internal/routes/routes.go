package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/handlers"
	"github.com/mincykel/backend/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	bikeHandler *handlers.BikeHandler,
	transferHandler *handlers.TransferHandler,
	activityHandler *handlers.ActivityHandler,
	tokenManager *auth.TokenManager,
) {
	authRateLimit := middleware.DefaultAuthRateLimit()
	apiRateLimit := middleware.DefaultAPIRateLimit()

	// Public routes - no authentication required. The access guard inside
	// the auth service enforces the per-account policy; the IP rate limit
	// here is a coarse outer layer.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(authRateLimit))

		r.Post("/auth/token", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/register/verify", authHandler.VerifyRegistration)
		r.Put("/auth/reset-password/request", authHandler.RequestPasswordReset)
		r.Put("/auth/reset-password/verify", authHandler.VerifyPasswordReset)
		r.Put("/auth/reset-password/confirm", authHandler.ConfirmPasswordReset)
		r.Put("/auth/trust-device", authHandler.TrustDevice)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))
		r.Use(middleware.RateLimitByIP(apiRateLimit))

		r.Get("/auth/me", authHandler.Me)

		r.Post("/bikes", bikeHandler.CreateBike)
		r.Get("/bikes", bikeHandler.ListBikes)
		r.Get("/bikes/mine", bikeHandler.ListMyBikes)
		r.Get("/bikes/{id}", bikeHandler.GetBike)
		r.Post("/bikes/claim/{token}", bikeHandler.ClaimBike)
		r.Get("/bikes/{id}/claim-qr", bikeHandler.ClaimQR)
		r.Put("/bikes/{id}/report-stolen", bikeHandler.SetStolen)
		r.Post("/bikes/found-reports", bikeHandler.ReportFound)

		r.Post("/transfers", transferHandler.CreateTransfer)
		r.Get("/transfers/{id}", transferHandler.GetTransfer)
		r.Put("/transfers/{id}/accept", transferHandler.AcceptTransfer)
		r.Put("/transfers/{id}/reject", transferHandler.RejectTransfer)
		r.Put("/transfers/{id}/retract", transferHandler.RetractTransfer)

		r.Get("/activities", activityHandler.GetActivities)
	})
}
