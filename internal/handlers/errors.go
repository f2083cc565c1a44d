package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/mincykel/backend/internal/models"
	pkghttp "github.com/mincykel/backend/pkg/http"
)

// writeServiceError maps service-layer errors onto the HTTP error
// vocabulary. Handlers with flow-specific responses (login) do their own
// mapping before falling back here.
func writeServiceError(w http.ResponseWriter, err error) {
	var cooldownErr *models.CooldownError
	var smsErr *models.SMSCooldownError
	var rateErr *models.SessionRateLimitError
	var validationErr *models.ValidationError

	switch {
	case errors.As(err, &cooldownErr):
		pkghttp.WriteTooManyRequests(w, err.Error(), cooldownErr.ExpiresAt)
	case errors.As(err, &rateErr):
		pkghttp.WriteTooManyRequests(w, err.Error(), time.Now().Add(rateErr.RetryAfter))
	case errors.As(err, &smsErr):
		pkghttp.WriteTooEarly(w, err.Error(), smsErr.ExpiresAt)
	case errors.As(err, &validationErr):
		pkghttp.WriteBadRequest(w, validationErr.Message)
	case errors.Is(err, models.ErrDeviceBlacklisted):
		pkghttp.WriteLocked(w, "Access from this device is blocked")
	case errors.Is(err, models.ErrResetNotVerified):
		pkghttp.WriteBadRequest(w, "Reset code has not been verified")
	case errors.Is(err, models.ErrBikeStolen):
		pkghttp.WriteConflict(w, "Bike is reported stolen")
	case errors.Is(err, models.ErrBikeNotTransferable):
		pkghttp.WriteConflict(w, "Bike is not transferable")
	case errors.Is(err, models.ErrTransferClosed):
		pkghttp.WriteConflict(w, "Transfer is already closed")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource state conflict")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
