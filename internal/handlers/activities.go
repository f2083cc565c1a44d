package handlers

import (
	"context"
	"net/http"

	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/services"
	pkghttp "github.com/mincykel/backend/pkg/http"
)

// ActivityServiceInterface defines the interface for the activity feed
type ActivityServiceInterface interface {
	GetActivities(ctx context.Context, accountID string) (*services.ActivityView, error)
}

// ActivityHandler handles activity feed HTTP requests
type ActivityHandler struct {
	service ActivityServiceInterface
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(service ActivityServiceInterface) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// GetActivities returns the caller's pending and historic transfers plus
// found-bike alerts
func (h *ActivityHandler) GetActivities(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	view, err := h.service.GetActivities(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, view)
}
