package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/models"
	pkghttp "github.com/mincykel/backend/pkg/http"
)

// TransferServiceInterface defines the interface for transfer business logic
type TransferServiceInterface interface {
	Create(ctx context.Context, senderID, bikeID, receiverPhone string) (*models.Transfer, error)
	Accept(ctx context.Context, accountID, transferID string) (*models.Transfer, error)
	Reject(ctx context.Context, accountID, transferID string) (*models.Transfer, error)
	Retract(ctx context.Context, accountID, transferID string) error
	Get(ctx context.Context, accountID, transferID string) (*models.Transfer, error)
}

// TransferHandler handles ownership transfer HTTP requests
type TransferHandler struct {
	service TransferServiceInterface
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(service TransferServiceInterface) *TransferHandler {
	return &TransferHandler{service: service}
}

// CreateTransferRequest represents the request body for offering a bike
type CreateTransferRequest struct {
	BikeID              string `json:"bike_id" validate:"required,uuid"`
	ReceiverPhoneNumber string `json:"receiver_phone_number" validate:"required"`
}

// TransferResponse is a transfer as returned to clients
type TransferResponse struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	BikeID     string     `json:"bike_id"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

func toTransferResponse(t *models.Transfer) TransferResponse {
	return TransferResponse{
		ID:         t.ID,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		BikeID:     t.BikeID,
		State:      string(t.State),
		CreatedAt:  t.CreatedAt,
		ClosedAt:   t.ClosedAt,
	}
}

// CreateTransfer offers the caller's bike to another account
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	phone, err := NormalizePhoneNumber(req.ReceiverPhoneNumber)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	transfer, err := h.service.Create(r.Context(), accountID, req.BikeID, phone)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toTransferResponse(transfer))
}

// GetTransfer returns a transfer the caller is party to
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	transfer, err := h.service.Get(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

// AcceptTransfer closes a pending transfer in the caller's favor
func (h *TransferHandler) AcceptTransfer(w http.ResponseWriter, r *http.Request) {
	h.closeTransfer(w, r, true)
}

// RejectTransfer declines a pending transfer
func (h *TransferHandler) RejectTransfer(w http.ResponseWriter, r *http.Request) {
	h.closeTransfer(w, r, false)
}

func (h *TransferHandler) closeTransfer(w http.ResponseWriter, r *http.Request, accept bool) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}
	transferID := chi.URLParam(r, "id")

	var transfer *models.Transfer
	var err error
	if accept {
		transfer, err = h.service.Accept(r.Context(), accountID, transferID)
	} else {
		transfer, err = h.service.Reject(r.Context(), accountID, transferID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

// RetractTransfer withdraws the caller's pending offer
func (h *TransferHandler) RetractTransfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Retract(r.Context(), accountID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
