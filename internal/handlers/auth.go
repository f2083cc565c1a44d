package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/models"
	"github.com/mincykel/backend/internal/services"
	pkghttp "github.com/mincykel/backend/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, phoneNumber, password, origin string) (*services.LoginResult, error)
	TrustDevice(ctx context.Context, sessionID, code, label string) (*services.AuthResponse, error)
	Register(ctx context.Context, phoneNumber, password, origin string) (string, error)
	VerifyRegistration(ctx context.Context, sessionID, code, origin, originLabel string) (*services.AuthResponse, error)
	RequestPasswordReset(ctx context.Context, phoneNumber string) (string, error)
	VerifyPasswordReset(ctx context.Context, sessionID, code string) error
	ConfirmPasswordReset(ctx context.Context, sessionID, newPassword string) (*services.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListDevices(ctx context.Context, accountID string) ([]*models.Device, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

// SessionCodeRequest carries a two-factor session id and its code
type SessionCodeRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	Code      string `json:"code" validate:"required,len=6"`
}

// TrustDeviceRequest represents the request body for device verification
type TrustDeviceRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	Code      string `json:"code" validate:"required,len=6"`
	Label     string `json:"label" validate:"max=100"`
}

// ResetRequest represents the request body for a password reset request
type ResetRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

// ResetConfirmRequest represents the request body for submitting a new password
type ResetConfirmRequest struct {
	SessionID   string `json:"session_id" validate:"required,uuid"`
	NewPassword string `json:"new_password" validate:"required"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionResponse returns the id of a freshly opened verification session
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// AccountResponse is the authenticated caller's own account
type AccountResponse struct {
	ID          string           `json:"id"`
	PhoneNumber string           `json:"phone_number"`
	CreatedAt   time.Time        `json:"created_at"`
	Devices     []DeviceResponse `json:"devices"`
}

// DeviceResponse is one entry of the account's device lists
type DeviceResponse struct {
	IPAddress string    `json:"ip_address"`
	Label     string    `json:"label"`
	Listing   string    `json:"listing"`
	CreatedAt time.Time `json:"created_at"`
}

// Login handles password login. The response encodes the guard's verdict:
// tokens on success from a trusted device, 307 with a session id when the
// device needs verification, and 401/423/425/429 for the failure modes.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	phone, err := NormalizePhoneNumber(req.PhoneNumber)
	if err != nil {
		// Same response as a wrong password to avoid probing
		pkghttp.WriteUnauthorized(w, "Authentication failed")
		return
	}

	origin := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), phone, req.Password, origin)
	if err != nil {
		var credErr *models.InvalidCredentialsError
		if errors.As(err, &credErr) {
			pkghttp.WriteJSON(w, http.StatusUnauthorized, struct {
				Error        string `json:"error"`
				Message      string `json:"message"`
				AttemptsLeft int    `json:"attempts_left"`
			}{
				Error:        "unauthorized",
				Message:      "Wrong phone number or password",
				AttemptsLeft: credErr.AttemptsLeft,
			})
			return
		}
		writeServiceError(w, err)
		return
	}

	if result.RequiresDeviceVerification {
		pkghttp.WriteDeviceVerificationRequired(w, result.SessionID)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.AuthResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// TrustDevice completes device verification and logs the caller in
func (h *AuthHandler) TrustDevice(w http.ResponseWriter, r *http.Request) {
	var req TrustDeviceRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tokens, err := h.service.TrustDevice(r.Context(), req.SessionID, req.Code, req.Label)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tokens)
}

// Register opens a registration session and sends its code by SMS
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	phone, err := NormalizePhoneNumber(req.PhoneNumber)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	origin := pkghttp.ExtractClientIP(r, h.ipConfig)

	sessionID, err := h.service.Register(r.Context(), phone, req.Password, origin)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "Phone number is already registered")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, SessionResponse{SessionID: sessionID})
}

// VerifyRegistration consumes a registration session and creates the account
func (h *AuthHandler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req SessionCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	origin := pkghttp.ExtractClientIP(r, h.ipConfig)
	label := r.Header.Get("User-Agent")

	tokens, err := h.service.VerifyRegistration(r.Context(), req.SessionID, req.Code, origin, label)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, tokens)
}

// RequestPasswordReset opens a reset session and sends its code by SMS
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	phone, err := NormalizePhoneNumber(req.PhoneNumber)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sessionID, err := h.service.RequestPasswordReset(r.Context(), phone)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, SessionResponse{SessionID: sessionID})
}

// VerifyPasswordReset checks a reset code
func (h *AuthHandler) VerifyPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req SessionCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.VerifyPasswordReset(r.Context(), req.SessionID, req.Code); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ConfirmPasswordReset submits the new password against a verified session
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetConfirmRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tokens, err := h.service.ConfirmPasswordReset(r.Context(), req.SessionID, req.NewPassword)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tokens)
}

// RefreshToken exchanges a refresh token for a new token pair
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tokens, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tokens)
}

// Me returns the authenticated caller's account and device lists
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	devices, err := h.service.ListDevices(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := AccountResponse{
		ID:          account.ID,
		PhoneNumber: account.PhoneNumber,
		CreatedAt:   account.CreatedAt,
		Devices:     make([]DeviceResponse, 0, len(devices)),
	}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, DeviceResponse{
			IPAddress: d.IPAddress,
			Label:     d.Label,
			Listing:   string(d.Listing),
			CreatedAt: d.CreatedAt,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
