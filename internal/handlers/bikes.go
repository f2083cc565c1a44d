package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mincykel/backend/internal/auth"
	"github.com/mincykel/backend/internal/models"
	"github.com/mincykel/backend/internal/services"
	pkghttp "github.com/mincykel/backend/pkg/http"
)

// BikeServiceInterface defines the interface for bike business logic
type BikeServiceInterface interface {
	Register(ctx context.Context, input services.RegisterBikeInput) (*models.Bike, error)
	Claim(ctx context.Context, accountID, claimToken string) (*models.Bike, error)
	ClaimQR(ctx context.Context, accountID, bikeID string) ([]byte, error)
	SetStolen(ctx context.Context, accountID, bikeID string, stolen bool) (*models.Bike, error)
	ReportFound(ctx context.Context, reporterID string, input services.FoundReportInput) (*models.FoundBikeReport, error)
	Get(ctx context.Context, bikeID string) (*models.Bike, error)
	List(ctx context.Context, limit, offset int) ([]*models.Bike, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Bike, error)
}

// BikeHandler handles bike-related HTTP requests
type BikeHandler struct {
	service BikeServiceInterface
}

// NewBikeHandler creates a new BikeHandler
func NewBikeHandler(service BikeServiceInterface) *BikeHandler {
	return &BikeHandler{service: service}
}

// maxMultipartMemory caps the in-memory portion of multipart parsing;
// larger parts spill to temp files.
const maxMultipartMemory = 16 << 20

// createBikeForm mirrors the multipart form fields of bike registration
type createBikeForm struct {
	FrameNumber string `validate:"required,min=3,max=32"`
	Gender      string `validate:"required,oneof=male female uni_sex"`
	Kind        string `validate:"required,oneof=city mountain road race cargo hybrid cruiser folding bmx other"`
	Color       string `validate:"required,oneof=black white gray red blue green yellow orange purple other"`
	Brand       string `validate:"max=100"`
}

// SetStolenRequest represents the request body for toggling the stolen flag
type SetStolenRequest struct {
	Stolen *bool `json:"stolen" validate:"required"`
}

// BikeResponse is a bike as returned to clients. Receipt and claim token
// only appear for the owner, or for the registrant while the bike is
// still unclaimed.
type BikeResponse struct {
	ID             string     `json:"id"`
	FrameNumber    string     `json:"frame_number"`
	OwnerID        *string    `json:"owner_id"`
	Gender         string     `json:"gender"`
	Kind           string     `json:"kind"`
	Color          string     `json:"color"`
	Brand          string     `json:"brand"`
	IsElectric     bool       `json:"is_electric"`
	ImageURL       *string    `json:"image_url"`
	ReceiptURL     *string    `json:"receipt_url,omitempty"`
	ClaimToken     string     `json:"claim_token,omitempty"`
	ReportedStolen bool       `json:"reported_stolen"`
	StolenAt       *time.Time `json:"stolen_at,omitempty"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toBikeResponse(bike *models.Bike, viewerID string) BikeResponse {
	resp := BikeResponse{
		ID:             bike.ID,
		FrameNumber:    bike.FrameNumber,
		OwnerID:        bike.OwnerID,
		Gender:         string(bike.Gender),
		Kind:           string(bike.Kind),
		Color:          string(bike.Color),
		Brand:          bike.Brand,
		IsElectric:     bike.IsElectric,
		ImageURL:       bike.ImageURL,
		ReportedStolen: bike.ReportedStolen,
		StolenAt:       bike.StolenAt,
		State:          string(bike.State),
		CreatedAt:      bike.CreatedAt,
	}

	if bike.ClaimTokenAccessibleBy(viewerID) {
		resp.ReceiptURL = bike.ReceiptURL
		resp.ClaimToken = bike.ClaimToken
	}

	return resp
}

// CreateBike registers a new bike from a multipart form
func (h *BikeHandler) CreateBike(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid multipart form")
		return
	}

	form := createBikeForm{
		FrameNumber: r.FormValue("frame_number"),
		Gender:      r.FormValue("gender"),
		Kind:        r.FormValue("kind"),
		Color:       r.FormValue("color"),
		Brand:       r.FormValue("brand"),
	}
	if err := ValidateRequest(form); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	isElectric, _ := strconv.ParseBool(r.FormValue("is_electric"))

	image, err := readUpload(r, "image")
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	receipt, err := readUpload(r, "receipt")
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	bike, err := h.service.Register(r.Context(), services.RegisterBikeInput{
		FrameNumber:  form.FrameNumber,
		RegisteredBy: accountID,
		Gender:       models.BikeGender(form.Gender),
		Kind:         models.BikeKind(form.Kind),
		Color:        models.BikeColor(form.Color),
		Brand:        form.Brand,
		IsElectric:   isElectric,
		Image:        image,
		Receipt:      receipt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toBikeResponse(bike, accountID))
}

// ListBikes returns a page of registered bikes
func (h *BikeHandler) ListBikes(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	bikes, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]BikeResponse, 0, len(bikes))
	for _, b := range bikes {
		resp = append(resp, toBikeResponse(b, accountID))
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ListMyBikes returns the caller's bikes
func (h *BikeHandler) ListMyBikes(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	bikes, err := h.service.ListByOwner(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]BikeResponse, 0, len(bikes))
	for _, b := range bikes {
		resp = append(resp, toBikeResponse(b, accountID))
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// GetBike returns a single bike
func (h *BikeHandler) GetBike(w http.ResponseWriter, r *http.Request) {
	accountID, _ := auth.AccountIDFromContext(r.Context())
	bikeID := chi.URLParam(r, "id")

	bike, err := h.service.Get(r.Context(), bikeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toBikeResponse(bike, accountID))
}

// ClaimBike consumes a claim token and assigns the caller as owner
func (h *BikeHandler) ClaimBike(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	claimToken := chi.URLParam(r, "token")
	if claimToken == "" {
		pkghttp.WriteBadRequest(w, "Missing claim token")
		return
	}

	bike, err := h.service.Claim(r.Context(), accountID, claimToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toBikeResponse(bike, accountID))
}

// ClaimQR returns a PNG encoding of the bike's claim link
func (h *BikeHandler) ClaimQR(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}
	bikeID := chi.URLParam(r, "id")

	png, err := h.service.ClaimQR(r.Context(), accountID, bikeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// SetStolen toggles the stolen flag on the caller's bike
func (h *BikeHandler) SetStolen(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}
	bikeID := chi.URLParam(r, "id")

	var req SetStolenRequest
	if err := decodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	bike, err := h.service.SetStolen(r.Context(), accountID, bikeID, *req.Stolen)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toBikeResponse(bike, accountID))
}

// ReportFound records a sighting of a (possibly stolen) bike
func (h *BikeHandler) ReportFound(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid multipart form")
		return
	}

	form := struct {
		FrameNumber string `validate:"required,min=3,max=32"`
		Location    string `validate:"required,max=200"`
		Comment     string `validate:"max=1000"`
	}{
		FrameNumber: r.FormValue("frame_number"),
		Location:    r.FormValue("location"),
		Comment:     r.FormValue("comment"),
	}
	if err := ValidateRequest(form); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	image, err := readUpload(r, "image")
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	report, err := h.service.ReportFound(r.Context(), accountID, services.FoundReportInput{
		FrameNumber: form.FrameNumber,
		Location:    form.Location,
		Comment:     form.Comment,
		Image:       image,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, report)
}

// readUpload extracts one optional file from a parsed multipart form.
func readUpload(r *http.Request, field string) (*services.Upload, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &services.Upload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}
