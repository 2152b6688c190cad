package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/learnpay/backend/internal/services"
)

type QRHandler struct {
	service   *services.QRService
	validator *services.ValidationHelper
}

func NewQRHandler(service *services.QRService) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateFundingQR generates a funding QR for the caller's wallet
// @Summary Generate funding QR
// @Description Generate a short-lived QR code carrying a wallet funding reference
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=int64,currency=string} true "Funding QR request"
// @Success 200 {object} object{reference=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/funding-qr [post]
func (h *QRHandler) GenerateFundingQR(w http.ResponseWriter, r *http.Request) {
	owner, err := services.OwnerFromRequest(r)
	if err != nil {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount   int64  `json:"amount" validate:"required,gt=0"`
		Currency string `json:"currency" validate:"required,len=3"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	reference, qrImage, err := h.service.GenerateFundingQR(r.Context(), owner, req.Amount, req.Currency)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"reference": reference,
		"qrImage":   qrImage,
	})
}

// ResolveFundingQR resolves a scanned funding QR
// @Summary Resolve funding QR
// @Description Resolve a scanned funding QR into its payment reference payload
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{reference=string} true "Funding QR reference"
// @Success 200 {object} object{ownerId=string,amount=int64}
// @Failure 400 {object} services.ErrorResponse
// @Router /wallet/funding-qr/resolve [post]
func (h *QRHandler) ResolveFundingQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reference string `json:"reference" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ResolveFundingQR(r.Context(), req.Reference)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}
