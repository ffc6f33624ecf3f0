package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/api/middleware"
	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/store"
)

// BillsHandler handles recurring bill endpoints.
type BillsHandler struct {
	store store.BillStore
	log   zerolog.Logger
}

// NewBillsHandler creates a new bills handler.
func NewBillsHandler(s store.BillStore, log zerolog.Logger) *BillsHandler {
	return &BillsHandler{store: s, log: log}
}

type billPayload struct {
	Name     *string          `json:"name"`
	Amount   *decimal.Decimal `json:"amount"`
	Category *string          `json:"category"`
	DueDate  *string          `json:"dueDate"`
}

// List handles GET /api/bills
func (h *BillsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	bills, err := h.store.ListBills(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list bills")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list bills")
		return
	}

	if bills == nil {
		bills = []domain.Bill{}
	}
	middleware.WriteJSON(w, http.StatusOK, bills)
}

// Create handles POST /api/bills
func (h *BillsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req billPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Amount == nil || req.Amount.IsNegative() {
		middleware.WriteError(w, http.StatusBadRequest, "amount is required and must not be negative")
		return
	}
	if req.DueDate == nil {
		middleware.WriteError(w, http.StatusBadRequest, "dueDate is required")
		return
	}
	dueDate, err := civil.ParseDate(*req.DueDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "dueDate must be YYYY-MM-DD")
		return
	}

	b := &domain.Bill{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(*req.Name),
		Amount:    *req.Amount,
		Category:  domain.FallbackCategory,
		DueDate:   dueDate,
		CreatedAt: time.Now().UTC(),
	}
	if req.Category != nil && *req.Category != "" {
		b.Category = *req.Category
	}

	if err := h.store.CreateBill(r.Context(), b); err != nil {
		h.log.Error().Err(err).Msg("Failed to create bill")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create bill")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, b)
}

// Get handles GET /api/bills/{id}
func (h *BillsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	b, err := h.store.GetBill(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Bill not found")
			return
		}
		h.log.Error().Err(err).Str("bill_id", id).Msg("Failed to get bill")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get bill")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, b)
}

// Update handles PUT/PATCH /api/bills/{id}
func (h *BillsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	var req billPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.store.GetBill(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Bill not found")
			return
		}
		h.log.Error().Err(err).Str("bill_id", id).Msg("Failed to get bill")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update bill")
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		b.Name = strings.TrimSpace(*req.Name)
	}
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			middleware.WriteError(w, http.StatusBadRequest, "amount must not be negative")
			return
		}
		b.Amount = *req.Amount
	}
	if req.Category != nil {
		b.Category = *req.Category
	}
	if req.DueDate != nil {
		dueDate, err := civil.ParseDate(*req.DueDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "dueDate must be YYYY-MM-DD")
			return
		}
		b.DueDate = dueDate
	}

	if err := h.store.UpdateBill(r.Context(), b); err != nil {
		h.log.Error().Err(err).Str("bill_id", id).Msg("Failed to update bill")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update bill")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, b)
}

// Delete handles DELETE /api/bills/{id}
func (h *BillsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	if err := h.store.DeleteBill(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Bill not found")
			return
		}
		h.log.Error().Err(err).Str("bill_id", id).Msg("Failed to delete bill")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete bill")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
