package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/api/middleware"
	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/store"
)

// BudgetsHandler handles budget endpoints.
type BudgetsHandler struct {
	store store.BudgetStore
	log   zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(s store.BudgetStore, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{store: s, log: log}
}

type budgetPayload struct {
	Category *string          `json:"category"`
	Amount   *decimal.Decimal `json:"amount"`
	Month    *string          `json:"month"`
}

func validBudgetMonth(s string) bool {
	if len(s) != 7 {
		return false
	}
	_, err := time.Parse("2006-01", s)
	return err == nil
}

// List handles GET /api/budgets with an optional ?month=YYYY-MM filter.
func (h *BudgetsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	month := r.URL.Query().Get("month")
	if month != "" && !validBudgetMonth(month) {
		middleware.WriteError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	budgets, err := h.store.ListBudgets(r.Context(), userID, month)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list budgets")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list budgets")
		return
	}

	if budgets == nil {
		budgets = []domain.Budget{}
	}
	middleware.WriteJSON(w, http.StatusOK, budgets)
}

// Create handles POST /api/budgets
func (h *BudgetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req budgetPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Category == nil || strings.TrimSpace(*req.Category) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "category is required")
		return
	}
	if req.Amount == nil || req.Amount.IsNegative() {
		middleware.WriteError(w, http.StatusBadRequest, "amount is required and must not be negative")
		return
	}
	if req.Month == nil || !validBudgetMonth(*req.Month) {
		middleware.WriteError(w, http.StatusBadRequest, "month is required and must be YYYY-MM")
		return
	}

	b := &domain.Budget{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  strings.TrimSpace(*req.Category),
		Amount:    *req.Amount,
		Month:     *req.Month,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateBudget(r.Context(), b); err != nil {
		h.log.Error().Err(err).Msg("Failed to create budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create budget")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, b)
}

// Get handles GET /api/budgets/{id}
func (h *BudgetsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	b, err := h.store.GetBudget(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Budget not found")
			return
		}
		h.log.Error().Err(err).Str("budget_id", id).Msg("Failed to get budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, b)
}

// Update handles PUT/PATCH /api/budgets/{id}
func (h *BudgetsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	var req budgetPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.store.GetBudget(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Budget not found")
			return
		}
		h.log.Error().Err(err).Str("budget_id", id).Msg("Failed to get budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update budget")
		return
	}

	if req.Category != nil {
		if strings.TrimSpace(*req.Category) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "category must not be empty")
			return
		}
		b.Category = strings.TrimSpace(*req.Category)
	}
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			middleware.WriteError(w, http.StatusBadRequest, "amount must not be negative")
			return
		}
		b.Amount = *req.Amount
	}
	if req.Month != nil {
		if !validBudgetMonth(*req.Month) {
			middleware.WriteError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		b.Month = *req.Month
	}

	if err := h.store.UpdateBudget(r.Context(), b); err != nil {
		h.log.Error().Err(err).Str("budget_id", id).Msg("Failed to update budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, b)
}

// Delete handles DELETE /api/budgets/{id}
func (h *BudgetsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	if err := h.store.DeleteBudget(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Budget not found")
			return
		}
		h.log.Error().Err(err).Str("budget_id", id).Msg("Failed to delete budget")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
