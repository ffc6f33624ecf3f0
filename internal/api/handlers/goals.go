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

// GoalsHandler handles savings goal endpoints.
type GoalsHandler struct {
	store store.GoalStore
	log   zerolog.Logger
}

// NewGoalsHandler creates a new goals handler.
func NewGoalsHandler(s store.GoalStore, log zerolog.Logger) *GoalsHandler {
	return &GoalsHandler{store: s, log: log}
}

type goalPayload struct {
	Title         *string          `json:"title"`
	TargetAmount  *decimal.Decimal `json:"targetAmount"`
	CurrentAmount *decimal.Decimal `json:"currentAmount"`
	Deadline      *string          `json:"deadline"`
}

// List handles GET /api/goals
func (h *GoalsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	goals, err := h.store.ListGoals(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list goals")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list goals")
		return
	}

	if goals == nil {
		goals = []domain.Goal{}
	}
	middleware.WriteJSON(w, http.StatusOK, goals)
}

// Create handles POST /api/goals
func (h *GoalsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req goalPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.TargetAmount == nil || req.TargetAmount.IsNegative() {
		middleware.WriteError(w, http.StatusBadRequest, "targetAmount is required and must not be negative")
		return
	}

	g := &domain.Goal{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        strings.TrimSpace(*req.Title),
		TargetAmount: *req.TargetAmount,
		CreatedAt:    time.Now().UTC(),
	}
	if req.CurrentAmount != nil {
		if req.CurrentAmount.IsNegative() {
			middleware.WriteError(w, http.StatusBadRequest, "currentAmount must not be negative")
			return
		}
		g.CurrentAmount = *req.CurrentAmount
	}
	if req.Deadline != nil && *req.Deadline != "" {
		d, err := civil.ParseDate(*req.Deadline)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "deadline must be YYYY-MM-DD")
			return
		}
		g.Deadline = &d
	}

	if err := h.store.CreateGoal(r.Context(), g); err != nil {
		h.log.Error().Err(err).Msg("Failed to create goal")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create goal")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, g)
}

// Get handles GET /api/goals/{id}
func (h *GoalsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	g, err := h.store.GetGoal(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Goal not found")
			return
		}
		h.log.Error().Err(err).Str("goal_id", id).Msg("Failed to get goal")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get goal")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, g)
}

// Update handles PUT/PATCH /api/goals/{id}. Setting deadline to an empty
// string clears it.
func (h *GoalsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	var req goalPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := h.store.GetGoal(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Goal not found")
			return
		}
		h.log.Error().Err(err).Str("goal_id", id).Msg("Failed to get goal")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update goal")
		return
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		g.Title = strings.TrimSpace(*req.Title)
	}
	if req.TargetAmount != nil {
		if req.TargetAmount.IsNegative() {
			middleware.WriteError(w, http.StatusBadRequest, "targetAmount must not be negative")
			return
		}
		g.TargetAmount = *req.TargetAmount
	}
	if req.CurrentAmount != nil {
		if req.CurrentAmount.IsNegative() {
			middleware.WriteError(w, http.StatusBadRequest, "currentAmount must not be negative")
			return
		}
		g.CurrentAmount = *req.CurrentAmount
	}
	if req.Deadline != nil {
		if *req.Deadline == "" {
			g.Deadline = nil
		} else {
			d, err := civil.ParseDate(*req.Deadline)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "deadline must be YYYY-MM-DD")
				return
			}
			g.Deadline = &d
		}
	}

	if err := h.store.UpdateGoal(r.Context(), g); err != nil {
		h.log.Error().Err(err).Str("goal_id", id).Msg("Failed to update goal")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update goal")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, g)
}

// Delete handles DELETE /api/goals/{id}
func (h *GoalsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	if err := h.store.DeleteGoal(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Goal not found")
			return
		}
		h.log.Error().Err(err).Str("goal_id", id).Msg("Failed to delete goal")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete goal")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
