package handlers

import (
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/finhealth/internal/api/middleware"
	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/health"
	"github.com/dvloznov/finhealth/internal/store"
)

// HealthScoreHandler computes the financial health score for the
// authenticated user.
type HealthScoreHandler struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewHealthScoreHandler creates a new health score handler.
func NewHealthScoreHandler(s store.Store, log zerolog.Logger) *HealthScoreHandler {
	return &HealthScoreHandler{store: s, log: log, now: time.Now}
}

// Get handles GET /api/health-score. An optional ?date=YYYY-MM-DD query
// parameter overrides the evaluation date, which defaults to today in UTC.
func (h *HealthScoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	evaluationDate := civil.DateOf(h.now().UTC())
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := civil.ParseDate(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		evaluationDate = d
	}

	// The four collections are independent; fetch them concurrently so the
	// endpoint costs one round trip instead of four.
	var (
		transactions []domain.Transaction
		budgets      []domain.Budget
		goals        []domain.Goal
		bills        []domain.Bill
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		transactions, err = h.store.ListTransactions(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = h.store.ListBudgets(ctx, userID, "")
		return err
	})
	g.Go(func() error {
		var err error
		goals, err = h.store.ListGoals(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		bills, err = h.store.ListBills(ctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		h.log.Error().Err(err).Msg("Failed to load records for health score")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute health score")
		return
	}

	score, err := health.Calculate(transactions, budgets, goals, bills, evaluationDate)
	if err != nil {
		var compErr *health.ComputationError
		if errors.As(err, &compErr) {
			h.log.Warn().Err(err).Msg("Health score rejected malformed records")
			middleware.WriteError(w, http.StatusUnprocessableEntity, compErr.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to compute health score")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute health score")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, score)
}
