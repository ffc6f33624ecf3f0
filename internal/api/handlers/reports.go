package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/api/middleware"
	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/store"
)

// ReportsHandler exports the caller's records in CSV form.
type ReportsHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(s store.Store, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{store: s, log: log}
}

// Transactions handles GET /api/reports/transactions and streams the
// caller's transactions as a CSV download, newest first.
func (h *ReportsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	transactions, err := h.store.ListTransactions(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions for report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export transactions")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "title", "amount", "category", "type", "date"})
	for i := range transactions {
		t := &transactions[i]
		_ = cw.Write([]string{
			t.ID,
			t.Title,
			t.Amount.String(),
			t.Category,
			string(t.Type),
			t.Date.String(),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		// Headers are already sent; all we can do is log.
		h.log.Error().Err(err).Msg("Failed to write CSV report")
	}
}

// Budgets handles GET /api/reports/budgets: one CSV row per budget with
// that month's spending in its category, the remainder, and the usage
// percentage. Optional start_date/end_date query parameters (YYYY-MM or
// YYYY-MM-DD) bound the months included.
func (h *ReportsHandler) Budgets(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	startMonth := monthPrefix(r.URL.Query().Get("start_date"))
	endMonth := monthPrefix(r.URL.Query().Get("end_date"))

	budgets, err := h.store.ListBudgets(r.Context(), userID, "")
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list budgets for report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export budgets")
		return
	}
	transactions, err := h.store.ListTransactions(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions for budgets report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export budgets")
		return
	}

	// Expense totals per month+category, one pass over the transactions.
	spending := make(map[string]decimal.Decimal)
	for i := range transactions {
		t := &transactions[i]
		if t.Type != domain.TypeExpense {
			continue
		}
		key := fmt.Sprintf("%04d-%02d|%s", t.Date.Year, int(t.Date.Month), t.Category)
		spending[key] = spending[key].Add(t.Amount)
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="budgets.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"month", "category", "budget", "spent", "remaining", "usage"})
	for i := range budgets {
		b := &budgets[i]
		if startMonth != "" && b.Month < startMonth {
			continue
		}
		if endMonth != "" && b.Month > endMonth {
			continue
		}

		spent := spending[b.Month+"|"+b.Category]
		remaining := b.Amount.Sub(spent)
		usage := "0.0%"
		if b.Amount.IsPositive() {
			usage = spent.Div(b.Amount).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
		}

		_ = cw.Write([]string{
			b.Month,
			b.Category,
			b.Amount.StringFixed(2),
			spent.StringFixed(2),
			remaining.StringFixed(2),
			usage,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV report")
	}
}

// monthPrefix reduces a date query parameter to its "YYYY-MM" month.
func monthPrefix(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
