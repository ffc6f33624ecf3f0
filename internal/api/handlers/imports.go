package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
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

// maxImportUpload bounds the multipart form held in memory.
const maxImportUpload = 10 << 20

// maxImportErrors caps the per-row error list in the response.
const maxImportErrors = 100

// ImportsHandler bulk-loads transactions from uploaded bank exports.
type ImportsHandler struct {
	store store.TransactionStore
	log   zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(s store.TransactionStore, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{store: s, log: log}
}

// rowError reports one rejected spreadsheet row. Row numbers are 1-based
// and include the header, so the first data row is row 2.
type rowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Transactions handles POST /api/imports/transactions. The request is a
// multipart form with a "file" part (CSV) and an optional "columnMapping"
// part, a JSON object overriding the auto-detected column names. Rows that
// cannot be parsed are reported, not fatal; rows already imported (matched
// by external ID) are skipped.
func (h *ImportsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	if err := r.ParseMultipartForm(maxImportUpload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		middleware.WriteError(w, http.StatusBadRequest, "Unsupported file format. Please upload a CSV file.")
		return
	}

	mapping := map[string]string{}
	if raw := r.FormValue("columnMapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "columnMapping must be a JSON object")
			return
		}
	}

	rows, err := readCSVRows(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to parse CSV file")
		return
	}
	if len(rows) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No data found in file")
		return
	}

	// Explicit mapping entries override the auto-detected ones.
	detected := detectColumns(rows[0])
	for field, column := range mapping {
		detected[field] = column
	}

	// One listing up front so duplicate detection stays O(rows).
	existing, err := h.store.ListTransactions(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions for import dedupe")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to import transactions")
		return
	}
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		if existing[i].ExternalID != "" {
			seen[existing[i].ExternalID] = true
		}
	}

	imported := 0
	skipped := 0
	var errs []rowError

	for idx, row := range rows {
		rowNum := idx + 2

		t, err := rowToImport(row, detected)
		if err != nil {
			if len(errs) < maxImportErrors {
				errs = append(errs, rowError{Row: rowNum, Message: err.Error()})
			}
			continue
		}

		externalID := fmt.Sprintf("%s_%s_%s_%s", userID, t.Date, t.Title, t.Amount)
		if seen[externalID] {
			skipped++
			continue
		}
		seen[externalID] = true

		t.ID = uuid.NewString()
		t.UserID = userID
		t.ExternalID = externalID
		t.Source = "csv"
		t.CreatedAt = time.Now().UTC()

		if err := h.store.CreateTransaction(r.Context(), t); err != nil {
			h.log.Error().Err(err).Int("row", rowNum).Msg("Failed to store imported transaction")
			if len(errs) < maxImportErrors {
				errs = append(errs, rowError{Row: rowNum, Message: "Failed to store transaction"})
			}
			continue
		}
		imported++
	}

	if errs == nil {
		errs = []rowError{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imported": imported,
		"skipped":  skipped,
		"errors":   errs,
	})
}

// readCSVRows reads a headered CSV into one map per data row.
func readCSVRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// detectColumns guesses which CSV column feeds which transaction field
// from common bank-export header names.
func detectColumns(row map[string]string) map[string]string {
	terms := []struct {
		field string
		names []string
	}{
		{"date", []string{"date", "transaction date", "posted date"}},
		{"description", []string{"description", "title", "memo", "details", "payee"}},
		{"amount", []string{"amount", "value", "total"}},
		{"category", []string{"category", "type"}},
		{"debit", []string{"debit", "withdrawal"}},
		{"credit", []string{"credit", "deposit"}},
	}

	detected := map[string]string{}
	for column := range row {
		lower := strings.ToLower(column)
		for _, t := range terms {
			if detected[t.field] != "" {
				continue
			}
			for _, name := range t.names {
				if strings.Contains(lower, name) {
					detected[t.field] = column
					break
				}
			}
		}
	}
	return detected
}

// importDateLayouts are the date formats accepted in uploads, tried in
// order. ISO first, then the slashed forms banks commonly export.
var importDateLayouts = []string{"2006-01-02", "2006/01/02", "02/01/2006", "2 Jan 2006"}

func parseImportDate(s string) (civil.Date, error) {
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid date format: %s", s)
}

// parseImportAmount strips currency symbols and thousands separators
// before parsing.
func parseImportAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("invalid amount: %s", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount: %s", s)
	}
	return d, nil
}

// rowToImport builds a transaction from one CSV row. Statements with
// separate debit/credit columns map to expense/income directly; a single
// signed amount column maps negatives to expenses.
func rowToImport(row, mapping map[string]string) (*domain.Transaction, error) {
	dateStr := strings.TrimSpace(row[mapping["date"]])
	if dateStr == "" {
		return nil, fmt.Errorf("missing date")
	}
	date, err := parseImportDate(dateStr)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(row[mapping["description"]])
	if description == "" {
		return nil, fmt.Errorf("missing description")
	}

	var amount decimal.Decimal
	var txType domain.TransactionType

	debitCol, creditCol := mapping["debit"], mapping["credit"]
	if debitCol != "" && creditCol != "" {
		debit := strings.TrimSpace(row[debitCol])
		credit := strings.TrimSpace(row[creditCol])
		switch {
		case debit != "":
			amount, err = parseImportAmount(debit)
			txType = domain.TypeExpense
		case credit != "":
			amount, err = parseImportAmount(credit)
			txType = domain.TypeIncome
		default:
			return nil, fmt.Errorf("missing amount in debit/credit columns")
		}
		if err != nil {
			return nil, err
		}
	} else {
		raw := strings.TrimSpace(row[mapping["amount"]])
		if raw == "" {
			return nil, fmt.Errorf("missing amount")
		}
		amount, err = parseImportAmount(raw)
		if err != nil {
			return nil, err
		}
		txType = domain.TypeIncome
		if amount.IsNegative() {
			txType = domain.TypeExpense
		}
	}
	amount = amount.Abs()

	category := strings.TrimSpace(row[mapping["category"]])
	if category == "" {
		category = domain.FallbackCategory
	}

	return &domain.Transaction{
		Title:    description,
		Amount:   amount,
		Category: category,
		Type:     txType,
		Date:     date,
	}, nil
}
