package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/api/middleware"
	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/store/memory"
)

// serveUpload posts a multipart form with one file part and optional extra
// form values, routed through RequireUser like the JSON helper.
func serveUpload(t *testing.T, handler http.HandlerFunc, userID, filename, contents string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(contents)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/imports/transactions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", userID)

	rec := httptest.NewRecorder()
	middleware.RequireUser(handler).ServeHTTP(rec, req)
	return rec
}

type importResponse struct {
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []rowError `json:"errors"`
}

func TestImportsHandler_Transactions(t *testing.T) {
	s := memory.New()
	h := NewImportsHandler(s, zerolog.Nop())

	csvBody := "Date,Description,Amount,Category\n" +
		"2025-06-01,Salary,1000.00,\n" +
		"2025-06-03,Groceries,-42.50,Food\n"

	rec := serveUpload(t, h.Transactions, "alice", "statement.csv", csvBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp importResponse
	decodeBody(t, rec, &resp)
	if resp.Imported != 2 || resp.Skipped != 0 || len(resp.Errors) != 0 {
		t.Fatalf("response = %+v", resp)
	}

	stored, err := s.ListTransactions(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored = %d transactions, want 2", len(stored))
	}

	byTitle := map[string]*domain.Transaction{}
	for i := range stored {
		byTitle[stored[i].Title] = &stored[i]
	}

	salary := byTitle["Salary"]
	if salary == nil || salary.Type != domain.TypeIncome || !salary.Amount.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("salary row = %+v", salary)
	}
	if salary != nil && salary.Category != domain.FallbackCategory {
		t.Errorf("salary category = %q, want %q", salary.Category, domain.FallbackCategory)
	}

	groceries := byTitle["Groceries"]
	if groceries == nil || groceries.Type != domain.TypeExpense || !groceries.Amount.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("groceries row = %+v", groceries)
	}
	if groceries != nil {
		if groceries.Source != "csv" || groceries.ExternalID == "" {
			t.Errorf("groceries provenance = %q %q", groceries.Source, groceries.ExternalID)
		}
	}

	// Re-uploading the same statement imports nothing.
	rec = serveUpload(t, h.Transactions, "alice", "statement.csv", csvBody, nil)
	decodeBody(t, rec, &resp)
	if resp.Imported != 0 || resp.Skipped != 2 {
		t.Errorf("re-upload response = %+v", resp)
	}
}

func TestImportsHandler_DebitCreditColumns(t *testing.T) {
	s := memory.New()
	h := NewImportsHandler(s, zerolog.Nop())

	csvBody := "Date,Payee,Debit,Credit\n" +
		"2025-06-01,Landlord,600.00,\n" +
		"2025-06-02,Employer,,1000.00\n"

	rec := serveUpload(t, h.Transactions, "alice", "bank.csv", csvBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	stored, err := s.ListTransactions(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	types := map[string]domain.TransactionType{}
	for i := range stored {
		types[stored[i].Title] = stored[i].Type
	}
	if types["Landlord"] != domain.TypeExpense {
		t.Errorf("debit row type = %q, want expense", types["Landlord"])
	}
	if types["Employer"] != domain.TypeIncome {
		t.Errorf("credit row type = %q, want income", types["Employer"])
	}
}

func TestImportsHandler_ColumnMapping(t *testing.T) {
	s := memory.New()
	h := NewImportsHandler(s, zerolog.Nop())

	csvBody := "When,What,How Much\n" +
		"2025-06-01,Coffee,-3.50\n"

	rec := serveUpload(t, h.Transactions, "alice", "odd.csv", csvBody, map[string]string{
		"columnMapping": `{"date":"When","description":"What","amount":"How Much"}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp importResponse
	decodeBody(t, rec, &resp)
	if resp.Imported != 1 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestImportsHandler_RowErrors(t *testing.T) {
	h := NewImportsHandler(memory.New(), zerolog.Nop())

	csvBody := "Date,Description,Amount\n" +
		",No date,10.00\n" +
		"2025-06-01,,10.00\n" +
		"2025-06-01,Bad amount,not-a-number\n" +
		"2025-06-02,Fine,12.00\n"

	rec := serveUpload(t, h.Transactions, "alice", "mixed.csv", csvBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp importResponse
	decodeBody(t, rec, &resp)
	if resp.Imported != 1 {
		t.Errorf("imported = %d, want 1", resp.Imported)
	}
	if len(resp.Errors) != 3 {
		t.Fatalf("errors = %+v, want 3", resp.Errors)
	}
	// Rows are 1-based with the header as row 1.
	if resp.Errors[0].Row != 2 || resp.Errors[1].Row != 3 || resp.Errors[2].Row != 4 {
		t.Errorf("error rows = %+v", resp.Errors)
	}
}

func TestImportsHandler_RejectsNonCSV(t *testing.T) {
	h := NewImportsHandler(memory.New(), zerolog.Nop())

	rec := serveUpload(t, h.Transactions, "alice", "statement.xlsx", "not a csv", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
