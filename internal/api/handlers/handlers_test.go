package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/api/middleware"
	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/store/memory"
	"github.com/dvloznov/finhealth/internal/vision"
)

// serve routes the request through RequireUser so handlers see the same
// context they get in production.
func serve(t *testing.T, handler http.HandlerFunc, method, target, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	rec := httptest.NewRecorder()
	middleware.RequireUser(handler).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestTransactionsHandler_CreateAndGet(t *testing.T) {
	s := memory.New()
	h := NewTransactionsHandler(s, nil, nil, zerolog.Nop())

	rec := serve(t, h.Create, http.MethodPost, "/api/transactions", "alice", map[string]interface{}{
		"title":    "Groceries",
		"amount":   "42.50",
		"category": "Food",
		"type":     "expense",
		"date":     "2025-06-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created domain.Transaction
	decodeBody(t, rec, &created)
	if created.ID == "" || created.Title != "Groceries" || created.Type != domain.TypeExpense {
		t.Errorf("Create returned %+v", created)
	}
	if !created.Amount.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("Create amount = %s", created.Amount)
	}

	rec = serve(t, func(w http.ResponseWriter, r *http.Request) {
		h.Get(w, r, created.ID)
	}, http.MethodGet, "/api/transactions/"+created.ID, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Get status = %d", rec.Code)
	}

	// Another user must not see it.
	rec = serve(t, func(w http.ResponseWriter, r *http.Request) {
		h.Get(w, r, created.ID)
	}, http.MethodGet, "/api/transactions/"+created.ID, "bob", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user Get status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestTransactionsHandler_CreateValidation(t *testing.T) {
	h := NewTransactionsHandler(memory.New(), nil, nil, zerolog.Nop())

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing title", map[string]interface{}{"amount": "10", "type": "expense", "date": "2025-06-01"}},
		{"negative amount", map[string]interface{}{"title": "x", "amount": "-1", "type": "expense", "date": "2025-06-01"}},
		{"bad type", map[string]interface{}{"title": "x", "amount": "10", "type": "transfer", "date": "2025-06-01"}},
		{"bad date", map[string]interface{}{"title": "x", "amount": "10", "type": "expense", "date": "01/06/2025"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, h.Create, http.MethodPost, "/api/transactions", "alice", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestTransactionsHandler_PartialUpdate(t *testing.T) {
	s := memory.New()
	h := NewTransactionsHandler(s, nil, nil, zerolog.Nop())

	tx := &domain.Transaction{
		ID:       "t1",
		UserID:   "alice",
		Title:    "Groceries",
		Amount:   decimal.RequireFromString("42.50"),
		Category: "Food",
		Type:     domain.TypeExpense,
		Date:     civil.Date{Year: 2025, Month: 6, Day: 1},
	}
	if err := s.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
		h.Update(w, r, "t1")
	}, http.MethodPatch, "/api/transactions/t1", "alice", map[string]interface{}{
		"amount": "50",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var updated domain.Transaction
	decodeBody(t, rec, &updated)
	if !updated.Amount.Equal(decimal.RequireFromString("50")) {
		t.Errorf("Amount = %s, want 50", updated.Amount)
	}
	if updated.Title != "Groceries" || updated.Category != "Food" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
}

type stubExtractor struct {
	draft *vision.Draft
	image []byte
}

func (s *stubExtractor) ExtractTransaction(ctx context.Context, image []byte, mimeType string) (*vision.Draft, error) {
	s.image = image
	return s.draft, nil
}

type stubArchiver struct {
	uri string
}

func (s *stubArchiver) ArchiveReceipt(ctx context.Context, image []byte, mimeType string) (string, error) {
	return s.uri, nil
}

func TestTransactionsHandler_Scan(t *testing.T) {
	draft := &vision.Draft{
		Title:    "Tesco",
		Amount:   decimal.RequireFromString("23.99"),
		Category: "Food",
		Type:     domain.TypeExpense,
		Date:     civil.Date{Year: 2025, Month: 6, Day: 14},
	}
	extractor := &stubExtractor{draft: draft}
	archiver := &stubArchiver{uri: "gs://receipts/receipts/2025/06/14/abc"}
	h := NewTransactionsHandler(memory.New(), extractor, archiver, zerolog.Nop())

	image := []byte("fake-jpeg-bytes")
	rec := serve(t, h.Scan, http.MethodPost, "/api/transactions/scan", "alice", map[string]interface{}{
		"image":    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
		"mimeType": "image/jpeg",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Scan status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(extractor.image, image) {
		t.Error("extractor did not receive decoded image bytes")
	}

	var resp struct {
		Draft      vision.Draft `json:"draft"`
		ReceiptURI string       `json:"receiptUri"`
	}
	decodeBody(t, rec, &resp)
	if resp.Draft.Title != "Tesco" || resp.ReceiptURI != archiver.uri {
		t.Errorf("Scan response = %+v", resp)
	}
}

func TestTransactionsHandler_ScanUnconfigured(t *testing.T) {
	h := NewTransactionsHandler(memory.New(), nil, nil, zerolog.Nop())

	rec := serve(t, h.Scan, http.MethodPost, "/api/transactions/scan", "alice", map[string]interface{}{
		"image": base64.StdEncoding.EncodeToString([]byte("x")),
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthScoreHandler(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	h := NewHealthScoreHandler(s, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }

	seed := []error{
		s.CreateTransaction(ctx, &domain.Transaction{
			ID: "t1", UserID: "alice", Title: "Salary",
			Amount: decimal.RequireFromString("1000"), Category: "Other",
			Type: domain.TypeIncome, Date: civil.Date{Year: 2025, Month: 6, Day: 1},
		}),
		s.CreateTransaction(ctx, &domain.Transaction{
			ID: "t2", UserID: "alice", Title: "Groceries",
			Amount: decimal.RequireFromString("250"), Category: "Food",
			Type: domain.TypeExpense, Date: civil.Date{Year: 2025, Month: 6, Day: 5},
		}),
		s.CreateTransaction(ctx, &domain.Transaction{
			ID: "t3", UserID: "alice", Title: "Misc",
			Amount: decimal.RequireFromString("450"), Category: "Other",
			Type: domain.TypeExpense, Date: civil.Date{Year: 2025, Month: 6, Day: 7},
		}),
		s.CreateBudget(ctx, &domain.Budget{
			ID: "b1", UserID: "alice", Category: "Food",
			Amount: decimal.RequireFromString("500"), Month: "2025-06",
		}),
		s.CreateGoal(ctx, &domain.Goal{
			ID: "g1", UserID: "alice", Title: "Emergency fund",
			TargetAmount:  decimal.RequireFromString("1000"),
			CurrentAmount: decimal.RequireFromString("250"),
		}),
		s.CreateBill(ctx, &domain.Bill{
			ID: "bill1", UserID: "alice", Name: "Rent",
			Amount: decimal.RequireFromString("600"), Category: "Rent",
			DueDate: civil.Date{Year: 2025, Month: 6, Day: 10},
		}),
	}
	for _, err := range seed {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := serve(t, h.Get, http.MethodGet, "/api/health-score", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TotalScore      int    `json:"totalScore"`
		Rating          string `json:"rating"`
		SavingsRatio    struct{ Score int }
		BudgetAdherence struct{ Score int }
		GoalProgress    struct{ Score int }
		BillManagement  struct{ Score int }
	}
	decodeBody(t, rec, &resp)

	// Savings rate 30% scores 22, half-spent budget 13, quarter-done goal 6,
	// one overdue bill 7.
	if resp.SavingsRatio.Score != 22 {
		t.Errorf("savingsRatio.score = %d, want 22", resp.SavingsRatio.Score)
	}
	if resp.BudgetAdherence.Score != 13 {
		t.Errorf("budgetAdherence.score = %d, want 13", resp.BudgetAdherence.Score)
	}
	if resp.GoalProgress.Score != 6 {
		t.Errorf("goalProgress.score = %d, want 6", resp.GoalProgress.Score)
	}
	if resp.BillManagement.Score != 7 {
		t.Errorf("billManagement.score = %d, want 7", resp.BillManagement.Score)
	}
	if resp.TotalScore != 48 || resp.Rating != "Fair" {
		t.Errorf("total = %d %q, want 48 Fair", resp.TotalScore, resp.Rating)
	}
}

func TestHealthScoreHandler_EmptyUser(t *testing.T) {
	h := NewHealthScoreHandler(memory.New(), zerolog.Nop())
	h.now = func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }

	rec := serve(t, h.Get, http.MethodGet, "/api/health-score", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		TotalScore int    `json:"totalScore"`
		Rating     string `json:"rating"`
	}
	decodeBody(t, rec, &resp)
	if resp.TotalScore != 36 || resp.Rating != "Needs Improvement" {
		t.Errorf("empty user score = %d %q, want 36 Needs Improvement", resp.TotalScore, resp.Rating)
	}
}

func TestHealthScoreHandler_MalformedRecord(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.CreateTransaction(ctx, &domain.Transaction{
		ID: "t1", UserID: "alice", Title: "Broken",
		Amount: decimal.RequireFromString("10"), Type: "transfer",
		Date: civil.Date{Year: 2025, Month: 6, Day: 1},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := NewHealthScoreHandler(s, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }

	rec := serve(t, h.Get, http.MethodGet, "/api/health-score", "alice", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHealthScoreHandler_DateOverride(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	// Due 2025-06-10: overdue on the 15th, not on the 1st.
	if err := s.CreateBill(ctx, &domain.Bill{
		ID: "bill1", UserID: "alice", Name: "Rent",
		Amount: decimal.RequireFromString("600"), DueDate: civil.Date{Year: 2025, Month: 6, Day: 10},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := NewHealthScoreHandler(s, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }

	var resp struct {
		BillManagement struct{ Score int }
	}

	rec := serve(t, h.Get, http.MethodGet, "/api/health-score", "alice", nil)
	decodeBody(t, rec, &resp)
	if resp.BillManagement.Score != 7 {
		t.Errorf("default date bill score = %d, want 7", resp.BillManagement.Score)
	}

	rec = serve(t, h.Get, http.MethodGet, "/api/health-score?date=2025-06-01", "alice", nil)
	decodeBody(t, rec, &resp)
	if resp.BillManagement.Score != 10 {
		t.Errorf("overridden date bill score = %d, want 10", resp.BillManagement.Score)
	}

	rec = serve(t, h.Get, http.MethodGet, "/api/health-score?date=junk", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestReportsHandler_Transactions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.CreateTransaction(ctx, &domain.Transaction{
		ID: "t1", UserID: "alice", Title: "Groceries",
		Amount: decimal.RequireFromString("42.50"), Category: "Food",
		Type: domain.TypeExpense, Date: civil.Date{Year: 2025, Month: 6, Day: 1},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := NewReportsHandler(s, zerolog.Nop())
	rec := serve(t, h.Transactions, http.MethodGet, "/api/reports/transactions", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("CSV lines = %d, want 2:\n%s", len(lines), rec.Body.String())
	}
	if lines[0] != "id,title,amount,category,type,date" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "t1,Groceries,42.5,Food,expense,2025-06-01" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestReportsHandler_Budgets(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	seed := []error{
		s.CreateBudget(ctx, &domain.Budget{
			ID: "b1", UserID: "alice", Category: "Food",
			Amount: decimal.RequireFromString("500"), Month: "2025-06",
		}),
		s.CreateBudget(ctx, &domain.Budget{
			ID: "b2", UserID: "alice", Category: "Transport",
			Amount: decimal.RequireFromString("100"), Month: "2025-05",
		}),
		s.CreateTransaction(ctx, &domain.Transaction{
			ID: "t1", UserID: "alice", Title: "Groceries",
			Amount: decimal.RequireFromString("150"), Category: "Food",
			Type: domain.TypeExpense, Date: civil.Date{Year: 2025, Month: 6, Day: 5},
		}),
		s.CreateTransaction(ctx, &domain.Transaction{
			ID: "t2", UserID: "alice", Title: "More groceries",
			Amount: decimal.RequireFromString("100"), Category: "Food",
			Type: domain.TypeExpense, Date: civil.Date{Year: 2025, Month: 6, Day: 12},
		}),
		// Income in the same category must not count as spending.
		s.CreateTransaction(ctx, &domain.Transaction{
			ID: "t3", UserID: "alice", Title: "Refund",
			Amount: decimal.RequireFromString("40"), Category: "Food",
			Type: domain.TypeIncome, Date: civil.Date{Year: 2025, Month: 6, Day: 13},
		}),
	}
	for _, err := range seed {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	h := NewReportsHandler(s, zerolog.Nop())

	rec := serve(t, h.Budgets, http.MethodGet, "/api/reports/budgets", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("CSV lines = %d, want 3:\n%s", len(lines), rec.Body.String())
	}
	if lines[0] != "month,category,budget,spent,remaining,usage" {
		t.Errorf("header = %q", lines[0])
	}
	want := map[string]bool{
		"2025-06,Food,500.00,250.00,250.00,50.0%":   false,
		"2025-05,Transport,100.00,0.00,100.00,0.0%": false,
	}
	for _, line := range lines[1:] {
		if _, ok := want[line]; !ok {
			t.Errorf("unexpected row %q", line)
			continue
		}
		want[line] = true
	}
	for line, seen := range want {
		if !seen {
			t.Errorf("missing row %q", line)
		}
	}

	// Month filters keep only budgets inside the range.
	rec = serve(t, h.Budgets, http.MethodGet, "/api/reports/budgets?start_date=2025-06-01", "alice", nil)
	lines = strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "2025-06,Food") {
		t.Errorf("filtered report:\n%s", rec.Body.String())
	}
}
