package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/store"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx := &domain.Transaction{
		ID:       "t1",
		UserID:   "alice",
		Title:    "Groceries",
		Amount:   decimal.RequireFromString("42.50"),
		Category: "Food",
		Type:     domain.TypeExpense,
		Date:     date("2025-06-01"),
	}

	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	got, err := s.GetTransaction(ctx, "alice", "t1")
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.Title != "Groceries" || !got.Amount.Equal(tx.Amount) {
		t.Errorf("GetTransaction() = %+v", got)
	}

	got.Title = "Updated"
	got.Amount = decimal.RequireFromString("50")
	if err := s.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}

	updated, err := s.GetTransaction(ctx, "alice", "t1")
	if err != nil {
		t.Fatalf("GetTransaction() after update error = %v", err)
	}
	if updated.Title != "Updated" {
		t.Errorf("update not persisted: %+v", updated)
	}

	if err := s.DeleteTransaction(ctx, "alice", "t1"); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if _, err := s.GetTransaction(ctx, "alice", "t1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetTransaction() after delete error = %v, want ErrNotFound", err)
	}
}

func TestCreateTransaction_RequiresID(t *testing.T) {
	s := New()
	if err := s.CreateTransaction(context.Background(), &domain.Transaction{UserID: "alice"}); err == nil {
		t.Fatal("CreateTransaction() expected error for missing ID")
	}
}

func TestUserScoping(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx := &domain.Transaction{
		ID:     "t1",
		UserID: "alice",
		Amount: decimal.RequireFromString("10"),
		Type:   domain.TypeExpense,
		Date:   date("2025-06-01"),
	}
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	// Another user must neither see nor touch the record.
	if _, err := s.GetTransaction(ctx, "bob", "t1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetTransaction() cross-user error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteTransaction(ctx, "bob", "t1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteTransaction() cross-user error = %v, want ErrNotFound", err)
	}
	stolen := *tx
	stolen.UserID = "bob"
	if err := s.UpdateTransaction(ctx, &stolen); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateTransaction() cross-user error = %v, want ErrNotFound", err)
	}

	listed, err := s.ListTransactions(ctx, "bob")
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("ListTransactions() for other user = %d records, want 0", len(listed))
	}
}

func TestListTransactions_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()

	days := []string{"2025-06-03", "2025-06-10", "2025-06-01"}
	for i, day := range days {
		tx := &domain.Transaction{
			ID:        "t" + day,
			UserID:    "alice",
			Amount:    decimal.RequireFromString("10"),
			Type:      domain.TypeExpense,
			Date:      date(day),
			CreatedAt: time.Date(2025, 6, 15, 12, i, 0, 0, time.UTC),
		}
		if err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}

	listed, err := s.ListTransactions(ctx, "alice")
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}

	want := []string{"2025-06-10", "2025-06-03", "2025-06-01"}
	if len(listed) != len(want) {
		t.Fatalf("ListTransactions() = %d records, want %d", len(listed), len(want))
	}
	for i, w := range want {
		if listed[i].Date != date(w) {
			t.Errorf("ListTransactions()[%d].Date = %v, want %v", i, listed[i].Date, w)
		}
	}
}

func TestListBudgets_MonthFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	months := map[string]string{"b1": "2025-05", "b2": "2025-06", "b3": "2025-06"}
	for id, month := range months {
		b := &domain.Budget{
			ID:       id,
			UserID:   "alice",
			Category: "Food",
			Amount:   decimal.RequireFromString("100"),
			Month:    month,
		}
		if err := s.CreateBudget(ctx, b); err != nil {
			t.Fatalf("CreateBudget() error = %v", err)
		}
	}

	all, err := s.ListBudgets(ctx, "alice", "")
	if err != nil {
		t.Fatalf("ListBudgets() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListBudgets(all) = %d records, want 3", len(all))
	}

	june, err := s.ListBudgets(ctx, "alice", "2025-06")
	if err != nil {
		t.Fatalf("ListBudgets() error = %v", err)
	}
	if len(june) != 2 {
		t.Errorf("ListBudgets(2025-06) = %d records, want 2", len(june))
	}
	for _, b := range june {
		if b.Month != "2025-06" {
			t.Errorf("ListBudgets(2025-06) returned month %q", b.Month)
		}
	}
}

func TestGoalAndBillRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := &domain.Goal{
		ID:            "g1",
		UserID:        "alice",
		Title:         "Emergency fund",
		TargetAmount:  decimal.RequireFromString("5000"),
		CurrentAmount: decimal.RequireFromString("1200"),
	}
	if err := s.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	g.CurrentAmount = decimal.RequireFromString("1500")
	if err := s.UpdateGoal(ctx, g); err != nil {
		t.Fatalf("UpdateGoal() error = %v", err)
	}
	gotGoal, err := s.GetGoal(ctx, "alice", "g1")
	if err != nil {
		t.Fatalf("GetGoal() error = %v", err)
	}
	if !gotGoal.CurrentAmount.Equal(decimal.RequireFromString("1500")) {
		t.Errorf("GetGoal().CurrentAmount = %s", gotGoal.CurrentAmount)
	}

	b := &domain.Bill{
		ID:      "bill1",
		UserID:  "alice",
		Name:    "Rent",
		Amount:  decimal.RequireFromString("900"),
		DueDate: date("2025-07-01"),
	}
	if err := s.CreateBill(ctx, b); err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}
	bills, err := s.ListBills(ctx, "alice")
	if err != nil {
		t.Fatalf("ListBills() error = %v", err)
	}
	if len(bills) != 1 || bills[0].Name != "Rent" {
		t.Errorf("ListBills() = %+v", bills)
	}

	if err := s.DeleteBill(ctx, "alice", "bill1"); err != nil {
		t.Fatalf("DeleteBill() error = %v", err)
	}
	if err := s.DeleteGoal(ctx, "alice", "g1"); err != nil {
		t.Fatalf("DeleteGoal() error = %v", err)
	}
}
