package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/domain"
)

// numericScale is the fractional digit count of BigQuery NUMERIC columns.
const numericScale = 9

// TransactionRow is the transactions table schema.
type TransactionRow struct {
	TransactionID string              `bigquery:"transaction_id"` // REQUIRED
	UserID        string              `bigquery:"user_id"`        // REQUIRED
	Title         string              `bigquery:"title"`          // REQUIRED
	Amount        *big.Rat            `bigquery:"amount"`         // REQUIRED NUMERIC
	Category      string              `bigquery:"category"`       // REQUIRED
	Type          string              `bigquery:"type"`           // REQUIRED
	Date          civil.Date          `bigquery:"date"`           // REQUIRED
	ExternalID    bigquery.NullString `bigquery:"external_id"`    // NULLABLE
	Source        bigquery.NullString `bigquery:"source"`         // NULLABLE
	CreatedTS     time.Time           `bigquery:"created_ts"`     // REQUIRED
}

// BudgetRow is the budgets table schema.
type BudgetRow struct {
	BudgetID  string     `bigquery:"budget_id"`  // REQUIRED
	UserID    string     `bigquery:"user_id"`    // REQUIRED
	Category  string     `bigquery:"category"`   // REQUIRED
	Amount    *big.Rat   `bigquery:"amount"`     // REQUIRED NUMERIC
	Month     string     `bigquery:"month"`      // REQUIRED "YYYY-MM"
	CreatedTS time.Time  `bigquery:"created_ts"` // REQUIRED
}

// GoalRow is the goals table schema.
type GoalRow struct {
	GoalID        string            `bigquery:"goal_id"`        // REQUIRED
	UserID        string            `bigquery:"user_id"`        // REQUIRED
	Title         string            `bigquery:"title"`          // REQUIRED
	TargetAmount  *big.Rat          `bigquery:"target_amount"`  // REQUIRED NUMERIC
	CurrentAmount *big.Rat          `bigquery:"current_amount"` // REQUIRED NUMERIC
	Deadline      bigquery.NullDate `bigquery:"deadline"`       // NULLABLE
	CreatedTS     time.Time         `bigquery:"created_ts"`     // REQUIRED
}

// BillRow is the bills table schema.
type BillRow struct {
	BillID    string     `bigquery:"bill_id"`    // REQUIRED
	UserID    string     `bigquery:"user_id"`    // REQUIRED
	Name      string     `bigquery:"name"`       // REQUIRED
	Amount    *big.Rat   `bigquery:"amount"`     // REQUIRED NUMERIC
	Category  string     `bigquery:"category"`   // REQUIRED
	DueDate   civil.Date `bigquery:"due_date"`   // REQUIRED
	CreatedTS time.Time  `bigquery:"created_ts"` // REQUIRED
}

func toNumeric(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func fromNumeric(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Decimal{}, nil
	}
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fromNumeric: %w", err)
	}
	return d, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func transactionToRow(t *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Title:         t.Title,
		Amount:        toNumeric(t.Amount),
		Category:      t.Category,
		Type:          string(t.Type),
		Date:          t.Date,
		ExternalID:    nullString(t.ExternalID),
		Source:        nullString(t.Source),
		CreatedTS:     t.CreatedAt,
	}
}

func rowToTransaction(r *TransactionRow) (*domain.Transaction, error) {
	amount, err := fromNumeric(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: amount: %w", r.TransactionID, err)
	}
	return &domain.Transaction{
		ID:         r.TransactionID,
		UserID:     r.UserID,
		Title:      r.Title,
		Amount:     amount,
		Category:   r.Category,
		Type:       domain.TransactionType(r.Type),
		Date:       r.Date,
		ExternalID: r.ExternalID.StringVal,
		Source:     r.Source.StringVal,
		CreatedAt:  r.CreatedTS,
	}, nil
}

func budgetToRow(b *domain.Budget) *BudgetRow {
	return &BudgetRow{
		BudgetID:  b.ID,
		UserID:    b.UserID,
		Category:  b.Category,
		Amount:    toNumeric(b.Amount),
		Month:     b.Month,
		CreatedTS: b.CreatedAt,
	}
}

func rowToBudget(r *BudgetRow) (*domain.Budget, error) {
	amount, err := fromNumeric(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("budget %s: amount: %w", r.BudgetID, err)
	}
	return &domain.Budget{
		ID:        r.BudgetID,
		UserID:    r.UserID,
		Category:  r.Category,
		Amount:    amount,
		Month:     r.Month,
		CreatedAt: r.CreatedTS,
	}, nil
}

func goalToRow(g *domain.Goal) *GoalRow {
	row := &GoalRow{
		GoalID:        g.ID,
		UserID:        g.UserID,
		Title:         g.Title,
		TargetAmount:  toNumeric(g.TargetAmount),
		CurrentAmount: toNumeric(g.CurrentAmount),
		CreatedTS:     g.CreatedAt,
	}
	if g.Deadline != nil {
		row.Deadline = bigquery.NullDate{Date: *g.Deadline, Valid: true}
	}
	return row
}

func rowToGoal(r *GoalRow) (*domain.Goal, error) {
	target, err := fromNumeric(r.TargetAmount)
	if err != nil {
		return nil, fmt.Errorf("goal %s: target_amount: %w", r.GoalID, err)
	}
	current, err := fromNumeric(r.CurrentAmount)
	if err != nil {
		return nil, fmt.Errorf("goal %s: current_amount: %w", r.GoalID, err)
	}
	g := &domain.Goal{
		ID:            r.GoalID,
		UserID:        r.UserID,
		Title:         r.Title,
		TargetAmount:  target,
		CurrentAmount: current,
		CreatedAt:     r.CreatedTS,
	}
	if r.Deadline.Valid {
		d := r.Deadline.Date
		g.Deadline = &d
	}
	return g, nil
}

func billToRow(b *domain.Bill) *BillRow {
	return &BillRow{
		BillID:    b.ID,
		UserID:    b.UserID,
		Name:      b.Name,
		Amount:    toNumeric(b.Amount),
		Category:  b.Category,
		DueDate:   b.DueDate,
		CreatedTS: b.CreatedAt,
	}
}

func rowToBill(r *BillRow) (*domain.Bill, error) {
	amount, err := fromNumeric(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("bill %s: amount: %w", r.BillID, err)
	}
	return &domain.Bill{
		ID:        r.BillID,
		UserID:    r.UserID,
		Name:      r.Name,
		Amount:    amount,
		Category:  r.Category,
		DueDate:   r.DueDate,
		CreatedAt: r.CreatedTS,
	}, nil
}
