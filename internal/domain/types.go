// Package domain holds the entity types shared by the storage, scoring and
// API layers. Money amounts are decimal values and calendar fields are civil
// dates, so no time-of-day or timezone information leaks into comparisons.
package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Categories is the fixed category set shared by transactions, budgets and
// receipt extraction. The scoring engine accepts free-form category strings;
// this list only constrains what the UI and the vision extractor produce.
var Categories = []string{"Food", "Rent", "Bills", "Transport", "Entertainment", "Other"}

// FallbackCategory absorbs anything the extractor cannot classify.
const FallbackCategory = "Other"

// KnownCategory reports whether name is in the fixed category set.
func KnownCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Transaction is a single dated income or expense record.
type Transaction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	Type       TransactionType `json:"type"`
	Date       civil.Date      `json:"date"`
	ExternalID string          `json:"externalId,omitempty"`
	Source     string          `json:"source,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Budget caps spending for one category in one calendar month.
// Month is a "YYYY-MM" key; categories need not be unique across months.
type Budget struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Month     string          `json:"month"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Goal is a savings target. CurrentAmount is not constrained to stay below
// TargetAmount at storage time; progress is clamped when scored.
type Goal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Title         string          `json:"title"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      *civil.Date     `json:"deadline,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Bill is a recurring obligation identified by its due date. There is no
// paid flag: whether a bill is overdue is derived at evaluation time.
type Bill struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	DueDate   civil.Date      `json:"dueDate"`
	CreatedAt time.Time       `json:"createdAt"`
}
