// Package store defines the persistence boundary consumed by the API layer.
// The scoring engine never sees these interfaces: it receives fully
// materialized slices that the caller fetched through them.
package store

import (
	"context"
	"errors"

	"github.com/dvloznov/finhealth/internal/domain"
)

// ErrNotFound is returned when a record does not exist or belongs to a
// different user. Callers must not be able to distinguish the two cases.
var ErrNotFound = errors.New("store: record not found")

// Store bundles the four record collections for one backend.
type Store interface {
	TransactionStore
	BudgetStore
	GoalStore
	BillStore
}

// TransactionStore persists dated income and expense records.
// ListTransactions returns the caller's transactions newest-first.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
}

// BudgetStore persists per-category monthly spending caps.
// ListBudgets filters by "YYYY-MM" month when month is non-empty.
type BudgetStore interface {
	CreateBudget(ctx context.Context, b *domain.Budget) error
	GetBudget(ctx context.Context, userID, id string) (*domain.Budget, error)
	ListBudgets(ctx context.Context, userID, month string) ([]domain.Budget, error)
	UpdateBudget(ctx context.Context, b *domain.Budget) error
	DeleteBudget(ctx context.Context, userID, id string) error
}

// GoalStore persists savings goals.
type GoalStore interface {
	CreateGoal(ctx context.Context, g *domain.Goal) error
	GetGoal(ctx context.Context, userID, id string) (*domain.Goal, error)
	ListGoals(ctx context.Context, userID string) ([]domain.Goal, error)
	UpdateGoal(ctx context.Context, g *domain.Goal) error
	DeleteGoal(ctx context.Context, userID, id string) error
}

// BillStore persists recurring obligations.
type BillStore interface {
	CreateBill(ctx context.Context, b *domain.Bill) error
	GetBill(ctx context.Context, userID, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, userID string) ([]domain.Bill, error)
	UpdateBill(ctx context.Context, b *domain.Bill) error
	DeleteBill(ctx context.Context, userID, id string) error
}
