// Package memory implements store.Store in process memory. It backs demo
// mode when no BigQuery dataset is configured and serves as the test double
// for the API layer. Data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/store"
)

// Store is safe for concurrent use. Records are stored and returned by
// value, so callers cannot mutate its contents behind the lock.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]domain.Transaction
	budgets      map[string]domain.Budget
	goals        map[string]domain.Goal
	bills        map[string]domain.Bill
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		transactions: make(map[string]domain.Transaction),
		budgets:      make(map[string]domain.Budget),
		goals:        make(map[string]domain.Goal),
		bills:        make(map[string]domain.Bill),
	}
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	if t.ID == "" {
		return fmt.Errorf("CreateTransaction: transaction ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = *t
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID {
			result = append(result, t)
		}
	}

	// Newest first, matching the ordering the BigQuery backend produces.
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[j].Date.Before(result[i].Date)
		}
		return result[j].CreatedAt.Before(result[i].CreatedAt)
	})

	return result, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[t.ID]
	if !ok || existing.UserID != t.UserID {
		return store.ErrNotFound
	}
	s.transactions[t.ID] = *t
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	if b.ID == "" {
		return fmt.Errorf("CreateBudget: budget ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = *b
	return nil
}

func (s *Store) GetBudget(ctx context.Context, userID, id string) (*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID, month string) ([]domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Budget
	for _, b := range s.budgets {
		if b.UserID != userID {
			continue
		}
		if month != "" && b.Month != month {
			continue
		}
		result = append(result, b)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Month != result[j].Month {
			return result[i].Month > result[j].Month
		}
		return result[i].Category < result[j].Category
	})

	return result, nil
}

func (s *Store) UpdateBudget(ctx context.Context, b *domain.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.budgets[b.ID]
	if !ok || existing.UserID != b.UserID {
		return store.ErrNotFound
	}
	s.budgets[b.ID] = *b
	return nil
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) CreateGoal(ctx context.Context, g *domain.Goal) error {
	if g.ID == "" {
		return fmt.Errorf("CreateGoal: goal ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = *g
	return nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id string) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			result = append(result, g)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[j].CreatedAt.Before(result[i].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (s *Store) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.goals[g.ID]
	if !ok || existing.UserID != g.UserID {
		return store.ErrNotFound
	}
	s.goals[g.ID] = *g
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) CreateBill(ctx context.Context, b *domain.Bill) error {
	if b.ID == "" {
		return fmt.Errorf("CreateBill: bill ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[b.ID] = *b
	return nil
}

func (s *Store) GetBill(ctx context.Context, userID, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bills[id]
	if !ok || b.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *Store) ListBills(ctx context.Context, userID string) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Bill
	for _, b := range s.bills {
		if b.UserID == userID {
			result = append(result, b)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DueDate != result[j].DueDate {
			return result[i].DueDate.Before(result[j].DueDate)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (s *Store) UpdateBill(ctx context.Context, b *domain.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bills[b.ID]
	if !ok || existing.UserID != b.UserID {
		return store.ErrNotFound
	}
	s.bills[b.ID] = *b
	return nil
}

func (s *Store) DeleteBill(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bills[id]
	if !ok || b.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.bills, id)
	return nil
}
