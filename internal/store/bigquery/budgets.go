package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/store"
)

func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	if b.ID == "" {
		return fmt.Errorf("CreateBudget: budget ID is required")
	}

	inserter := s.client.Dataset(s.dataset).Table(budgetsTable).Inserter()
	if err := inserter.Put(ctx, budgetToRow(b)); err != nil {
		return fmt.Errorf("CreateBudget: inserting row: %w", err)
	}
	return nil
}

func (s *Store) GetBudget(ctx context.Context, userID, id string) (*domain.Budget, error) {
	query := fmt.Sprintf(`
		SELECT budget_id, user_id, category, amount, month, created_ts
		FROM %s
		WHERE user_id = @user_id AND budget_id = @budget_id
		LIMIT 1
	`, s.table(budgetsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "budget_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBudget: executing query: %w", err)
	}

	var row BudgetRow
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("GetBudget: reading row: %w", err)
	}

	return rowToBudget(&row)
}

// ListBudgets returns the caller's budgets, optionally restricted to one
// "YYYY-MM" month.
func (s *Store) ListBudgets(ctx context.Context, userID, month string) ([]domain.Budget, error) {
	query := fmt.Sprintf(`
		SELECT budget_id, user_id, category, amount, month, created_ts
		FROM %s
		WHERE user_id = @user_id AND (@month = '' OR month = @month)
		ORDER BY month DESC, category ASC
	`, s.table(budgetsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "month", Value: month},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: executing query: %w", err)
	}

	var result []domain.Budget
	for {
		var row BudgetRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBudgets: reading row: %w", err)
		}
		b, err := rowToBudget(&row)
		if err != nil {
			return nil, fmt.Errorf("ListBudgets: %w", err)
		}
		result = append(result, *b)
	}

	return result, nil
}

func (s *Store) UpdateBudget(ctx context.Context, b *domain.Budget) error {
	if _, err := s.GetBudget(ctx, b.UserID, b.ID); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET category = @category,
		    amount = @amount,
		    month = @month
		WHERE user_id = @user_id AND budget_id = @budget_id
	`, s.table(budgetsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "category", Value: b.Category},
		{Name: "amount", Value: toNumeric(b.Amount)},
		{Name: "month", Value: b.Month},
		{Name: "user_id", Value: b.UserID},
		{Name: "budget_id", Value: b.ID},
	}

	return runDML(ctx, q, "UpdateBudget")
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	if _, err := s.GetBudget(ctx, userID, id); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND budget_id = @budget_id
	`, s.table(budgetsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "budget_id", Value: id},
	}

	return runDML(ctx, q, "DeleteBudget")
}
