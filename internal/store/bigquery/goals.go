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

func (s *Store) CreateGoal(ctx context.Context, g *domain.Goal) error {
	if g.ID == "" {
		return fmt.Errorf("CreateGoal: goal ID is required")
	}

	inserter := s.client.Dataset(s.dataset).Table(goalsTable).Inserter()
	if err := inserter.Put(ctx, goalToRow(g)); err != nil {
		return fmt.Errorf("CreateGoal: inserting row: %w", err)
	}
	return nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id string) (*domain.Goal, error) {
	query := fmt.Sprintf(`
		SELECT goal_id, user_id, title, target_amount, current_amount, deadline, created_ts
		FROM %s
		WHERE user_id = @user_id AND goal_id = @goal_id
		LIMIT 1
	`, s.table(goalsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "goal_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetGoal: executing query: %w", err)
	}

	var row GoalRow
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("GetGoal: reading row: %w", err)
	}

	return rowToGoal(&row)
}

func (s *Store) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	query := fmt.Sprintf(`
		SELECT goal_id, user_id, title, target_amount, current_amount, deadline, created_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY created_ts DESC
	`, s.table(goalsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListGoals: executing query: %w", err)
	}

	var result []domain.Goal
	for {
		var row GoalRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListGoals: reading row: %w", err)
		}
		g, err := rowToGoal(&row)
		if err != nil {
			return nil, fmt.Errorf("ListGoals: %w", err)
		}
		result = append(result, *g)
	}

	return result, nil
}

func (s *Store) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	if _, err := s.GetGoal(ctx, g.UserID, g.ID); err != nil {
		return err
	}

	deadline := bigquery.NullDate{}
	if g.Deadline != nil {
		deadline = bigquery.NullDate{Date: *g.Deadline, Valid: true}
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = @title,
		    target_amount = @target_amount,
		    current_amount = @current_amount,
		    deadline = @deadline
		WHERE user_id = @user_id AND goal_id = @goal_id
	`, s.table(goalsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "title", Value: g.Title},
		{Name: "target_amount", Value: toNumeric(g.TargetAmount)},
		{Name: "current_amount", Value: toNumeric(g.CurrentAmount)},
		{Name: "deadline", Value: deadline},
		{Name: "user_id", Value: g.UserID},
		{Name: "goal_id", Value: g.ID},
	}

	return runDML(ctx, q, "UpdateGoal")
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id string) error {
	if _, err := s.GetGoal(ctx, userID, id); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND goal_id = @goal_id
	`, s.table(goalsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "goal_id", Value: id},
	}

	return runDML(ctx, q, "DeleteGoal")
}
