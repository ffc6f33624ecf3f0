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

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	if t.ID == "" {
		return fmt.Errorf("CreateTransaction: transaction ID is required")
	}

	inserter := s.client.Dataset(s.dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, transactionToRow(t)); err != nil {
		return fmt.Errorf("CreateTransaction: inserting row: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT transaction_id, user_id, title, amount, category, type, date,
		       external_id, source, created_ts
		FROM %s
		WHERE user_id = @user_id AND transaction_id = @transaction_id
		LIMIT 1
	`, s.table(transactionsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: executing query: %w", err)
	}

	var row TransactionRow
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("GetTransaction: reading row: %w", err)
	}

	return rowToTransaction(&row)
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT transaction_id, user_id, title, amount, category, type, date,
		       external_id, source, created_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY date DESC, created_ts DESC
	`, s.table(transactionsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: executing query: %w", err)
	}

	var result []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: reading row: %w", err)
		}
		t, err := rowToTransaction(&row)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		result = append(result, *t)
	}

	return result, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	if _, err := s.GetTransaction(ctx, t.UserID, t.ID); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = @title,
		    amount = @amount,
		    category = @category,
		    type = @type,
		    date = @date,
		    external_id = @external_id,
		    source = @source
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, s.table(transactionsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "title", Value: t.Title},
		{Name: "amount", Value: toNumeric(t.Amount)},
		{Name: "category", Value: t.Category},
		{Name: "type", Value: string(t.Type)},
		{Name: "date", Value: t.Date},
		{Name: "external_id", Value: nullString(t.ExternalID)},
		{Name: "source", Value: nullString(t.Source)},
		{Name: "user_id", Value: t.UserID},
		{Name: "transaction_id", Value: t.ID},
	}

	return runDML(ctx, q, "UpdateTransaction")
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	if _, err := s.GetTransaction(ctx, userID, id); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, s.table(transactionsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	}

	return runDML(ctx, q, "DeleteTransaction")
}
