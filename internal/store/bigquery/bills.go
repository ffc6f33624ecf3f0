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

func (s *Store) CreateBill(ctx context.Context, b *domain.Bill) error {
	if b.ID == "" {
		return fmt.Errorf("CreateBill: bill ID is required")
	}

	inserter := s.client.Dataset(s.dataset).Table(billsTable).Inserter()
	if err := inserter.Put(ctx, billToRow(b)); err != nil {
		return fmt.Errorf("CreateBill: inserting row: %w", err)
	}
	return nil
}

func (s *Store) GetBill(ctx context.Context, userID, id string) (*domain.Bill, error) {
	query := fmt.Sprintf(`
		SELECT bill_id, user_id, name, amount, category, due_date, created_ts
		FROM %s
		WHERE user_id = @user_id AND bill_id = @bill_id
		LIMIT 1
	`, s.table(billsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "bill_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBill: executing query: %w", err)
	}

	var row BillRow
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("GetBill: reading row: %w", err)
	}

	return rowToBill(&row)
}

func (s *Store) ListBills(ctx context.Context, userID string) ([]domain.Bill, error) {
	query := fmt.Sprintf(`
		SELECT bill_id, user_id, name, amount, category, due_date, created_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY due_date ASC
	`, s.table(billsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBills: executing query: %w", err)
	}

	var result []domain.Bill
	for {
		var row BillRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBills: reading row: %w", err)
		}
		b, err := rowToBill(&row)
		if err != nil {
			return nil, fmt.Errorf("ListBills: %w", err)
		}
		result = append(result, *b)
	}

	return result, nil
}

func (s *Store) UpdateBill(ctx context.Context, b *domain.Bill) error {
	if _, err := s.GetBill(ctx, b.UserID, b.ID); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET name = @name,
		    amount = @amount,
		    category = @category,
		    due_date = @due_date
		WHERE user_id = @user_id AND bill_id = @bill_id
	`, s.table(billsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "name", Value: b.Name},
		{Name: "amount", Value: toNumeric(b.Amount)},
		{Name: "category", Value: b.Category},
		{Name: "due_date", Value: b.DueDate},
		{Name: "user_id", Value: b.UserID},
		{Name: "bill_id", Value: b.ID},
	}

	return runDML(ctx, q, "UpdateBill")
}

func (s *Store) DeleteBill(ctx context.Context, userID, id string) error {
	if _, err := s.GetBill(ctx, userID, id); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND bill_id = @bill_id
	`, s.table(billsTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "bill_id", Value: id},
	}

	return runDML(ctx, q, "DeleteBill")
}
