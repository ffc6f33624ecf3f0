// Package bigquery implements store.Store on a BigQuery dataset. Creates go
// through the streaming inserter; updates and deletes are DML statements.
// All queries are scoped by user_id.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finhealth/internal/store"
)

var _ store.Store = (*Store)(nil)

const (
	transactionsTable = "transactions"
	budgetsTable      = "budgets"
	goalsTable        = "goals"
	billsTable        = "bills"
)

// Store holds one BigQuery client for the lifetime of the process.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
}

// New creates a Store against the given project and dataset. It assumes
// Application Default Credentials are configured.
func New(ctx context.Context, projectID, datasetID string) (*Store, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("bigquery.New: project and dataset are required")
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery.New: creating client: %w", err)
	}

	return &Store{client: client, project: projectID, dataset: datasetID}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// table renders a backtick-quoted fully qualified table name for SQL text.
func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, name)
}

// runDML executes a DML statement and waits for its job to finish.
func runDML(ctx context.Context, q *bigquery.Query, op string) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running statement: %w", op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}
