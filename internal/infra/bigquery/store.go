// Package bigquery is the BigQuery backend of the Entity Store.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-advisor/internal/store"
	"google.golang.org/api/iterator"
)

const (
	usersTable           = "users"
	documentUploadsTable = "document_uploads"
	questionnairesTable  = "questionnaires"
	analysesTable        = "statement_analyses"
	cardCatalogTable     = "card_catalog"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store on BigQuery. It holds one shared client.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// New creates a Store with its own BigQuery client.
func New(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery.New: creating client: %w", err)
	}
	return NewWithClient(client, projectID, datasetID), nil
}

// NewWithClient creates a Store around an existing client. Close closes it.
func NewWithClient(client *bigquery.Client, projectID, datasetID string) *Store {
	return &Store{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// table returns the fully qualified, backquoted table name for SQL.
func (s *Store) table(name string) string {
	return tableRef(s.projectID, s.datasetID, name)
}

func tableRef(projectID, datasetID, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, name)
}

func (s *Store) insert(ctx context.Context, table string, row any) error {
	inserter := s.client.Dataset(s.datasetID).Table(table).Inserter()
	return inserter.Put(ctx, row)
}

// exec runs a DML statement and waits for it.
func (s *Store) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// queryOne reads the first row into dst and reports whether there was one.
func (s *Store) queryOne(ctx context.Context, sql string, params []bigquery.QueryParameter, dst any) (bool, error) {
	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("reading query: %w", err)
	}
	err = it.Next(dst)
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading row: %w", err)
	}
	return true, nil
}

// queryCards reads every catalog row of a query.
func (s *Store) queryCards(ctx context.Context, sql string, params []bigquery.QueryParameter) ([]CardCatalogRow, error) {
	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	var rows []CardCatalogRow
	for {
		var row CardCatalogRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
