// Package postgres is the PostgreSQL backend of the Entity Store, using the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/store"
)

//go:embed schema.sql
var schemaSQL string

var _ store.Store = (*Store)(nil)

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to databaseURL, checks the connection and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres.Open: DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres.Open: open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres.Open: ping db: %w", err)
	}

	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema applies the embedded schema. It is safe to run repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("CreateUser: nil user")
	}
	const q = `
		INSERT INTO users (customer_id, created_at)
		VALUES ($1, $2)
	`
	if _, err := s.db.ExecContext(ctx, q, user.CustomerID, user.CreatedAt); err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// GetUser returns nil if the user does not exist.
func (s *Store) GetUser(ctx context.Context, customerID string) (*domain.User, error) {
	const q = `
		SELECT customer_id, created_at
		FROM users WHERE customer_id = $1
	`
	var u domain.User
	err := s.db.QueryRowContext(ctx, q, customerID).Scan(&u.CustomerID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	return &u, nil
}

// CreateDocumentUpload inserts one upload record.
func (s *Store) CreateDocumentUpload(ctx context.Context, doc *domain.DocumentUpload) error {
	if doc == nil {
		return errors.New("CreateDocumentUpload: nil document")
	}
	paths := doc.FilePaths
	if paths == nil {
		paths = []string{}
	}
	pathsJSON, err := jsonArg(paths)
	if err != nil {
		return fmt.Errorf("CreateDocumentUpload: encoding file_paths: %w", err)
	}
	respJSON, err := jsonArg(doc.OracleResponse)
	if err != nil {
		return fmt.Errorf("CreateDocumentUpload: encoding oracle_response: %w", err)
	}

	const q = `
		INSERT INTO document_uploads
			(document_id, customer_id, card_bank, card_name, file_paths, uploaded_at, oracle_response)
		VALUES
			($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.ExecContext(ctx, q,
		doc.ID, doc.CustomerID, doc.CardBank, doc.CardName, pathsJSON, doc.UploadedAt, respJSON); err != nil {
		return fmt.Errorf("CreateDocumentUpload: %w", err)
	}
	return nil
}

// GetDocumentUpload returns nil if the upload does not exist.
func (s *Store) GetDocumentUpload(ctx context.Context, id string) (*domain.DocumentUpload, error) {
	const q = `
		SELECT document_id, customer_id, card_bank, card_name, file_paths, uploaded_at, oracle_response
		FROM document_uploads
		WHERE document_id = $1
	`
	var (
		d     domain.DocumentUpload
		paths []byte
		resp  []byte
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.CustomerID, &d.CardBank, &d.CardName, &paths, &d.UploadedAt, &resp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetDocumentUpload: %w", err)
	}
	if err := scanJSON(paths, &d.FilePaths); err != nil {
		return nil, fmt.Errorf("GetDocumentUpload: decoding file_paths: %w", err)
	}
	if err := scanJSON(resp, &d.OracleResponse); err != nil {
		return nil, fmt.Errorf("GetDocumentUpload: decoding oracle_response: %w", err)
	}
	return &d, nil
}

// CreateQuestionnaire inserts a submission.
func (s *Store) CreateQuestionnaire(ctx context.Context, q *domain.Questionnaire) error {
	if q == nil {
		return errors.New("CreateQuestionnaire: nil questionnaire")
	}
	cats, err := jsonArg(q.SpendCategories)
	if err != nil {
		return fmt.Errorf("CreateQuestionnaire: encoding spend_categories: %w", err)
	}

	const stmt = `
		INSERT INTO questionnaires
			(questionnaire_id, customer_id, spend_categories, income_range, has_credit_card, credit_limit, submitted_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.ExecContext(ctx, stmt,
		q.ID, q.CustomerID, cats, q.IncomeRange, nullBool(q.HasCreditCard), nullFloat(q.CreditLimit), q.SubmittedAt); err != nil {
		return fmt.Errorf("CreateQuestionnaire: %w", err)
	}
	return nil
}

// LatestQuestionnaire returns the newest submission, or nil.
func (s *Store) LatestQuestionnaire(ctx context.Context, customerID string) (*domain.Questionnaire, error) {
	const stmt = `
		SELECT questionnaire_id, customer_id, spend_categories, income_range, has_credit_card, credit_limit, submitted_at
		FROM questionnaires
		WHERE customer_id = $1
		ORDER BY submitted_at DESC
		LIMIT 1
	`
	var (
		q      domain.Questionnaire
		cats   []byte
		hasCC  sql.NullBool
		credit sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, stmt, customerID).Scan(
		&q.ID, &q.CustomerID, &cats, &q.IncomeRange, &hasCC, &credit, &q.SubmittedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LatestQuestionnaire: %w", err)
	}
	if err := scanJSON(cats, &q.SpendCategories); err != nil {
		return nil, fmt.Errorf("LatestQuestionnaire: decoding spend_categories: %w", err)
	}
	if hasCC.Valid {
		q.HasCreditCard = &hasCC.Bool
	}
	if credit.Valid {
		q.CreditLimit = &credit.Float64
	}
	return &q, nil
}

// jsonArg encodes v for a json or jsonb parameter. Nil values become NULL.
func jsonArg(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

// scanJSON decodes a scanned json column, leaving dst untouched for NULL.
func scanJSON(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
