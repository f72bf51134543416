package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/store"
)

// SaveStatementAnalysis checks the referenced user and upload, then inserts.
func (s *Store) SaveStatementAnalysis(ctx context.Context, a *domain.StatementAnalysis) error {
	if err := store.VerifyAnalysisRefs(ctx, s, s, a); err != nil {
		return fmt.Errorf("SaveStatementAnalysis: %w", err)
	}

	breakdown, err := json.Marshal(a.CategoryBreakdown)
	if err != nil {
		return fmt.Errorf("SaveStatementAnalysis: encoding category_breakdown: %w", err)
	}
	if a.CategoryBreakdown == nil {
		breakdown = []byte("{}")
	}
	top := a.TopCategories
	if top == nil {
		top = []string{}
	}

	args := []any{a.ID, a.CustomerID, a.DocumentID}
	for _, v := range []any{a.BasicFeatures, a.TransactionMetrics} {
		arg, err := jsonArg(v)
		if err != nil {
			return fmt.Errorf("SaveStatementAnalysis: %w", err)
		}
		args = append(args, arg)
	}
	args = append(args, string(breakdown))
	for _, v := range []any{a.Transactions, top, a.PersonaIndicators, a.FinancialBehavior} {
		arg, err := jsonArg(v)
		if err != nil {
			return fmt.Errorf("SaveStatementAnalysis: %w", err)
		}
		args = append(args, arg)
	}
	args = append(args, a.AnalyzedAt)

	const q = `
		INSERT INTO statement_analyses
			(analysis_id, customer_id, document_id, basic_features, transaction_metrics,
			 category_breakdown, transactions, top_categories, persona_indicators,
			 financial_behavior, analyzed_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("SaveStatementAnalysis: %w", err)
	}
	return nil
}

// LatestStatementAnalysis returns the analysis with the newest analyzed_at, or nil.
func (s *Store) LatestStatementAnalysis(ctx context.Context, customerID string) (*domain.StatementAnalysis, error) {
	const q = `
		SELECT analysis_id, customer_id, document_id, basic_features, transaction_metrics,
		       category_breakdown, transactions, top_categories, persona_indicators,
		       financial_behavior, analyzed_at
		FROM statement_analyses
		WHERE customer_id = $1
		ORDER BY analyzed_at DESC
		LIMIT 1
	`
	var a domain.StatementAnalysis
	var basic, metrics, breakdown, txns, top, persona, behavior []byte
	err := s.db.QueryRowContext(ctx, q, customerID).Scan(
		&a.ID, &a.CustomerID, &a.DocumentID, &basic, &metrics,
		&breakdown, &txns, &top, &persona, &behavior, &a.AnalyzedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LatestStatementAnalysis: %w", err)
	}

	cols := []struct {
		name string
		data []byte
		dst  any
	}{
		{"basic_features", basic, &a.BasicFeatures},
		{"transaction_metrics", metrics, &a.TransactionMetrics},
		{"category_breakdown", breakdown, &a.CategoryBreakdown},
		{"transactions", txns, &a.Transactions},
		{"top_categories", top, &a.TopCategories},
		{"persona_indicators", persona, &a.PersonaIndicators},
		{"financial_behavior", behavior, &a.FinancialBehavior},
	}
	for _, c := range cols {
		if err := scanJSON(c.data, c.dst); err != nil {
			return nil, fmt.Errorf("LatestStatementAnalysis: decoding %s: %w", c.name, err)
		}
	}
	if a.CategoryBreakdown == nil {
		a.CategoryBreakdown = domain.CategoryBreakdown{}
	}
	if a.TopCategories == nil {
		a.TopCategories = []string{}
	}
	return &a, nil
}
