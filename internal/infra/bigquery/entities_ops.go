package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/store"
)

// CreateUser inserts a single user row.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	row := &UserRow{CustomerID: user.CustomerID, CreatedAt: user.CreatedAt}
	if err := s.insert(ctx, usersTable, row); err != nil {
		return fmt.Errorf("CreateUser: inserting row: %w", err)
	}
	return nil
}

// GetUser returns nil if no user with the given id exists.
func (s *Store) GetUser(ctx context.Context, customerID string) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT customer_id, created_at
		FROM %s
		WHERE customer_id = @customerID
		LIMIT 1
	`, s.table(usersTable))

	var row UserRow
	found, err := s.queryOne(ctx, query, []bigquery.QueryParameter{
		{Name: "customerID", Value: customerID},
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &domain.User{CustomerID: row.CustomerID, CreatedAt: row.CreatedAt}, nil
}

// CreateDocumentUpload inserts one upload record.
func (s *Store) CreateDocumentUpload(ctx context.Context, doc *domain.DocumentUpload) error {
	row, err := newDocumentUploadRow(doc)
	if err != nil {
		return fmt.Errorf("CreateDocumentUpload: %w", err)
	}
	if err := s.insert(ctx, documentUploadsTable, row); err != nil {
		return fmt.Errorf("CreateDocumentUpload: inserting row: %w", err)
	}
	return nil
}

// GetDocumentUpload returns nil if the upload does not exist.
func (s *Store) GetDocumentUpload(ctx context.Context, id string) (*domain.DocumentUpload, error) {
	query := fmt.Sprintf(`
		SELECT
			document_id,
			customer_id,
			card_bank,
			card_name,
			file_paths,
			uploaded_at,
			oracle_response
		FROM %s
		WHERE document_id = @documentID
		LIMIT 1
	`, s.table(documentUploadsTable))

	var row DocumentUploadRow
	found, err := s.queryOne(ctx, query, []bigquery.QueryParameter{
		{Name: "documentID", Value: id},
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("GetDocumentUpload: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.toDomain()
}

// CreateQuestionnaire inserts a submission.
func (s *Store) CreateQuestionnaire(ctx context.Context, q *domain.Questionnaire) error {
	row, err := newQuestionnaireRow(q)
	if err != nil {
		return fmt.Errorf("CreateQuestionnaire: %w", err)
	}
	if err := s.insert(ctx, questionnairesTable, row); err != nil {
		return fmt.Errorf("CreateQuestionnaire: inserting row: %w", err)
	}
	return nil
}

// LatestQuestionnaire returns the newest submission, or nil.
func (s *Store) LatestQuestionnaire(ctx context.Context, customerID string) (*domain.Questionnaire, error) {
	query := fmt.Sprintf(`
		SELECT
			questionnaire_id,
			customer_id,
			spend_categories,
			income_range,
			has_credit_card,
			credit_limit,
			submitted_at
		FROM %s
		WHERE customer_id = @customerID
		ORDER BY submitted_at DESC
		LIMIT 1
	`, s.table(questionnairesTable))

	var row QuestionnaireRow
	found, err := s.queryOne(ctx, query, []bigquery.QueryParameter{
		{Name: "customerID", Value: customerID},
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("LatestQuestionnaire: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.toDomain()
}

// SaveStatementAnalysis checks the referenced user and upload, then inserts.
func (s *Store) SaveStatementAnalysis(ctx context.Context, a *domain.StatementAnalysis) error {
	if err := store.VerifyAnalysisRefs(ctx, s, s, a); err != nil {
		return fmt.Errorf("SaveStatementAnalysis: %w", err)
	}

	row, err := newStatementAnalysisRow(a)
	if err != nil {
		return fmt.Errorf("SaveStatementAnalysis: %w", err)
	}
	if err := s.insert(ctx, analysesTable, row); err != nil {
		return fmt.Errorf("SaveStatementAnalysis: inserting row: %w", err)
	}
	return nil
}

// LatestStatementAnalysis returns the analysis with the newest analyzed_at, or nil.
func (s *Store) LatestStatementAnalysis(ctx context.Context, customerID string) (*domain.StatementAnalysis, error) {
	query := fmt.Sprintf(`
		SELECT
			analysis_id,
			customer_id,
			document_id,
			basic_features,
			transaction_metrics,
			category_breakdown,
			transactions,
			top_categories,
			persona_indicators,
			financial_behavior,
			analyzed_at
		FROM %s
		WHERE customer_id = @customerID
		ORDER BY analyzed_at DESC
		LIMIT 1
	`, s.table(analysesTable))

	var row StatementAnalysisRow
	found, err := s.queryOne(ctx, query, []bigquery.QueryParameter{
		{Name: "customerID", Value: customerID},
	}, &row)
	if err != nil {
		return nil, fmt.Errorf("LatestStatementAnalysis: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.toDomain()
}
