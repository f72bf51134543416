package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-advisor/internal/domain"
)

type UserRow struct {
	CustomerID string    `bigquery:"customer_id"` // REQUIRED
	CreatedAt  time.Time `bigquery:"created_at"`  // REQUIRED
}

type DocumentUploadRow struct {
	DocumentID     string            `bigquery:"document_id"`     // REQUIRED
	CustomerID     string            `bigquery:"customer_id"`     // REQUIRED
	CardBank       string            `bigquery:"card_bank"`       // NULLABLE
	CardName       string            `bigquery:"card_name"`       // NULLABLE
	FilePaths      []string          `bigquery:"file_paths"`      // REPEATED
	UploadedAt     time.Time         `bigquery:"uploaded_at"`     // REQUIRED
	OracleResponse bigquery.NullJSON `bigquery:"oracle_response"` // NULLABLE
}

type QuestionnaireRow struct {
	QuestionnaireID string               `bigquery:"questionnaire_id"` // REQUIRED
	CustomerID      string               `bigquery:"customer_id"`      // REQUIRED
	SpendCategories bigquery.NullJSON    `bigquery:"spend_categories"` // REQUIRED
	IncomeRange     string               `bigquery:"income_range"`     // NULLABLE
	HasCreditCard   bigquery.NullBool    `bigquery:"has_credit_card"`  // NULLABLE
	CreditLimit     bigquery.NullFloat64 `bigquery:"credit_limit"`     // NULLABLE
	SubmittedAt     time.Time            `bigquery:"submitted_at"`     // REQUIRED
}

// StatementAnalysisRow stores each analysis section as JSON. The category
// breakdown is a STRING column because the JSON type does not keep key order.
type StatementAnalysisRow struct {
	AnalysisID         string            `bigquery:"analysis_id"`         // REQUIRED
	CustomerID         string            `bigquery:"customer_id"`         // REQUIRED
	DocumentID         string            `bigquery:"document_id"`         // REQUIRED
	BasicFeatures      bigquery.NullJSON `bigquery:"basic_features"`      // REQUIRED
	TransactionMetrics bigquery.NullJSON `bigquery:"transaction_metrics"` // REQUIRED
	CategoryBreakdown  string            `bigquery:"category_breakdown"`  // REQUIRED
	Transactions       bigquery.NullJSON `bigquery:"transactions"`        // NULLABLE
	TopCategories      []string          `bigquery:"top_categories"`      // REPEATED
	PersonaIndicators  bigquery.NullJSON `bigquery:"persona_indicators"`  // NULLABLE
	FinancialBehavior  bigquery.NullJSON `bigquery:"financial_behavior"`  // NULLABLE
	AnalyzedAt         time.Time         `bigquery:"analyzed_at"`         // REQUIRED
}

type CardCatalogRow struct {
	CardName            string            `bigquery:"card_name"`            // REQUIRED
	BankName            string            `bigquery:"bank_name"`            // NULLABLE
	FeeStructure        bigquery.NullJSON `bigquery:"fee_structure"`        // NULLABLE
	EligibilityCriteria bigquery.NullJSON `bigquery:"eligibility_criteria"` // NULLABLE
	RewardSummary       bigquery.NullJSON `bigquery:"reward_summary"`       // NULLABLE
	Benefits            bigquery.NullJSON `bigquery:"benefits"`             // NULLABLE
	IsActive            bool              `bigquery:"is_active"`            // REQUIRED
	AnalyzedAt          time.Time         `bigquery:"analyzed_at"`          // REQUIRED
}

// toNullJSON encodes v. Nil pointers, slices and maps become NULL.
func toNullJSON(v any) (bigquery.NullJSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return bigquery.NullJSON{}, err
	}
	if string(data) == "null" {
		return bigquery.NullJSON{}, nil
	}
	return bigquery.NullJSON{JSONVal: string(data), Valid: true}, nil
}

// fromNullJSON decodes a column into dst, leaving dst untouched for NULL.
func fromNullJSON(col bigquery.NullJSON, dst any) error {
	if !col.Valid || col.JSONVal == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.JSONVal), dst)
}

func newDocumentUploadRow(d *domain.DocumentUpload) (*DocumentUploadRow, error) {
	resp, err := toNullJSON(d.OracleResponse)
	if err != nil {
		return nil, fmt.Errorf("newDocumentUploadRow: encoding oracle_response: %w", err)
	}
	return &DocumentUploadRow{
		DocumentID:     d.ID,
		CustomerID:     d.CustomerID,
		CardBank:       d.CardBank,
		CardName:       d.CardName,
		FilePaths:      d.FilePaths,
		UploadedAt:     d.UploadedAt,
		OracleResponse: resp,
	}, nil
}

func (r *DocumentUploadRow) toDomain() (*domain.DocumentUpload, error) {
	d := &domain.DocumentUpload{
		ID:         r.DocumentID,
		CustomerID: r.CustomerID,
		CardBank:   r.CardBank,
		CardName:   r.CardName,
		FilePaths:  r.FilePaths,
		UploadedAt: r.UploadedAt,
	}
	if err := fromNullJSON(r.OracleResponse, &d.OracleResponse); err != nil {
		return nil, fmt.Errorf("DocumentUploadRow: decoding oracle_response: %w", err)
	}
	return d, nil
}

func newQuestionnaireRow(q *domain.Questionnaire) (*QuestionnaireRow, error) {
	cats, err := toNullJSON(q.SpendCategories)
	if err != nil {
		return nil, fmt.Errorf("newQuestionnaireRow: encoding spend_categories: %w", err)
	}
	row := &QuestionnaireRow{
		QuestionnaireID: q.ID,
		CustomerID:      q.CustomerID,
		SpendCategories: cats,
		IncomeRange:     q.IncomeRange,
		SubmittedAt:     q.SubmittedAt,
	}
	if q.HasCreditCard != nil {
		row.HasCreditCard = bigquery.NullBool{Bool: *q.HasCreditCard, Valid: true}
	}
	if q.CreditLimit != nil {
		row.CreditLimit = bigquery.NullFloat64{Float64: *q.CreditLimit, Valid: true}
	}
	return row, nil
}

func (r *QuestionnaireRow) toDomain() (*domain.Questionnaire, error) {
	q := &domain.Questionnaire{
		ID:          r.QuestionnaireID,
		CustomerID:  r.CustomerID,
		IncomeRange: r.IncomeRange,
		SubmittedAt: r.SubmittedAt,
	}
	if err := fromNullJSON(r.SpendCategories, &q.SpendCategories); err != nil {
		return nil, fmt.Errorf("QuestionnaireRow: decoding spend_categories: %w", err)
	}
	if r.HasCreditCard.Valid {
		v := r.HasCreditCard.Bool
		q.HasCreditCard = &v
	}
	if r.CreditLimit.Valid {
		v := r.CreditLimit.Float64
		q.CreditLimit = &v
	}
	return q, nil
}

func newStatementAnalysisRow(a *domain.StatementAnalysis) (*StatementAnalysisRow, error) {
	row := &StatementAnalysisRow{
		AnalysisID:    a.ID,
		CustomerID:    a.CustomerID,
		DocumentID:    a.DocumentID,
		TopCategories: a.TopCategories,
		AnalyzedAt:    a.AnalyzedAt,
	}

	breakdown, err := json.Marshal(a.CategoryBreakdown)
	if err != nil {
		return nil, fmt.Errorf("newStatementAnalysisRow: encoding category_breakdown: %w", err)
	}
	row.CategoryBreakdown = string(breakdown)

	cols := []struct {
		name string
		dst  *bigquery.NullJSON
		v    any
	}{
		{"basic_features", &row.BasicFeatures, a.BasicFeatures},
		{"transaction_metrics", &row.TransactionMetrics, a.TransactionMetrics},
		{"transactions", &row.Transactions, a.Transactions},
		{"persona_indicators", &row.PersonaIndicators, a.PersonaIndicators},
		{"financial_behavior", &row.FinancialBehavior, a.FinancialBehavior},
	}
	for _, c := range cols {
		if *c.dst, err = toNullJSON(c.v); err != nil {
			return nil, fmt.Errorf("newStatementAnalysisRow: encoding %s: %w", c.name, err)
		}
	}
	return row, nil
}

func (r *StatementAnalysisRow) toDomain() (*domain.StatementAnalysis, error) {
	a := &domain.StatementAnalysis{
		ID:            r.AnalysisID,
		CustomerID:    r.CustomerID,
		DocumentID:    r.DocumentID,
		TopCategories: r.TopCategories,
		AnalyzedAt:    r.AnalyzedAt,
	}
	if r.CategoryBreakdown != "" {
		if err := json.Unmarshal([]byte(r.CategoryBreakdown), &a.CategoryBreakdown); err != nil {
			return nil, fmt.Errorf("StatementAnalysisRow: decoding category_breakdown: %w", err)
		}
	}
	if a.CategoryBreakdown == nil {
		a.CategoryBreakdown = domain.CategoryBreakdown{}
	}
	if a.TopCategories == nil {
		a.TopCategories = []string{}
	}

	cols := []struct {
		name string
		col  bigquery.NullJSON
		dst  any
	}{
		{"basic_features", r.BasicFeatures, &a.BasicFeatures},
		{"transaction_metrics", r.TransactionMetrics, &a.TransactionMetrics},
		{"transactions", r.Transactions, &a.Transactions},
		{"persona_indicators", r.PersonaIndicators, &a.PersonaIndicators},
		{"financial_behavior", r.FinancialBehavior, &a.FinancialBehavior},
	}
	for _, c := range cols {
		if err := fromNullJSON(c.col, c.dst); err != nil {
			return nil, fmt.Errorf("StatementAnalysisRow: decoding %s: %w", c.name, err)
		}
	}
	return a, nil
}

func newCardCatalogRow(c *domain.CardCatalogEntry) (*CardCatalogRow, error) {
	row := &CardCatalogRow{
		CardName:   c.CardName,
		BankName:   c.BankName,
		IsActive:   c.IsActive,
		AnalyzedAt: c.AnalyzedAt,
	}

	var err error
	cols := []struct {
		name string
		dst  *bigquery.NullJSON
		v    any
	}{
		{"fee_structure", &row.FeeStructure, c.FeeStructure},
		{"eligibility_criteria", &row.EligibilityCriteria, c.EligibilityCriteria},
		{"reward_summary", &row.RewardSummary, c.RewardSummary},
		{"benefits", &row.Benefits, c.Benefits},
	}
	for _, col := range cols {
		if *col.dst, err = toNullJSON(col.v); err != nil {
			return nil, fmt.Errorf("newCardCatalogRow: encoding %s: %w", col.name, err)
		}
	}
	return row, nil
}

func (r *CardCatalogRow) toDomain() (domain.CardCatalogEntry, error) {
	c := domain.CardCatalogEntry{
		CardName:   r.CardName,
		BankName:   r.BankName,
		IsActive:   r.IsActive,
		AnalyzedAt: r.AnalyzedAt,
	}
	cols := []struct {
		name string
		col  bigquery.NullJSON
		dst  any
	}{
		{"fee_structure", r.FeeStructure, &c.FeeStructure},
		{"eligibility_criteria", r.EligibilityCriteria, &c.EligibilityCriteria},
		{"reward_summary", r.RewardSummary, &c.RewardSummary},
		{"benefits", r.Benefits, &c.Benefits},
	}
	for _, col := range cols {
		if err := fromNullJSON(col.col, col.dst); err != nil {
			return domain.CardCatalogEntry{}, fmt.Errorf("CardCatalogRow: decoding %s: %w", col.name, err)
		}
	}
	return c, nil
}

// nullableJSONParam turns a JSON column into a query parameter value that
// is NULL when the column is.
func nullableJSONParam(col bigquery.NullJSON) bigquery.NullString {
	return bigquery.NullString{StringVal: col.JSONVal, Valid: col.Valid}
}
