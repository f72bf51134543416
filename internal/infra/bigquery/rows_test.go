package bigquery

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dvloznov/card-advisor/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func TestStatementAnalysisRow_KeepsBreakdownOrder(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &domain.StatementAnalysis{
		ID:         "an-1",
		CustomerID: "cust-1",
		DocumentID: "doc-1",
		BasicFeatures: domain.BasicFeatures{
			CreditLimit: 100000,
			BankName:    "HDFC",
		},
		TransactionMetrics: domain.TransactionMetrics{TransactionCount: 3, TotalSpend: 4500},
		CategoryBreakdown: domain.CategoryBreakdown{
			{Name: "Travel", Amount: floatPtr(3000), Count: floatPtr(1)},
			{Name: "Dining", Amount: floatPtr(1500), Count: floatPtr(2)},
		},
		TopCategories: []string{"Travel", "Dining"},
		AnalyzedAt:    at,
	}

	row, err := newStatementAnalysisRow(a)
	if err != nil {
		t.Fatalf("newStatementAnalysisRow failed: %v", err)
	}
	if row.PersonaIndicators.Valid || row.Transactions.Valid {
		t.Error("absent sections should be NULL")
	}
	if want := `{"Travel":{"amount":3000,"count":1},"Dining":{"amount":1500,"count":2}}`; row.CategoryBreakdown != want {
		t.Errorf("category_breakdown = %s, want %s", row.CategoryBreakdown, want)
	}

	back, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}
	if back.CategoryBreakdown[0].Name != "Travel" || back.CategoryBreakdown[1].Name != "Dining" {
		t.Errorf("breakdown order = %+v", back.CategoryBreakdown)
	}
	if back.BasicFeatures.BankName != "HDFC" || back.TransactionMetrics.TotalSpend != 4500 {
		t.Errorf("sections = %+v / %+v", back.BasicFeatures, back.TransactionMetrics)
	}
	if back.PersonaIndicators != nil || !back.AnalyzedAt.Equal(at) {
		t.Errorf("analysis = %+v", back)
	}
}

func TestStatementAnalysisRow_EmptyColumns(t *testing.T) {
	row := &StatementAnalysisRow{AnalysisID: "an-1", CustomerID: "c", DocumentID: "d"}
	a, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}
	if a.CategoryBreakdown == nil || a.TopCategories == nil {
		t.Errorf("breakdown and top categories should be empty, not nil: %+v", a)
	}
}

func TestQuestionnaireRow(t *testing.T) {
	has := true
	q := &domain.Questionnaire{
		ID:         "q-1",
		CustomerID: "cust-1",
		SpendCategories: []domain.SpendCategory{
			{CategoryName: "Dining", CategoryAmount: floatPtr(5000), SubCategories: []string{"restaurants"}},
		},
		HasCreditCard: &has,
		SubmittedAt:   time.Now().UTC(),
	}

	row, err := newQuestionnaireRow(q)
	if err != nil {
		t.Fatalf("newQuestionnaireRow failed: %v", err)
	}
	if !row.HasCreditCard.Valid || row.CreditLimit.Valid {
		t.Errorf("nullable columns = %+v / %+v", row.HasCreditCard, row.CreditLimit)
	}

	back, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}
	if len(back.SpendCategories) != 1 || *back.SpendCategories[0].CategoryAmount != 5000 {
		t.Errorf("spend categories = %+v", back.SpendCategories)
	}
	if back.HasCreditCard == nil || !*back.HasCreditCard || back.CreditLimit != nil {
		t.Errorf("questionnaire = %+v", back)
	}
}

func TestCardCatalogRow(t *testing.T) {
	c := &domain.CardCatalogEntry{
		CardName:     "Millennia",
		BankName:     "HDFC",
		FeeStructure: &domain.FeeStructure{AnnualFee: "1000"},
		RewardSummary: []domain.RewardCategory{
			{RewardCategory: "SHOPPING", RewardStructures: []domain.RewardStructure{{ValueForCalculation: "5%"}}},
		},
		IsActive: true,
	}

	row, err := newCardCatalogRow(c)
	if err != nil {
		t.Fatalf("newCardCatalogRow failed: %v", err)
	}
	if row.EligibilityCriteria.Valid || row.Benefits.Valid {
		t.Error("absent sections should be NULL")
	}
	if p := nullableJSONParam(row.Benefits); p.Valid {
		t.Errorf("benefits param = %+v, want NULL", p)
	}
	if p := nullableJSONParam(row.FeeStructure); !p.Valid || !json.Valid([]byte(p.StringVal)) {
		t.Errorf("fee_structure param = %+v", p)
	}

	back, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}
	if back.FeeStructure == nil || back.FeeStructure.AnnualFee != "1000" || len(back.RewardSummary) != 1 || !back.IsActive {
		t.Errorf("card = %+v", back)
	}
}

func TestDocumentUploadRow(t *testing.T) {
	d := &domain.DocumentUpload{
		ID:             "doc-1",
		CustomerID:     "cust-1",
		CardBank:       domain.UnknownLabel,
		CardName:       domain.UnknownLabel,
		FilePaths:      []string{"file:///tmp/a.pdf"},
		OracleResponse: map[string]any{"status": "processed"},
	}

	row, err := newDocumentUploadRow(d)
	if err != nil {
		t.Fatalf("newDocumentUploadRow failed: %v", err)
	}
	back, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}
	if back.OracleResponse["status"] != "processed" || len(back.FilePaths) != 1 {
		t.Errorf("upload = %+v", back)
	}
}

func TestTableRef(t *testing.T) {
	if got := tableRef("proj", "ds", usersTable); got != "`proj.ds.users`" {
		t.Errorf("tableRef = %s", got)
	}
}
