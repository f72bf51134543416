package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/store"
)

const cardColumns = `
			card_name,
			bank_name,
			fee_structure,
			eligibility_criteria,
			reward_summary,
			benefits,
			is_active,
			analyzed_at`

// UpsertCard replaces the entry with the same card name or inserts a new one.
// It goes through DML rather than the streaming inserter so a later MERGE
// never hits rows still in the streaming buffer.
func (s *Store) UpsertCard(ctx context.Context, card *domain.CardCatalogEntry) error {
	name := strings.TrimSpace(card.CardName)
	if name == "" {
		return fmt.Errorf("UpsertCard: card_name cannot be empty")
	}

	row, err := newCardCatalogRow(card)
	if err != nil {
		return fmt.Errorf("UpsertCard: %w", err)
	}
	row.CardName = name

	query := fmt.Sprintf(`
		MERGE %s AS t
		USING (SELECT @cardName AS card_name) AS src
		ON t.card_name = src.card_name
		WHEN MATCHED THEN UPDATE SET
			bank_name = @bankName,
			fee_structure = PARSE_JSON(@feeStructure),
			eligibility_criteria = PARSE_JSON(@eligibilityCriteria),
			reward_summary = PARSE_JSON(@rewardSummary),
			benefits = PARSE_JSON(@benefits),
			is_active = @isActive,
			analyzed_at = @analyzedAt
		WHEN NOT MATCHED THEN INSERT (%s)
		VALUES (
			@cardName,
			@bankName,
			PARSE_JSON(@feeStructure),
			PARSE_JSON(@eligibilityCriteria),
			PARSE_JSON(@rewardSummary),
			PARSE_JSON(@benefits),
			@isActive,
			@analyzedAt
		)
	`, s.table(cardCatalogTable), cardColumns)

	params := []bigquery.QueryParameter{
		{Name: "cardName", Value: row.CardName},
		{Name: "bankName", Value: row.BankName},
		{Name: "feeStructure", Value: nullableJSONParam(row.FeeStructure)},
		{Name: "eligibilityCriteria", Value: nullableJSONParam(row.EligibilityCriteria)},
		{Name: "rewardSummary", Value: nullableJSONParam(row.RewardSummary)},
		{Name: "benefits", Value: nullableJSONParam(row.Benefits)},
		{Name: "isActive", Value: row.IsActive},
		{Name: "analyzedAt", Value: row.AnalyzedAt},
	}

	if err := s.exec(ctx, query, params); err != nil {
		return fmt.Errorf("UpsertCard: %w", err)
	}
	return nil
}

// ListActiveCards returns active entries ordered by name.
func (s *Store) ListActiveCards(ctx context.Context) ([]domain.CardCatalogEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE is_active
		ORDER BY card_name
	`, cardColumns, s.table(cardCatalogTable))

	rows, err := s.queryCards(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCards: %w", err)
	}
	return cardsToDomain(rows)
}

// FindCardsByName matches names case-insensitively, active or not.
func (s *Store) FindCardsByName(ctx context.Context, names []string, limit int) ([]domain.CardCatalogEntry, error) {
	keys := make([]string, 0, len(names))
	for key := range store.NormalizeCardNames(names) {
		keys = append(keys, key)
	}
	if len(keys) == 0 || limit <= 0 {
		return []domain.CardCatalogEntry{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE LOWER(TRIM(card_name)) IN UNNEST(@names)
		ORDER BY card_name
		LIMIT @limit
	`, cardColumns, s.table(cardCatalogTable))

	rows, err := s.queryCards(ctx, query, []bigquery.QueryParameter{
		{Name: "names", Value: keys},
		{Name: "limit", Value: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("FindCardsByName: %w", err)
	}
	return cardsToDomain(rows)
}

func cardsToDomain(rows []CardCatalogRow) ([]domain.CardCatalogEntry, error) {
	out := make([]domain.CardCatalogEntry, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
