package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/store"
)

const cardColumns = `card_name, bank_name, fee_structure, eligibility_criteria, reward_summary, benefits, is_active, analyzed_at`

// UpsertCard inserts the entry or replaces the one with the same card name.
func (s *Store) UpsertCard(ctx context.Context, card *domain.CardCatalogEntry) error {
	name := strings.TrimSpace(card.CardName)
	if name == "" {
		return fmt.Errorf("UpsertCard: card_name cannot be empty")
	}

	args := []any{name, card.BankName}
	for _, v := range []any{card.FeeStructure, card.EligibilityCriteria, card.RewardSummary, card.Benefits} {
		arg, err := jsonArg(v)
		if err != nil {
			return fmt.Errorf("UpsertCard: %w", err)
		}
		args = append(args, arg)
	}
	args = append(args, card.IsActive, card.AnalyzedAt)

	const q = `
		INSERT INTO card_catalog (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (card_name) DO UPDATE SET
			bank_name = EXCLUDED.bank_name,
			fee_structure = EXCLUDED.fee_structure,
			eligibility_criteria = EXCLUDED.eligibility_criteria,
			reward_summary = EXCLUDED.reward_summary,
			benefits = EXCLUDED.benefits,
			is_active = EXCLUDED.is_active,
			analyzed_at = EXCLUDED.analyzed_at
	`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("UpsertCard: %w", err)
	}
	return nil
}

// ListActiveCards returns active entries ordered by name.
func (s *Store) ListActiveCards(ctx context.Context) ([]domain.CardCatalogEntry, error) {
	const q = `
		SELECT ` + cardColumns + `
		FROM card_catalog
		WHERE is_active
		ORDER BY card_name
	`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCards: %w", err)
	}
	defer rows.Close()

	out, err := scanCards(rows)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCards: %w", err)
	}
	return out, nil
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

	// jsonb keeps the parameter a plain string; database/sql has no array type.
	keysJSON, err := jsonArg(keys)
	if err != nil {
		return nil, fmt.Errorf("FindCardsByName: %w", err)
	}

	const q = `
		SELECT ` + cardColumns + `
		FROM card_catalog
		WHERE lower(btrim(card_name)) IN (SELECT jsonb_array_elements_text($1::jsonb))
		ORDER BY card_name
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, q, keysJSON, limit)
	if err != nil {
		return nil, fmt.Errorf("FindCardsByName: %w", err)
	}
	defer rows.Close()

	out, err := scanCards(rows)
	if err != nil {
		return nil, fmt.Errorf("FindCardsByName: %w", err)
	}
	return out, nil
}

func scanCards(rows *sql.Rows) ([]domain.CardCatalogEntry, error) {
	out := []domain.CardCatalogEntry{}
	for rows.Next() {
		var c domain.CardCatalogEntry
		var fees, eligibility, rewards, perks []byte
		if err := rows.Scan(
			&c.CardName, &c.BankName, &fees, &eligibility, &rewards, &perks, &c.IsActive, &c.AnalyzedAt,
		); err != nil {
			return nil, err
		}
		cols := []struct {
			name string
			data []byte
			dst  any
		}{
			{"fee_structure", fees, &c.FeeStructure},
			{"eligibility_criteria", eligibility, &c.EligibilityCriteria},
			{"reward_summary", rewards, &c.RewardSummary},
			{"benefits", perks, &c.Benefits},
		}
		for _, col := range cols {
			if err := scanJSON(col.data, col.dst); err != nil {
				return nil, fmt.Errorf("decoding %s of %s: %w", col.name, c.CardName, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
