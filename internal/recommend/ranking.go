package recommend

import (
	"encoding/json"
	"strings"

	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/oracle"
	"github.com/shopspring/decimal"
)

// rankedCard is one entry of a card-ranking oracle answer.
type rankedCard struct {
	Rank          int
	CardName      string
	TotalReturn   decimal.Decimal
	ReturnBreakup map[string]decimal.Decimal
}

type rankingJSON struct {
	TopRecommendations *[]rankedCardJSON `json:"topRecommendations"`
}

type rankedCardJSON struct {
	Rank          int                        `json:"rank"`
	CardName      string                     `json:"cardName"`
	TotalReturn   json.RawMessage            `json:"totalReturn"`
	ReturnBreakup map[string]json.RawMessage `json:"returnBreakup"`
}

// decodeRanking decodes the answer of a card-ranking call. It fails closed:
// a missing list, a blank card name or a non-numeric return rejects the
// whole answer.
func decodeRanking(text string) ([]rankedCard, error) {
	var payload rankingJSON
	if err := oracle.Decode(text, &payload); err != nil {
		return nil, err
	}
	if payload.TopRecommendations == nil {
		return nil, apperr.Extraction("ranking: topRecommendations missing")
	}

	out := make([]rankedCard, 0, len(*payload.TopRecommendations))
	for i, item := range *payload.TopRecommendations {
		name := strings.TrimSpace(item.CardName)
		if name == "" {
			return nil, apperr.Extraction("ranking: item %d has no cardName", i)
		}

		total, err := parseAmount(item.TotalReturn)
		if err != nil {
			return nil, apperr.Extraction("ranking: %s totalReturn: %v", name, err)
		}
		if total == nil {
			return nil, apperr.Extraction("ranking: %s has no totalReturn", name)
		}

		card := rankedCard{Rank: item.Rank, CardName: name, TotalReturn: *total}
		if len(item.ReturnBreakup) > 0 {
			card.ReturnBreakup = make(map[string]decimal.Decimal, len(item.ReturnBreakup))
			for category, raw := range item.ReturnBreakup {
				v, err := parseAmount(raw)
				if err != nil {
					return nil, apperr.Extraction("ranking: %s returnBreakup[%s]: %v", name, category, err)
				}
				if v != nil {
					card.ReturnBreakup[category] = *v
				}
			}
		}
		out = append(out, card)
	}
	return out, nil
}

// parseAmount reads a rupee amount given as a number or a numeric string.
// A null or empty amount is (nil, nil).
func parseAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	f, err := domain.ParseLooseNumber(raw)
	if err != nil || f == nil {
		return nil, err
	}
	d := decimal.NewFromFloat(*f)
	return &d, nil
}
