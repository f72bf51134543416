// Package recommend ranks catalog cards against a customer's latest statement
// analysis and compares them with the cards the customer already holds.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/oracle"
	"github.com/dvloznov/card-advisor/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MaxRecommendations caps the returned list.
const MaxRecommendations = 3

// Repository is the part of the Entity Store the aggregator reads.
type Repository interface {
	store.UserRepository
	store.AnalysisRepository
	store.QuestionnaireRepository
	store.CatalogRepository
}

// Request asks for recommendations for one customer.
type Request struct {
	CustomerID string `json:"customerId"`
	// HeldCards are the names of the cards the customer already has.
	HeldCards       []string        `json:"cardName,omitempty"`
	Preferences     json.RawMessage `json:"preferences,omitempty"`
	SpendingPattern json.RawMessage `json:"spendingPattern,omitempty"`
}

// Recommendation is one ranked card with its catalog metadata. Catalog fields
// stay empty when the oracle named a card the catalog does not know.
type Recommendation struct {
	Rank                int                         `json:"rank"`
	CardName            string                      `json:"cardName"`
	TotalReturn         float64                     `json:"totalReturn"`
	CurrentReturn       float64                     `json:"currentReturn"`
	ReturnBreakup       map[string]float64          `json:"returnBreakup,omitempty"`
	BankName            string                      `json:"bankName,omitempty"`
	EligibilityCriteria *domain.EligibilityCriteria `json:"eligibilityCriteria,omitempty"`
	RewardSummary       []domain.RewardCategory     `json:"rewardSummary,omitempty"`
	FeeStructure        *domain.FeeStructure        `json:"feeStructure,omitempty"`
	Benefits            []domain.Benefit            `json:"benefits,omitempty"`
}

// Aggregator produces ranked card recommendations. It never writes.
type Aggregator struct {
	repo   Repository
	oracle oracle.Generator
	log    zerolog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(repo Repository, gen oracle.Generator, log zerolog.Logger) *Aggregator {
	return &Aggregator{repo: repo, oracle: gen, log: log}
}

// profile is the user persona sent to both ranking calls.
type profile struct {
	Analysis        *domain.StatementAnalysis `json:"statementAnalysis"`
	Preferences     json.RawMessage           `json:"preferences,omitempty"`
	SpendingPattern json.RawMessage           `json:"spendingPattern,omitempty"`
	Questionnaire   *domain.Questionnaire     `json:"questionnaire,omitempty"`
}

// Recommend ranks the active catalog for req.CustomerID. Any store or oracle
// failure fails the whole request; no partial list is returned.
func (a *Aggregator) Recommend(ctx context.Context, req Request) ([]Recommendation, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, apperr.Precondition("customerId is required")
	}

	persona, err := a.loadProfile(ctx, req)
	if err != nil {
		return nil, err
	}

	candidates, err := a.repo.ListActiveCards(ctx)
	if err != nil {
		return nil, apperr.Dependency("Recommend: listing active cards", err)
	}

	var held []domain.CardCatalogEntry
	if len(req.HeldCards) > 0 {
		held, err = a.repo.FindCardsByName(ctx, req.HeldCards, store.MaxHeldCardMatches)
		if err != nil {
			return nil, apperr.Dependency("Recommend: finding held cards", err)
		}
	}

	personaJSON, err := json.Marshal(persona)
	if err != nil {
		return nil, fmt.Errorf("Recommend: encoding profile: %w", err)
	}

	var best, current []rankedCard
	g, gctx := errgroup.WithContext(ctx)
	if len(candidates) > 0 {
		g.Go(func() error {
			var err error
			best, err = a.rank(gctx, "candidates", personaJSON, candidates, MaxRecommendations)
			return err
		})
	}
	if len(held) > 0 {
		g.Go(func() error {
			var err error
			current, err = a.rank(gctx, "current", personaJSON, held, len(held))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Recommend: %w", err)
	}

	baseline := currentReturn(current, req.HeldCards)
	out := merge(best, candidates, baseline)

	a.log.Info().
		Str("customer_id", req.CustomerID).
		Int("candidates", len(candidates)).
		Int("held_matches", len(held)).
		Float64("current_return", baseline.InexactFloat64()).
		Int("results", len(out)).
		Msg("recommendations ready")
	return out, nil
}

func (a *Aggregator) loadProfile(ctx context.Context, req Request) (*profile, error) {
	user, err := a.repo.GetUser(ctx, req.CustomerID)
	if err != nil {
		return nil, apperr.Dependency("Recommend: loading user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user with customerId %s", req.CustomerID)
	}

	latest, err := a.repo.LatestStatementAnalysis(ctx, req.CustomerID)
	if err != nil {
		return nil, apperr.Dependency("Recommend: loading statement analysis", err)
	}
	if latest == nil {
		return nil, apperr.Precondition("no statement analysis found for customer %s", req.CustomerID)
	}

	q, err := a.repo.LatestQuestionnaire(ctx, req.CustomerID)
	if err != nil {
		return nil, apperr.Dependency("Recommend: loading questionnaire", err)
	}

	return &profile{
		Analysis:        latest,
		Preferences:     req.Preferences,
		SpendingPattern: req.SpendingPattern,
		Questionnaire:   q,
	}, nil
}

// cardView is the catalog data the oracle scores against.
type cardView struct {
	CardName      string                  `json:"cardName"`
	BankName      string                  `json:"bankName,omitempty"`
	FeeStructure  *domain.FeeStructure    `json:"feeStructure,omitempty"`
	RewardSummary []domain.RewardCategory `json:"rewardSummary,omitempty"`
	Benefits      []domain.Benefit        `json:"benefits,omitempty"`
}

func (a *Aggregator) rank(ctx context.Context, pool string, personaJSON []byte, cards []domain.CardCatalogEntry, maxResults int) ([]rankedCard, error) {
	views := make([]cardView, len(cards))
	for i, c := range cards {
		views[i] = cardView{
			CardName:      c.CardName,
			BankName:      c.BankName,
			FeeStructure:  c.FeeStructure,
			RewardSummary: c.RewardSummary,
			Benefits:      c.Benefits,
		}
	}
	cardsJSON, err := json.Marshal(views)
	if err != nil {
		return nil, fmt.Errorf("rank %s: encoding cards: %w", pool, err)
	}

	text, err := a.oracle.Generate(ctx, oracle.Request{
		Prompt: oracle.CardRankingPrompt(string(personaJSON), string(cardsJSON), maxResults),
		JSON:   true,
	})
	if err != nil {
		return nil, apperr.Dependency("rank "+pool, err)
	}

	ranked, err := decodeRanking(text)
	if err != nil {
		return nil, fmt.Errorf("rank %s: %w", pool, err)
	}
	a.log.Debug().Str("pool", pool).Int("cards", len(cards)).Int("ranked", len(ranked)).Msg("ranking decoded")
	return ranked, nil
}

// currentReturnDivisor is the number of held cards the baseline is averaged
// over. It counts every name the customer asked about, matched in the
// catalog or not, so an unknown card lowers the average.
func currentReturnDivisor(queried []string) int {
	n := 0
	for _, name := range queried {
		if strings.TrimSpace(name) != "" {
			n++
		}
	}
	return n
}

// currentReturn is the average monthly return of the held cards, rounded
// half away from zero to 2 decimals. It is zero when nothing was scored.
func currentReturn(scored []rankedCard, queried []string) decimal.Decimal {
	divisor := currentReturnDivisor(queried)
	if len(scored) == 0 || divisor == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, c := range scored {
		sum = sum.Add(c.TotalReturn)
	}
	return sum.Div(decimal.NewFromInt(int64(divisor))).Round(2)
}

// merge attaches catalog metadata by exact card name and keeps at most
// MaxRecommendations items in oracle order.
func merge(ranked []rankedCard, catalog []domain.CardCatalogEntry, baseline decimal.Decimal) []Recommendation {
	byName := make(map[string]*domain.CardCatalogEntry, len(catalog))
	for i := range catalog {
		byName[catalog[i].CardName] = &catalog[i]
	}

	if len(ranked) > MaxRecommendations {
		ranked = ranked[:MaxRecommendations]
	}

	out := make([]Recommendation, 0, len(ranked))
	for _, r := range ranked {
		rec := Recommendation{
			Rank:          r.Rank,
			CardName:      r.CardName,
			TotalReturn:   r.TotalReturn.InexactFloat64(),
			CurrentReturn: baseline.InexactFloat64(),
		}
		if len(r.ReturnBreakup) > 0 {
			rec.ReturnBreakup = make(map[string]float64, len(r.ReturnBreakup))
			for k, v := range r.ReturnBreakup {
				rec.ReturnBreakup[k] = v.InexactFloat64()
			}
		}
		if entry, ok := byName[r.CardName]; ok {
			rec.BankName = entry.BankName
			rec.EligibilityCriteria = entry.EligibilityCriteria
			rec.RewardSummary = entry.RewardSummary
			rec.FeeStructure = entry.FeeStructure
			rec.Benefits = entry.Benefits
		}
		out = append(out, rec)
	}
	return out
}
