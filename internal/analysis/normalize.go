package analysis

import (
	"sort"

	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultTopCategories is the number of top categories kept on an analysis.
const DefaultTopCategories = 5

// Normalizer cleans an oracle analysis before it is returned or persisted.
type Normalizer struct {
	topN int
	log  zerolog.Logger
}

// NewNormalizer creates a Normalizer keeping topN categories (DefaultTopCategories when topN <= 0).
func NewNormalizer(topN int, log zerolog.Logger) *Normalizer {
	if topN <= 0 {
		topN = DefaultTopCategories
	}
	return &Normalizer{topN: topN, log: log}
}

// Normalize drops categories whose amount and count are both zero or missing
// and re-derives top_categories from what remains. Missing sections are
// logged, never fatal. The input is not modified; if normalization panics the
// input is returned as is. Normalize(Normalize(x)) equals Normalize(x).
func (n *Normalizer) Normalize(raw *Raw) (out *Raw) {
	if raw == nil {
		n.log.Warn().Msg("Normalize: empty analysis")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			n.log.Error().Interface("panic", r).Msg("Normalize: validation failed, returning original analysis")
			out = raw
		}
	}()

	cleaned := raw.Clone()
	n.warnMissingSections(cleaned)

	if cleaned.CategoryBreakdown == nil {
		cleaned.TopCategories = []string{}
		return cleaned
	}

	kept := make(domain.CategoryBreakdown, 0, len(cleaned.CategoryBreakdown))
	for _, c := range cleaned.CategoryBreakdown {
		if c.AmountOrZero() == 0 && c.CountOrZero() == 0 {
			continue
		}
		kept = append(kept, c)
	}
	if dropped := len(cleaned.CategoryBreakdown) - len(kept); dropped > 0 {
		n.log.Debug().Int("dropped", dropped).Msg("Normalize: removed empty categories")
	}

	cleaned.CategoryBreakdown = kept
	cleaned.TopCategories = TopCategories(kept, n.topN)
	return cleaned
}

func (n *Normalizer) warnMissingSections(r *Raw) {
	if r.BasicFeatures == nil {
		n.log.Warn().Str("section", "basic_features").Msg("Normalize: missing required section")
	}
	if r.TransactionMetrics == nil {
		n.log.Warn().Str("section", "transaction_metrics").Msg("Normalize: missing required section")
	}
	if r.CategoryBreakdown == nil {
		n.log.Warn().Str("section", "category_breakdown").Msg("Normalize: missing required section")
	}
}

// TopCategories returns up to limit category names ordered by amount,
// highest first. Equal amounts keep their breakdown order.
func TopCategories(b domain.CategoryBreakdown, limit int) []string {
	if limit < 0 {
		limit = 0
	}

	sorted := make(domain.CategoryBreakdown, len(b))
	copy(sorted, b)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AmountOrZero() > sorted[j].AmountOrZero()
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	names := make([]string, len(sorted))
	for i, c := range sorted {
		names[i] = c.Name
	}
	return names
}
