// Package analysis holds the statement-analysis payload returned by the oracle,
// its normalizer and the mapping into a persisted domain.StatementAnalysis.
package analysis

import (
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/oracle"
)

// BasicFeatures is the "basic_features" section of the oracle payload.
type BasicFeatures struct {
	CreditLimit            *float64 `json:"credit_limit,omitempty"`
	AvailableCredit        *float64 `json:"available_credit,omitempty"`
	CashLimit              *float64 `json:"cash_limit,omitempty"`
	AvailableCash          *float64 `json:"available_cash,omitempty"`
	CreditUtilizationRatio *float64 `json:"credit_utilization_ratio,omitempty"`
	TotalAmountDue         *float64 `json:"total_amount_due,omitempty"`
	MinimumAmountDue       *float64 `json:"minimum_amount_due,omitempty"`
	RewardPoints           *float64 `json:"reward_points,omitempty"`
	BankName               string   `json:"bank_name,omitempty"`
	CardType               string   `json:"card_type,omitempty"`
	StatementDate          string   `json:"statement_date,omitempty"`
	PaymentDueDate         string   `json:"payment_due_date,omitempty"`
}

// TransactionMetrics is the "transaction_metrics" section.
type TransactionMetrics struct {
	TransactionCount         int     `json:"transaction_count"`
	TotalSpend               float64 `json:"total_spend"`
	AverageTransactionAmount float64 `json:"average_transaction_amount"`
	LargestTransaction       float64 `json:"largest_transaction"`
	SmallestTransaction      float64 `json:"smallest_transaction"`
}

// PersonaIndicators is the "user_persona_indicators" section.
type PersonaIndicators struct {
	HighSpender         bool `json:"high_spender"`
	RewardOptimizer     bool `json:"reward_optimizer"`
	DigitalNative       bool `json:"digital_native"`
	FoodEnthusiast      bool `json:"food_enthusiast"`
	TravelLover         bool `json:"travel_lover"`
	Shopper             bool `json:"shopper"`
	EntertainmentSeeker bool `json:"entertainment_seeker"`
	HealthConscious     bool `json:"health_conscious"`
	FamilyOriented      bool `json:"family_oriented"`
	TechSavvy           bool `json:"tech_savvy"`
}

// FinancialBehavior is the "financial_behavior" section.
type FinancialBehavior struct {
	UtilizationLevel string `json:"utilization_level,omitempty"`
	PaymentBehavior  string `json:"payment_behavior,omitempty"`
	SpendingPattern  string `json:"spending_pattern,omitempty"`
}

// Raw is the statement analysis exactly as the oracle shaped it. Sections
// that the oracle left out stay nil.
type Raw struct {
	BasicFeatures      *BasicFeatures           `json:"basic_features,omitempty"`
	TransactionMetrics *TransactionMetrics      `json:"transaction_metrics,omitempty"`
	CategoryBreakdown  domain.CategoryBreakdown `json:"category_breakdown,omitempty"`
	Transactions       []domain.Transaction     `json:"transactions,omitempty"`
	TopCategories      []string                 `json:"top_categories"`
	PersonaIndicators  *PersonaIndicators       `json:"user_persona_indicators,omitempty"`
	FinancialBehavior  *FinancialBehavior       `json:"financial_behavior,omitempty"`
}

// DecodeRaw decodes the analysis oracle's answer. Malformed payloads are
// rejected with an extraction error rather than passed through.
func DecodeRaw(text string) (*Raw, error) {
	var raw Raw
	if err := oracle.Decode(text, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// Clone returns a deep copy of r.
func (r *Raw) Clone() *Raw {
	if r == nil {
		return nil
	}
	out := &Raw{
		CategoryBreakdown: r.CategoryBreakdown.Clone(),
	}
	if r.BasicFeatures != nil {
		bf := *r.BasicFeatures
		out.BasicFeatures = &bf
	}
	if r.TransactionMetrics != nil {
		tm := *r.TransactionMetrics
		out.TransactionMetrics = &tm
	}
	if r.Transactions != nil {
		out.Transactions = append([]domain.Transaction(nil), r.Transactions...)
	}
	if r.TopCategories != nil {
		out.TopCategories = append([]string(nil), r.TopCategories...)
	}
	if r.PersonaIndicators != nil {
		p := *r.PersonaIndicators
		out.PersonaIndicators = &p
	}
	if r.FinancialBehavior != nil {
		fb := *r.FinancialBehavior
		out.FinancialBehavior = &fb
	}
	return out
}
