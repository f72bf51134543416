package analysis

import (
	"time"

	"github.com/dvloznov/card-advisor/internal/domain"
)

// ToStatementAnalysis shapes a normalized payload into the persisted entity.
func ToStatementAnalysis(raw *Raw, id, customerID, documentID string, analyzedAt time.Time) *domain.StatementAnalysis {
	a := &domain.StatementAnalysis{
		ID:                id,
		CustomerID:        customerID,
		DocumentID:        documentID,
		CategoryBreakdown: raw.CategoryBreakdown.Clone(),
		TopCategories:     append([]string{}, raw.TopCategories...),
		AnalyzedAt:        analyzedAt,
	}
	if a.CategoryBreakdown == nil {
		a.CategoryBreakdown = domain.CategoryBreakdown{}
	}

	if bf := raw.BasicFeatures; bf != nil {
		a.BasicFeatures = domain.BasicFeatures{
			CreditLimit:            valueOrZero(bf.CreditLimit),
			AvailableCredit:        bf.AvailableCredit,
			CashLimit:              bf.CashLimit,
			AvailableCash:          bf.AvailableCash,
			CreditUtilizationRatio: bf.CreditUtilizationRatio,
			TotalAmountDue:         bf.TotalAmountDue,
			MinimumAmountDue:       bf.MinimumAmountDue,
			RewardPoints:           bf.RewardPoints,
			BankName:               bf.BankName,
			CardType:               bf.CardType,
			StatementDate:          bf.StatementDate,
			PaymentDueDate:         bf.PaymentDueDate,
		}
	}

	if tm := raw.TransactionMetrics; tm != nil {
		a.TransactionMetrics = domain.TransactionMetrics{
			TransactionCount:         tm.TransactionCount,
			TotalSpend:               tm.TotalSpend,
			AverageTransactionAmount: tm.AverageTransactionAmount,
			LargestTransaction:       tm.LargestTransaction,
			SmallestTransaction:      tm.SmallestTransaction,
		}
	}

	if len(raw.Transactions) > 0 {
		a.Transactions = append([]domain.Transaction(nil), raw.Transactions...)
	}

	if p := raw.PersonaIndicators; p != nil {
		a.PersonaIndicators = &domain.PersonaIndicators{
			HighSpender:         p.HighSpender,
			RewardOptimizer:     p.RewardOptimizer,
			DigitalNative:       p.DigitalNative,
			FoodEnthusiast:      p.FoodEnthusiast,
			TravelLover:         p.TravelLover,
			Shopper:             p.Shopper,
			EntertainmentSeeker: p.EntertainmentSeeker,
			HealthConscious:     p.HealthConscious,
			FamilyOriented:      p.FamilyOriented,
			TechSavvy:           p.TechSavvy,
		}
	}

	if fb := raw.FinancialBehavior; fb != nil {
		a.FinancialBehavior = &domain.FinancialBehavior{
			UtilizationLevel: fb.UtilizationLevel,
			PaymentBehavior:  fb.PaymentBehavior,
			SpendingPattern:  fb.SpendingPattern,
		}
	}

	return a
}

func valueOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
