package domain

import "time"

// BasicFeatures holds the card limits and dues read from a statement.
// Only CreditLimit is guaranteed; the rest depend on what the oracle found.
type BasicFeatures struct {
	CreditLimit            float64  `json:"creditLimit"`
	AvailableCredit        *float64 `json:"availableCredit,omitempty"`
	CashLimit              *float64 `json:"cashLimit,omitempty"`
	AvailableCash          *float64 `json:"availableCash,omitempty"`
	CreditUtilizationRatio *float64 `json:"creditUtilizationRatio,omitempty"`
	TotalAmountDue         *float64 `json:"totalAmountDue,omitempty"`
	MinimumAmountDue       *float64 `json:"minimumAmountDue,omitempty"`
	RewardPoints           *float64 `json:"rewardPoints,omitempty"`
	BankName               string   `json:"bankName,omitempty"`
	CardType               string   `json:"cardType,omitempty"`
	StatementDate          string   `json:"statementDate,omitempty"`
	PaymentDueDate         string   `json:"paymentDueDate,omitempty"`
}

// TransactionMetrics summarises the statement period.
type TransactionMetrics struct {
	TransactionCount         int     `json:"transactionCount"`
	TotalSpend               float64 `json:"totalSpend"`
	AverageTransactionAmount float64 `json:"averageTransactionAmount"`
	LargestTransaction       float64 `json:"largestTransaction"`
	SmallestTransaction      float64 `json:"smallestTransaction"`
}

// PersonaIndicators are the ten boolean traits inferred from spending.
type PersonaIndicators struct {
	HighSpender         bool `json:"highSpender"`
	RewardOptimizer     bool `json:"rewardOptimizer"`
	DigitalNative       bool `json:"digitalNative"`
	FoodEnthusiast      bool `json:"foodEnthusiast"`
	TravelLover         bool `json:"travelLover"`
	Shopper             bool `json:"shopper"`
	EntertainmentSeeker bool `json:"entertainmentSeeker"`
	HealthConscious     bool `json:"healthConscious"`
	FamilyOriented      bool `json:"familyOriented"`
	TechSavvy           bool `json:"techSavvy"`
}

// FinancialBehavior carries qualitative labels such as LOW/MEDIUM/HIGH.
type FinancialBehavior struct {
	UtilizationLevel string `json:"utilizationLevel,omitempty"`
	PaymentBehavior  string `json:"paymentBehavior,omitempty"`
	SpendingPattern  string `json:"spendingPattern,omitempty"`
}

// StatementAnalysis is the persisted result of one successful statement
// analysis. Records are create-only; the latest per customer wins.
type StatementAnalysis struct {
	ID                 string             `json:"id"`
	CustomerID         string             `json:"customerId"`
	DocumentID         string             `json:"documentId"`
	BasicFeatures      BasicFeatures      `json:"basicFeatures"`
	TransactionMetrics TransactionMetrics `json:"transactionMetrics"`
	CategoryBreakdown  CategoryBreakdown  `json:"categoryBreakdown"`
	Transactions       []Transaction      `json:"transactions,omitempty"`
	TopCategories      []string           `json:"topCategories"`
	PersonaIndicators  *PersonaIndicators `json:"userPersonaIndicators,omitempty"`
	FinancialBehavior  *FinancialBehavior `json:"financialBehavior,omitempty"`
	AnalyzedAt         time.Time          `json:"analyzedAt"`
}
