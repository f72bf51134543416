package domain

import "time"

// SpendCategory is one category the user declared in a questionnaire.
type SpendCategory struct {
	CategoryName   string   `json:"categoryName"`
	CategoryAmount *float64 `json:"categoryAmount,omitempty"`
	CategoryScore  *float64 `json:"categoryScore,omitempty"`
	SubCategories  []string `json:"subCategory,omitempty"`
}

// Questionnaire is a single submission. Submissions accumulate, they are never merged.
type Questionnaire struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	SpendCategories []SpendCategory `json:"spendCategory"`
	IncomeRange     string          `json:"incomeRange,omitempty"`
	HasCreditCard   *bool           `json:"hasCreditCard,omitempty"`
	CreditLimit     *float64        `json:"creditLimit,omitempty"`
	SubmittedAt     time.Time       `json:"submittedAt"`
}
