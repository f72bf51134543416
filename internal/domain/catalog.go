package domain

import "time"

// FeeStructure lists the fees of a card product as free text.
type FeeStructure struct {
	JoiningFee          string `json:"joiningFee,omitempty"`
	AnnualFee           string `json:"annualFee,omitempty"`
	RenewalFee          string `json:"renewalFee,omitempty"`
	RenewalFeeWaiver    string `json:"renewalFeeWaiver,omitempty"`
	ForexMarkup         string `json:"forexMarkup,omitempty"`
	FuelSurchargeWaiver string `json:"fuelSurchargeWaiver,omitempty"`
	Others              string `json:"others,omitempty"`
}

// EligibilityCriteria describes who may apply for a card.
type EligibilityCriteria struct {
	Age       string `json:"age,omitempty"`
	IncomeITR string `json:"income_trv,omitempty"`
	Others    string `json:"others,omitempty"`
}

// RewardStructure is one earn rule within a reward category.
type RewardStructure struct {
	ValueForCalculation string `json:"valueForCalculation"`
	Notes               string `json:"notes,omitempty"`
}

// RewardCategory groups earn rules, e.g. DINING or FUEL.
type RewardCategory struct {
	RewardCategory   string            `json:"rewardCategory"`
	RewardStructures []RewardStructure `json:"rewardStructures"`
}

// Benefit is a headline card benefit.
type Benefit struct {
	Title string `json:"title"`
}

// CardCatalogEntry is a card product known to the recommender. CardName is unique.
type CardCatalogEntry struct {
	CardName            string               `json:"cardName"`
	BankName            string               `json:"bankName,omitempty"`
	FeeStructure        *FeeStructure        `json:"feeStructure,omitempty"`
	EligibilityCriteria *EligibilityCriteria `json:"eligibilityCriteria,omitempty"`
	RewardSummary       []RewardCategory     `json:"rewardSummary,omitempty"`
	Benefits            []Benefit            `json:"benefits,omitempty"`
	IsActive            bool                 `json:"isActive"`
	AnalyzedAt          time.Time            `json:"analyzedAt"`
}
