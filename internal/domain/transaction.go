package domain

// Transaction is one card transaction as reported by the analysis oracle.
// The same shape is used in the oracle payload and in a persisted
// StatementAnalysis.
type Transaction struct {
	Date     string  `json:"date"`     // YYYY-MM-DD as printed on the statement
	Merchant string  `json:"merchant"` // merchant name
	Amount   float64 `json:"amount"`   // positive spend
	Category string  `json:"category"` // spend category label
}
