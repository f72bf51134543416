package domain

import "time"

// UnknownLabel is used for card issuer and product labels the caller did not supply.
const UnknownLabel = "Unknown"

// DocumentUpload groups the 1..N statement files submitted together.
type DocumentUpload struct {
	ID             string         `json:"id"`
	CustomerID     string         `json:"customerId"`
	CardBank       string         `json:"cardBank"`
	CardName       string         `json:"cardName"`
	FilePaths      []string       `json:"filePaths"`
	UploadedAt     time.Time      `json:"uploadedAt"`
	OracleResponse map[string]any `json:"oracleResponse,omitempty"`
}
