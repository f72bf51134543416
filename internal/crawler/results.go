package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/card-advisor/internal/apperr"
)

// SaveSummary is returned by SaveResults.
type SaveSummary struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	TotalRecords int    `json:"totalRecords"`
}

// SaveResults writes results to outputPath as an indented JSON array,
// creating parent directories as needed. Nil entries are written as null.
func SaveResults(results []*CardResult, outputPath string) (SaveSummary, error) {
	if outputPath == "" {
		return SaveSummary{}, apperr.Precondition("outputPath is required")
	}
	if results == nil {
		results = []*CardResult{}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return SaveSummary{}, fmt.Errorf("SaveResults: creating directory: %w", err)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return SaveSummary{}, fmt.Errorf("SaveResults: encoding results: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return SaveSummary{}, fmt.Errorf("SaveResults: writing %s: %w", outputPath, err)
	}

	return SaveSummary{
		Success:      true,
		Message:      fmt.Sprintf("Results saved successfully to %s", outputPath),
		TotalRecords: len(results),
	}, nil
}
