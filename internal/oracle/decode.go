package oracle

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/dvloznov/card-advisor/internal/apperr"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanJSON strips reasoning blocks, Markdown fences and surrounding prose
// from a model answer and returns the text between the first '{' and the
// last '}'. It returns an extraction error when no object is present.
func CleanJSON(raw string) (string, error) {
	s := thinkBlock.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(strings.Trim(s, "`"))

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", apperr.Extraction("oracle response contains no JSON object")
	}
	return s[start : end+1], nil
}

// Decode cleans raw and decodes it into dst. Malformed JSON, a type mismatch
// or trailing data are all rejected with an extraction error.
func Decode(raw string, dst any) error {
	clean, err := CleanJSON(raw)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	if err := dec.Decode(dst); err != nil {
		return apperr.Extraction("decoding oracle JSON: %v", err)
	}
	if dec.More() {
		return apperr.Extraction("decoding oracle JSON: unexpected trailing data")
	}
	return nil
}
