package oracle

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed prompts/statement_analysis.md
var statementAnalysisTemplate string

//go:embed prompts/card_extraction.md
var cardExtractionTemplate string

//go:embed prompts/card_ranking.md
var cardRankingTemplate string

//go:embed prompts/transcription.md
var transcriptionTemplate string

// DocumentSeparator joins the text of several statements in one analysis prompt.
const DocumentSeparator = "\n\n--- NEW DOCUMENT ---\n\n"

// StatementAnalysisPrompt asks for the feature set of the given statement text.
func StatementAnalysisPrompt(statementText string) string {
	return strings.ReplaceAll(statementAnalysisTemplate, "{{STATEMENT_TEXT}}", statementText)
}

// CardExtractionPrompt asks for the catalog fields of an attached card document.
func CardExtractionPrompt() string {
	return cardExtractionTemplate
}

// CardRankingPrompt asks for the monthly return of up to maxResults cards from
// cardsJSON, scored against personaJSON. Placeholders are filled in one pass,
// so placeholder text inside the caller's JSON is left as is.
func CardRankingPrompt(personaJSON, cardsJSON string, maxResults int) string {
	return strings.NewReplacer(
		"{{USER_PERSONA}}", personaJSON,
		"{{CARDS_DB}}", cardsJSON,
		"{{MAX_RESULTS}}", strconv.Itoa(maxResults),
	).Replace(cardRankingTemplate)
}

// TranscriptionPrompt asks for the plain text of an attached statement.
func TranscriptionPrompt() string {
	return transcriptionTemplate
}
