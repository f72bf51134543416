// Package oracle wraps the LLM used for statement analysis, card extraction and
// card scoring. A single client is built at startup and injected into every
// component that needs it.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// MIMETypePDF is the attachment type for statement and card documents.
const MIMETypePDF = "application/pdf"

// Attachment is a document sent inline with a prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Request is one prompt sent to the oracle.
type Request struct {
	// Prompt is the instruction text.
	Prompt string
	// Attachments are sent after the prompt in the same user turn.
	Attachments []Attachment
	// JSON asks the model for an application/json response.
	JSON bool
}

// Generator returns the raw text answer for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeminiClient is the Generator backed by the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewGeminiClient creates a client for the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey, model string, log zerolog.Logger) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("NewGeminiClient: gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	return &GeminiClient{client: client, model: model, log: log}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Generate implements Generator.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("GeminiClient.Generate: prompt must not be empty")
	}

	parts := []*genai.Part{{Text: prompt}}
	for _, att := range req.Attachments {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: att.MIMEType,
				Data:     att.Data,
			},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	var cfg *genai.GenerateContentConfig
	if req.JSON {
		cfg = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0.1),
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("GeminiClient.Generate: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("GeminiClient.Generate: empty response from model")
	}

	c.log.Debug().
		Str("model", c.model).
		Int("attachments", len(req.Attachments)).
		Int("response_chars", len(text)).
		Msg("Oracle call completed")

	return text, nil
}

var _ Generator = (*GeminiClient)(nil)
