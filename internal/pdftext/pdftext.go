// Package pdftext turns statement PDFs into plain text for the analysis prompt.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/dvloznov/card-advisor/internal/oracle"
)

// ErrNoText is returned when a document yields no readable text.
var ErrNoText = errors.New("no text extracted")

// Extractor extracts the text content of a PDF.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// Docconv extracts text locally with docconv (pdftotext under the hood).
type Docconv struct{}

// ExtractText implements Extractor.
func (Docconv) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	res, err := docconv.Convert(bytes.NewReader(pdf), oracle.MIMETypePDF, false)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Transcriber asks the oracle to transcribe the PDF. It handles scanned
// statements that have no text layer.
type Transcriber struct {
	gen oracle.Generator
}

// NewTranscriber creates a Transcriber over gen.
func NewTranscriber(gen oracle.Generator) *Transcriber {
	return &Transcriber{gen: gen}
}

// ExtractText implements Extractor.
func (t *Transcriber) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	text, err := t.gen.Generate(ctx, oracle.Request{
		Prompt:      oracle.TranscriptionPrompt(),
		Attachments: []oracle.Attachment{{MIMEType: oracle.MIMETypePDF, Data: pdf}},
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Chain tries each extractor in order and returns the first non-empty text.
type Chain []Extractor

// ExtractText implements Extractor.
func (c Chain) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(c) == 0 {
		return "", errors.New("pdftext: no extractors configured")
	}

	var errs []error
	for _, e := range c {
		text, err := e.ExtractText(ctx, pdf)
		if err == nil {
			return text, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}

var (
	_ Extractor = Docconv{}
	_ Extractor = (*Transcriber)(nil)
	_ Extractor = Chain(nil)
)
