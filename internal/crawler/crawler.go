// Package crawler analyzes a directory of card product documents and keeps
// the card catalog up to date.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/oracle"
	"github.com/dvloznov/card-advisor/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize processes one file at a time.
	DefaultBatchSize = 1
	// DefaultDelay is the pause between batches.
	DefaultDelay = 2 * time.Second
	// rewardCategoryPreview is how many reward categories are listed in rewardCategories.
	rewardCategoryPreview = 5
)

// CardResult is the catalog data extracted from one card document.
type CardResult struct {
	CardName            string                      `json:"cardName"`
	BankName            string                      `json:"bankName,omitempty"`
	Image               string                      `json:"image,omitempty"`
	FeeStructure        *domain.FeeStructure        `json:"feeStructure,omitempty"`
	EligibilityCriteria *domain.EligibilityCriteria `json:"eligibilityCriteria,omitempty"`
	RewardSummary       []domain.RewardCategory     `json:"rewardSummary,omitempty"`
	Benefits            []domain.Benefit            `json:"benefits,omitempty"`
	RewardCategories    []string                    `json:"rewardCategories,omitempty"`
}

// Entry converts the result into an active catalog entry.
func (r *CardResult) Entry(analyzedAt time.Time) *domain.CardCatalogEntry {
	return &domain.CardCatalogEntry{
		CardName:            r.CardName,
		BankName:            r.BankName,
		FeeStructure:        r.FeeStructure,
		EligibilityCriteria: r.EligibilityCriteria,
		RewardSummary:       r.RewardSummary,
		Benefits:            r.Benefits,
		IsActive:            true,
		AnalyzedAt:          analyzedAt,
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a Processor.
type Option func(*Processor)

// WithBatchSize sets how many files are analyzed concurrently per batch.
func WithBatchSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithDelay sets the pause between batches.
func WithDelay(d time.Duration) Option {
	return func(p *Processor) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithSleeper replaces the function used to wait between batches.
func WithSleeper(s Sleeper) Option {
	return func(p *Processor) { p.sleep = s }
}

// Processor walks a directory of card PDFs and upserts the catalog.
type Processor struct {
	catalog   store.CatalogRepository
	oracle    oracle.Generator
	log       zerolog.Logger
	batchSize int
	delay     time.Duration
	sleep     Sleeper
	now       func() time.Time
}

// NewProcessor creates a Processor.
func NewProcessor(catalog store.CatalogRepository, gen oracle.Generator, log zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{
		catalog:   catalog,
		oracle:    gen,
		log:       log,
		batchSize: DefaultBatchSize,
		delay:     DefaultDelay,
		sleep:     SleepContext,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessDirectory analyzes every .pdf file in dir, batch by batch, in name
// order. A file that fails becomes a nil entry at its position. A missing
// directory is an error; a directory without PDFs gives an empty list.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) ([]*CardResult, error) {
	files, err := listPDFs(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		p.log.Warn().Str("dir", dir).Msg("no PDF files found in directory")
		return []*CardResult{}, nil
	}

	totalBatches := (len(files) + p.batchSize - 1) / p.batchSize
	p.log.Info().Str("dir", dir).Int("files", len(files)).Int("batches", totalBatches).Msg("processing directory")

	results := make([]*CardResult, len(files))
	succeeded := 0
	for start := 0; start < len(files); start += p.batchSize {
		end := min(start+p.batchSize, len(files))
		p.log.Info().Int("batch", start/p.batchSize+1).Int("of", totalBatches).Msg("processing batch")

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				res, err := p.AnalyzeFile(gctx, files[i])
				if err != nil {
					p.log.Error().Err(err).Str("file", files[i]).Msg("failed to process card document")
					return nil
				}
				results[i] = res
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ProcessDirectory: %w", err)
		}

		if end < len(files) {
			if err := p.sleep(ctx, p.delay); err != nil {
				return nil, fmt.Errorf("ProcessDirectory: waiting between batches: %w", err)
			}
		}
	}

	for _, r := range results {
		if r != nil {
			succeeded++
		}
	}
	p.log.Info().Int("succeeded", succeeded).Int("files", len(files)).Msg("directory processed")
	return results, nil
}

// listPDFs returns the .pdf files of dir, matched case-insensitively.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound("directory %s", dir)
		}
		return nil, fmt.Errorf("listPDFs: reading %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// AnalyzeFile extracts the catalog data of one card document and upserts it.
func (p *Processor) AnalyzeFile(ctx context.Context, path string) (*CardResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("AnalyzeFile: reading %s: %w", path, err)
	}

	text, err := p.oracle.Generate(ctx, oracle.Request{
		Prompt:      oracle.CardExtractionPrompt(),
		Attachments: []oracle.Attachment{{MIMEType: oracle.MIMETypePDF, Data: data}},
		JSON:        true,
	})
	if err != nil {
		return nil, apperr.Dependency("AnalyzeFile: oracle", err)
	}

	res, err := decodeCard(text)
	if err != nil {
		return nil, fmt.Errorf("AnalyzeFile: %s: %w", filepath.Base(path), err)
	}
	p.validate(res)

	if err := p.catalog.UpsertCard(ctx, res.Entry(p.now())); err != nil {
		return nil, apperr.Dependency("AnalyzeFile: upserting card", err)
	}

	p.log.Info().Str("file", path).Str("card", res.CardName).Msg("card document analyzed")
	return res, nil
}

// decodeCard decodes a card-extraction answer. The card name is the catalog
// key, so an answer without one is rejected.
func decodeCard(text string) (*CardResult, error) {
	var res CardResult
	if err := oracle.Decode(text, &res); err != nil {
		return nil, err
	}
	res.CardName = strings.TrimSpace(res.CardName)
	if res.CardName == "" {
		return nil, apperr.Extraction("card document has no cardName")
	}
	return &res, nil
}

// validate warns about missing sections and lists the first reward categories.
func (p *Processor) validate(res *CardResult) {
	if res.FeeStructure == nil {
		p.log.Warn().Str("card", res.CardName).Str("section", "feeStructure").Msg("missing required section")
	}
	if res.EligibilityCriteria == nil {
		p.log.Warn().Str("card", res.CardName).Str("section", "eligibilityCriteria").Msg("missing required section")
	}
	if res.RewardSummary == nil {
		p.log.Warn().Str("card", res.CardName).Str("section", "rewardSummary").Msg("missing required section")
	}
	if res.Benefits == nil {
		p.log.Warn().Str("card", res.CardName).Str("section", "benefits").Msg("missing required section")
	}

	if len(res.RewardSummary) == 0 {
		return
	}
	n := min(len(res.RewardSummary), rewardCategoryPreview)
	res.RewardCategories = make([]string, n)
	for i := 0; i < n; i++ {
		name := res.RewardSummary[i].RewardCategory
		if name == "" {
			name = domain.UnknownLabel
		}
		res.RewardCategories[i] = name
	}
}
