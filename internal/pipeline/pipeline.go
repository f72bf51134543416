// Package pipeline runs uploaded credit-card statements through text
// extraction, the analysis oracle and the normalizer, then records the batch
// and its analysis in the Entity Store.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/card-advisor/internal/analysis"
	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/objectstore"
	"github.com/dvloznov/card-advisor/internal/oracle"
	"github.com/dvloznov/card-advisor/internal/pdftext"
	"github.com/dvloznov/card-advisor/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxFiles is the largest batch accepted by one call.
	DefaultMaxFiles = 5
	// DefaultMaxFileBytes is the per-file size limit.
	DefaultMaxFileBytes = 10 << 20
)

// File is one uploaded statement.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Request is one statement upload batch.
type Request struct {
	CustomerID string
	CardBank   string
	CardName   string
	Files      []File
}

// FileError records a file that was skipped.
type FileError struct {
	Name string
	Err  error
}

// ComputedAnalysis is what the caller gets back: the normalized analysis and
// which files contributed to it.
type ComputedAnalysis struct {
	Analysis       *analysis.Raw
	ProcessedFiles []string
	SkippedFiles   []FileError
}

// PersistenceOutcome reports the best-effort write that follows a successful
// analysis. A failed write never fails the call.
type PersistenceOutcome struct {
	DocumentID string
	AnalysisID string
	FilePaths  []string
	Err        error
}

// Saved reports whether both the upload record and the analysis were written.
func (o PersistenceOutcome) Saved() bool {
	return o.Err == nil && o.AnalysisID != ""
}

// Result pairs the computed analysis with what happened when storing it.
type Result struct {
	Computed    ComputedAnalysis
	Persistence PersistenceOutcome
}

// Limits bounds a single upload batch.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
}

// Deps are the collaborators of a DocumentPipeline. Objects may be nil, in
// which case statement files are not kept.
type Deps struct {
	Users     store.UserRepository
	Documents store.DocumentRepository
	Analyses  store.AnalysisRepository
	Objects   objectstore.Store
	Extractor pdftext.Extractor
	Oracle    oracle.Generator
	Logger    zerolog.Logger
}

// DocumentPipeline analyzes statement batches.
type DocumentPipeline struct {
	pipeline  *Pipeline
	documents store.DocumentRepository
	objects   objectstore.Store
	log       zerolog.Logger
}

// NewDocumentPipeline wires the standard statement steps.
func NewDocumentPipeline(deps Deps, limits Limits) *DocumentPipeline {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = DefaultMaxFiles
	}
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = DefaultMaxFileBytes
	}

	now := func() time.Time { return time.Now().UTC() }

	return &DocumentPipeline{
		pipeline: NewPipeline(
			&ValidateRequestStep{Limits: limits},
			&CheckCustomerStep{Users: deps.Users},
			&ExtractTextStep{Objects: deps.Objects, Extractor: deps.Extractor, Log: deps.Logger, Now: now},
			&AnalyzeStatementStep{Oracle: deps.Oracle},
			&NormalizeStep{Normalizer: analysis.NewNormalizer(analysis.DefaultTopCategories, deps.Logger)},
			&PersistStep{Documents: deps.Documents, Analyses: deps.Analyses, Log: deps.Logger, Now: now, NewID: uuid.NewString},
		),
		documents: deps.Documents,
		objects:   deps.Objects,
		log:       deps.Logger,
	}
}

// Process runs one batch. The returned error carries an apperr kind.
func (p *DocumentPipeline) Process(ctx context.Context, req Request) (*Result, error) {
	state := &PipelineState{Request: req, BatchID: uuid.NewString()}

	if err := p.pipeline.Execute(ctx, state); err != nil {
		p.log.Error().Err(err).Str("customer_id", req.CustomerID).Msg("statement analysis failed")
		return nil, fmt.Errorf("Process: %w", err)
	}

	p.log.Info().
		Str("customer_id", req.CustomerID).
		Int("files", len(state.ProcessedFiles)).
		Int("skipped", len(state.Skipped)).
		Bool("saved", state.Persistence.Saved()).
		Msg("statement analysis complete")

	return &Result{
		Computed: ComputedAnalysis{
			Analysis:       state.Analysis,
			ProcessedFiles: state.ProcessedFiles,
			SkippedFiles:   state.Skipped,
		},
		Persistence: state.Persistence,
	}, nil
}

// Reprocess reads back the files of a stored upload and runs them through the
// pipeline again as a new batch, under the same customer and card labels.
func (p *DocumentPipeline) Reprocess(ctx context.Context, documentID string) (*Result, error) {
	if p.objects == nil {
		return nil, apperr.Precondition("statement files are not kept, nothing to reprocess")
	}

	doc, err := p.documents.GetDocumentUpload(ctx, documentID)
	if err != nil {
		return nil, apperr.Dependency("Reprocess: loading document upload", err)
	}
	if doc == nil {
		return nil, apperr.NotFound("document upload %s not found", documentID)
	}
	if len(doc.FilePaths) == 0 {
		return nil, apperr.Precondition("document upload %s has no stored files", documentID)
	}

	files := make([]File, 0, len(doc.FilePaths))
	for _, uri := range doc.FilePaths {
		data, err := p.objects.Get(ctx, uri)
		if err != nil {
			return nil, apperr.Dependency("Reprocess: reading "+uri, err)
		}
		files = append(files, File{
			Name:        objectstore.FilenameFromURI(uri),
			ContentType: oracle.MIMETypePDF,
			Data:        data,
		})
	}

	p.log.Info().Str("document_id", documentID).Int("files", len(files)).Msg("reprocessing stored upload")
	return p.Process(ctx, Request{
		CustomerID: doc.CustomerID,
		CardBank:   doc.CardBank,
		CardName:   doc.CardName,
		Files:      files,
	})
}
