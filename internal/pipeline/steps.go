package pipeline

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/card-advisor/internal/analysis"
	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/objectstore"
	"github.com/dvloznov/card-advisor/internal/oracle"
	"github.com/dvloznov/card-advisor/internal/pdftext"
	"github.com/dvloznov/card-advisor/internal/store"
	"github.com/rs/zerolog"
)

// PipelineStep represents a single step in the statement pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Request        Request
	BatchID        string
	Texts          []string
	ProcessedFiles []string
	FilePaths      []string
	Skipped        []FileError
	RawOutput      string
	Analysis       *analysis.Raw
	Persistence    PersistenceOutcome
}

// Step 1: ValidateRequestStep rejects a batch before any external call.
type ValidateRequestStep struct {
	Limits Limits
}

func (s *ValidateRequestStep) Execute(ctx context.Context, state *PipelineState) error {
	req := state.Request
	if strings.TrimSpace(req.CustomerID) == "" {
		return apperr.Precondition("customerId is required")
	}

	switch n := len(req.Files); {
	case n == 0:
		return apperr.Precondition("no PDF file uploaded")
	case n > s.Limits.MaxFiles:
		return apperr.Precondition("at most %d files per upload, got %d", s.Limits.MaxFiles, n)
	}

	for _, f := range req.Files {
		if !IsPDF(f.Name, f.ContentType) {
			return apperr.Precondition("only PDF files are allowed: %s", f.Name)
		}
		if int64(len(f.Data)) > s.Limits.MaxFileBytes {
			return apperr.Precondition("%s exceeds the %d byte limit", f.Name, s.Limits.MaxFileBytes)
		}
	}
	return nil
}

// IsPDF reports whether a file is a PDF by extension or declared MIME type.
func IsPDF(name, contentType string) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == oracle.MIMETypePDF
}

// Step 2: CheckCustomerStep makes sure the customer exists.
type CheckCustomerStep struct {
	Users store.UserRepository
}

func (s *CheckCustomerStep) Execute(ctx context.Context, state *PipelineState) error {
	user, err := s.Users.GetUser(ctx, state.Request.CustomerID)
	if err != nil {
		return apperr.Dependency("CheckCustomerStep: loading user", err)
	}
	if user == nil {
		return apperr.NotFound("user with customerId %s", state.Request.CustomerID)
	}
	return nil
}

// Step 3: ExtractTextStep stores each file and extracts its text. A file that
// yields no text is logged and skipped.
type ExtractTextStep struct {
	Objects   objectstore.Store
	Extractor pdftext.Extractor
	Log       zerolog.Logger
	Now       func() time.Time
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *PipelineState) error {
	for i, f := range state.Request.Files {
		if uri, ok := s.store(ctx, state, i, f); ok {
			state.FilePaths = append(state.FilePaths, uri)
		}

		text, err := s.Extractor.ExtractText(ctx, f.Data)
		if err == nil && strings.TrimSpace(text) == "" {
			err = pdftext.ErrNoText
		}
		if err != nil {
			s.Log.Warn().Err(err).Str("file", f.Name).Msg("skipping statement file")
			state.Skipped = append(state.Skipped, FileError{Name: f.Name, Err: err})
			continue
		}

		state.Texts = append(state.Texts, text)
		state.ProcessedFiles = append(state.ProcessedFiles, f.Name)
	}

	if err := ctx.Err(); err != nil {
		return apperr.Dependency("ExtractTextStep", err)
	}
	if len(state.Texts) == 0 {
		return apperr.Extraction("no text could be extracted from %d file(s)", len(state.Request.Files))
	}
	return nil
}

func (s *ExtractTextStep) store(ctx context.Context, state *PipelineState, index int, f File) (string, bool) {
	if s.Objects == nil {
		return "", false
	}
	key := objectstore.StatementKey(s.Now(), state.Request.CustomerID, state.BatchID, index, f.Name)
	uri, err := s.Objects.Put(ctx, key, f.Data, oracle.MIMETypePDF)
	if err != nil {
		s.Log.Warn().Err(err).Str("file", f.Name).Msg("could not store statement file")
		return "", false
	}
	return uri, true
}

// Step 4: AnalyzeStatementStep sends the combined text to the oracle once and
// decodes the answer.
type AnalyzeStatementStep struct {
	Oracle oracle.Generator
}

func (s *AnalyzeStatementStep) Execute(ctx context.Context, state *PipelineState) error {
	combined := strings.Join(state.Texts, oracle.DocumentSeparator)

	out, err := s.Oracle.Generate(ctx, oracle.Request{
		Prompt: oracle.StatementAnalysisPrompt(combined),
		JSON:   true,
	})
	if err != nil {
		return apperr.Dependency("AnalyzeStatementStep: oracle", err)
	}
	state.RawOutput = out

	raw, err := analysis.DecodeRaw(out)
	if err != nil {
		return fmt.Errorf("AnalyzeStatementStep: %w", err)
	}
	state.Analysis = raw
	return nil
}

// Step 5: NormalizeStep cleans the decoded analysis.
type NormalizeStep struct {
	Normalizer *analysis.Normalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Analysis = s.Normalizer.Normalize(state.Analysis)
	return nil
}

// Step 6: PersistStep records the upload batch and its analysis. Failures
// land in state.Persistence and are never returned.
type PersistStep struct {
	Documents store.DocumentRepository
	Analyses  store.AnalysisRepository
	Log       zerolog.Logger
	Now       func() time.Time
	NewID     func() string
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Persistence = s.persist(ctx, state)
	if err := state.Persistence.Err; err != nil {
		s.Log.Error().Err(err).Str("customer_id", state.Request.CustomerID).Msg("failed to save statement analysis")
	}
	return nil
}

func (s *PersistStep) persist(ctx context.Context, state *PipelineState) PersistenceOutcome {
	req := state.Request
	now := s.Now()

	doc := &domain.DocumentUpload{
		ID:             s.NewID(),
		CustomerID:     req.CustomerID,
		CardBank:       orUnknown(req.CardBank),
		CardName:       orUnknown(req.CardName),
		FilePaths:      append([]string{}, state.FilePaths...),
		UploadedAt:     now,
		OracleResponse: map[string]any{"status": "processed"},
	}
	out := PersistenceOutcome{FilePaths: doc.FilePaths}

	if err := s.Documents.CreateDocumentUpload(ctx, doc); err != nil {
		out.Err = fmt.Errorf("PersistStep: creating document upload: %w", err)
		return out
	}
	out.DocumentID = doc.ID

	entity := analysis.ToStatementAnalysis(state.Analysis, s.NewID(), req.CustomerID, doc.ID, now)
	if err := s.Analyses.SaveStatementAnalysis(ctx, entity); err != nil {
		out.Err = fmt.Errorf("PersistStep: saving statement analysis: %w", err)
		return out
	}
	out.AnalysisID = entity.ID
	return out
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return domain.UnknownLabel
	}
	return s
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
