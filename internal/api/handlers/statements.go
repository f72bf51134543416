package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dvloznov/card-advisor/internal/api/middleware"
	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/pipeline"
	"github.com/rs/zerolog"
)

const (
	// multipartMemory is how much of a form is held in memory before spilling to disk.
	multipartMemory = 32 << 20
	// formOverhead leaves room for boundaries and text fields.
	formOverhead = 1 << 20
)

// StatementAnalyzer is implemented by pipeline.DocumentPipeline.
type StatementAnalyzer interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// StatementsHandler accepts statement uploads.
type StatementsHandler struct {
	analyzer StatementAnalyzer
	limits   pipeline.Limits
	log      zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(analyzer StatementAnalyzer, limits pipeline.Limits, log zerolog.Logger) *StatementsHandler {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = pipeline.DefaultMaxFiles
	}
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = pipeline.DefaultMaxFileBytes
	}
	return &StatementsHandler{analyzer: analyzer, limits: limits, log: log}
}

// Analyze handles POST /recommendation
//
// The form carries 1..MaxFiles PDFs under "files" (or "file") plus
// customerId and optional cardBank and cardName. The response is the
// cleaned analysis; it is returned even when persisting it failed.
func (h *StatementsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	// One extra file's worth so an oversized batch reaches the count check.
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.limits.MaxFiles+1)*h.limits.MaxFileBytes+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		middleware.WriteAppError(w, r, apperr.Precondition("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(headers) > h.limits.MaxFiles {
		middleware.WriteAppError(w, r, apperr.Precondition("at most %d files per upload, got %d", h.limits.MaxFiles, len(headers)))
		return
	}

	files := make([]pipeline.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readFormFile(fh, h.limits.MaxFileBytes)
		if err != nil {
			middleware.WriteAppError(w, r, err)
			return
		}
		files = append(files, f)
	}

	req := pipeline.Request{
		CustomerID: r.FormValue("customerId"),
		CardBank:   r.FormValue("cardBank"),
		CardName:   r.FormValue("cardName"),
		Files:      files,
	}

	res, err := h.analyzer.Process(r.Context(), req)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	if res.Persistence.Saved() {
		w.Header().Set("X-Analysis-ID", res.Persistence.AnalysisID)
		w.Header().Set("X-Document-ID", res.Persistence.DocumentID)
	} else {
		h.log.Warn().Err(res.Persistence.Err).Str("customer_id", req.CustomerID).Msg("analysis returned unsaved")
	}
	middleware.WriteJSON(w, http.StatusOK, res.Computed.Analysis)
}

// readFormFile reads at most limit+1 bytes so the size check downstream
// can see an oversized file without buffering all of it.
func readFormFile(fh *multipart.FileHeader, limit int64) (pipeline.File, error) {
	f, err := fh.Open()
	if err != nil {
		return pipeline.File{}, apperr.Precondition("reading %s: %v", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return pipeline.File{}, fmt.Errorf("readFormFile: reading %s: %w", fh.Filename, err)
	}
	return pipeline.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
