package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/card-advisor/internal/api/middleware"
	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/crawler"
	"github.com/dvloznov/card-advisor/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// DirectoryProcessor is implemented by crawler.Processor.
type DirectoryProcessor interface {
	ProcessDirectory(ctx context.Context, dir string) ([]*crawler.CardResult, error)
}

// CatalogHandler runs card document crawls, inline or as jobs.
type CatalogHandler struct {
	processor DirectoryProcessor
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewCatalogHandler creates a new catalog handler. publisher may be nil,
// in which case async crawls are rejected.
func NewCatalogHandler(processor DirectoryProcessor, publisher jobs.Publisher, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{processor: processor, publisher: publisher, log: log}
}

type crawlRequest struct {
	DirectoryPath string `json:"directoryPath"`
	OutputPath    string `json:"outputPath,omitempty"`
}

func (c crawlRequest) validate() error {
	if strings.TrimSpace(c.DirectoryPath) == "" {
		return apperr.Precondition("directoryPath is required")
	}
	return nil
}

// AnalyzeDirectory handles POST /analyze-directory
//
// The response lists one entry per PDF in the directory; files that could
// not be analyzed are null.
func (h *CatalogHandler) AnalyzeDirectory(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	results, err := h.processor.ProcessDirectory(r.Context(), req.DirectoryPath)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, results)
}

// SaveResults handles POST /save-results
func (h *CatalogHandler) SaveResults(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Results    []*crawler.CardResult `json:"results"`
		OutputPath string                `json:"outputPath"`
	}
	if err := decodeJSONLimit(w, r, &req, maxResultsBody); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	summary, err := crawler.SaveResults(req.Results, req.OutputPath)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}
	h.log.Info().Str("output_path", req.OutputPath).Int("records", summary.TotalRecords).Msg("crawl results saved")
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// EnqueueCrawl handles POST /analyze-directory/jobs
func (h *CatalogHandler) EnqueueCrawl(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "job queue is not configured")
		return
	}

	var req crawlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	job := &jobs.CrawlDirectoryJob{
		DirectoryPath: req.DirectoryPath,
		OutputPath:    req.OutputPath,
	}
	if err := h.publisher.PublishCrawlDirectory(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue crawl job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue crawl job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("dir", req.DirectoryPath).Msg("Crawl job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
