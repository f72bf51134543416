package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/dvloznov/card-advisor/internal/analysis"
	"github.com/dvloznov/card-advisor/internal/api"
	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/crawler"
	"github.com/dvloznov/card-advisor/internal/customer"
	"github.com/dvloznov/card-advisor/internal/jobs"
	jobsmem "github.com/dvloznov/card-advisor/internal/jobs/inmemory"
	"github.com/dvloznov/card-advisor/internal/logger"
	"github.com/dvloznov/card-advisor/internal/oracle"
	"github.com/dvloznov/card-advisor/internal/pipeline"
	"github.com/dvloznov/card-advisor/internal/recommend"
	"github.com/dvloznov/card-advisor/internal/store/inmemory"
)

const testToken = "test-token"

// MockGenerator is a mock implementation of oracle.Generator.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req oracle.Request) (string, error)
}

func (m *MockGenerator) Generate(ctx context.Context, req oracle.Request) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", errors.New("unexpected oracle call")
}

// MockAnalyzer is a mock implementation of handlers.StatementAnalyzer.
type MockAnalyzer struct {
	ProcessFunc func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

func (m *MockAnalyzer) Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return m.ProcessFunc(ctx, req)
}

// MockProcessor is a mock implementation of handlers.DirectoryProcessor.
type MockProcessor struct {
	ProcessDirectoryFunc func(ctx context.Context, dir string) ([]*crawler.CardResult, error)
}

func (m *MockProcessor) ProcessDirectory(ctx context.Context, dir string) ([]*crawler.CardResult, error) {
	return m.ProcessDirectoryFunc(ctx, dir)
}

// MockPublisher is a mock implementation of jobs.Publisher.
type MockPublisher struct {
	Published []*jobs.CrawlDirectoryJob
}

func (m *MockPublisher) PublishCrawlDirectory(ctx context.Context, job *jobs.CrawlDirectoryJob) error {
	job.JobID = fmt.Sprintf("job-%d", len(m.Published)+1)
	job.Status = jobs.JobStatusPending
	m.Published = append(m.Published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

type testServer struct {
	handler   http.Handler
	store     *inmemory.Store
	analyzer  *MockAnalyzer
	processor *MockProcessor
	publisher *MockPublisher
	jobs      *jobsmem.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Nop()
	st := inmemory.NewStore()

	ts := &testServer{
		store: st,
		analyzer: &MockAnalyzer{ProcessFunc: func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
			return nil, errors.New("unexpected pipeline call")
		}},
		processor: &MockProcessor{ProcessDirectoryFunc: func(ctx context.Context, dir string) ([]*crawler.CardResult, error) {
			return nil, errors.New("unexpected crawl")
		}},
		publisher: &MockPublisher{},
		jobs:      jobsmem.NewStore(),
	}

	ts.handler = api.NewRouter(api.Deps{
		Customers:  customer.NewService(st, testToken, log),
		Statements: ts.analyzer,
		Recommend:  recommend.NewAggregator(st, &MockGenerator{}, log),
		Crawler:    ts.processor,
		Publisher:  ts.publisher,
		Jobs:       ts.jobs,
		Limits:     pipeline.Limits{MaxFiles: 5, MaxFileBytes: 1 << 10},
		Logger:     log,
	}, api.Options{Prefix: "/api", AuthToken: testToken})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/health", "/api/health"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestQuestionnaireEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/authenticate", "", map[string]string{"token": "link-abc"})
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticate = %d: %s", rec.Code, rec.Body.String())
	}
	var auth customer.AuthenticateResult
	decodeBody(t, rec, &auth)
	if !auth.IsValidLink || auth.APIToken != testToken || auth.CustomerID == "" {
		t.Fatalf("authenticate response = %+v", auth)
	}

	rec = ts.do(t, http.MethodPost, "/api/questionnaire", "", map[string]any{
		"customerId": auth.CustomerID,
		"spendCategory": []map[string]any{
			{"categoryName": "Dining", "categoryAmount": "₹5,000", "subCategory": []string{"restaurants"}},
			{"categoryName": "Travel", "categoryAmount": 12000},
		},
		"incomeRange": "10-20L",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("questionnaire = %d: %s", rec.Code, rec.Body.String())
	}
	var res customer.QuestionnaireResult
	decodeBody(t, rec, &res)
	if res.Message != customer.QuestionnaireSubmitted || res.ID == "" {
		t.Errorf("questionnaire response = %+v", res)
	}

	q, err := ts.store.LatestQuestionnaire(context.Background(), auth.CustomerID)
	if err != nil || q == nil {
		t.Fatalf("questionnaire not stored: %v, %v", q, err)
	}
	if q.ID != res.ID || len(q.SpendCategories) != 2 {
		t.Errorf("stored questionnaire = %+v", q)
	}
}

func TestQuestionnaireFailures(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty body", nil, http.StatusBadRequest},
		{"missing customer", map[string]any{"spendCategory": []map[string]any{{"categoryName": "Dining"}}}, http.StatusBadRequest},
		{"unknown customer", map[string]any{"customerId": "nobody", "spendCategory": []map[string]any{{"categoryName": "Dining"}}}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/questionnaire", "", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestBearerAuth(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"customerId": "nobody"}

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"raw token", testToken, http.StatusNotFound},
		{"bearer token", "Bearer " + testToken, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/get-recommendations", tt.auth, body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetRecommendations_NoAnalysis(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/authenticate", "", map[string]string{"token": "link"})
	var auth customer.AuthenticateResult
	decodeBody(t, rec, &auth)

	rec = ts.do(t, http.MethodPost, "/api/get-recommendations", "Bearer "+testToken, map[string]any{
		"customerId": auth.CustomerID,
		"cardName":   []string{"Some Card"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] == "" {
		t.Error("expected an error message")
	}
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for field, names := range files {
		for _, name := range names {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
			h.Set("Content-Type", "application/pdf")
			part, err := mw.CreatePart(h)
			if err != nil {
				t.Fatalf("CreatePart: %v", err)
			}
			part.Write([]byte("%PDF-1.4 " + name))
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestStatementUpload(t *testing.T) {
	ts := newTestServer(t)

	var got pipeline.Request
	ts.analyzer.ProcessFunc = func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
		got = req
		return &pipeline.Result{
			Computed:    pipeline.ComputedAnalysis{Analysis: &analysis.Raw{TopCategories: []string{"Dining"}}},
			Persistence: pipeline.PersistenceOutcome{DocumentID: "doc-1", AnalysisID: "an-1"},
		}, nil
	}

	body, contentType := multipartBody(t,
		map[string]string{"customerId": "cust-1", "cardBank": "HDFC"},
		map[string][]string{"files": {"jan.pdf", "feb.pdf"}, "file": {"mar.pdf"}},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/recommendation", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got.CustomerID != "cust-1" || got.CardBank != "HDFC" || got.CardName != "" {
		t.Errorf("pipeline request = %+v", got)
	}
	if len(got.Files) != 3 {
		t.Fatalf("files = %d, want 3", len(got.Files))
	}
	if got.Files[0].ContentType != "application/pdf" || len(got.Files[0].Data) == 0 {
		t.Errorf("first file = %+v", got.Files[0])
	}
	if rec.Header().Get("X-Analysis-ID") != "an-1" {
		t.Errorf("X-Analysis-ID = %q", rec.Header().Get("X-Analysis-ID"))
	}

	var out map[string]any
	decodeBody(t, rec, &out)
	if top, ok := out["top_categories"].([]any); !ok || len(top) != 1 {
		t.Errorf("response = %v", out)
	}
}

func TestStatementUpload_TooManyFiles(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartBody(t,
		map[string]string{"customerId": "cust-1"},
		map[string][]string{"files": {"1.pdf", "2.pdf", "3.pdf", "4.pdf", "5.pdf", "6.pdf"}},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/recommendation", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", testToken)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestStatementUpload_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no text", apperr.Extraction("no readable text"), http.StatusUnprocessableEntity},
		{"timeout", fmt.Errorf("analyze: %w", apperr.ErrOracleTimeout), http.StatusGatewayTimeout},
		{"oracle down", apperr.Dependency("oracle", errors.New("503")), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.analyzer.ProcessFunc = func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
				return nil, tt.err
			}

			body, contentType := multipartBody(t,
				map[string]string{"customerId": "cust-1"},
				map[string][]string{"files": {"jan.pdf"}},
			)
			req := httptest.NewRequest(http.MethodPost, "/api/recommendation", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", testToken)
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAnalyzeDirectory(t *testing.T) {
	ts := newTestServer(t)
	ts.processor.ProcessDirectoryFunc = func(ctx context.Context, dir string) ([]*crawler.CardResult, error) {
		if dir == "/missing" {
			return nil, apperr.NotFound("directory %s", dir)
		}
		return []*crawler.CardResult{{CardName: "Millennia"}, nil}, nil
	}

	rec := ts.do(t, http.MethodPost, "/api/analyze-directory", testToken, map[string]string{"directoryPath": "/cards"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var results []*crawler.CardResult
	decodeBody(t, rec, &results)
	if len(results) != 2 || results[0].CardName != "Millennia" || results[1] != nil {
		t.Errorf("results = %+v", results)
	}

	if rec := ts.do(t, http.MethodPost, "/api/analyze-directory", testToken, map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing directoryPath = %d, want 400", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/analyze-directory", testToken, map[string]string{"directoryPath": "/missing"}); rec.Code != http.StatusNotFound {
		t.Errorf("missing directory = %d, want 404", rec.Code)
	}
}

func TestSaveResults(t *testing.T) {
	ts := newTestServer(t)
	out := t.TempDir() + "/nested/results.json"

	rec := ts.do(t, http.MethodPost, "/api/save-results", testToken, map[string]any{
		"results":    []any{map[string]string{"cardName": "Regalia"}, nil},
		"outputPath": out,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var summary crawler.SaveSummary
	decodeBody(t, rec, &summary)
	if !summary.Success || summary.TotalRecords != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestSaveResults_AcceptsLargeCrawlOutput(t *testing.T) {
	ts := newTestServer(t)
	out := t.TempDir() + "/results.json"

	results := make([]map[string]string, 2000)
	for i := range results {
		results[i] = map[string]string{"cardName": fmt.Sprintf("Card %04d %s", i, strings.Repeat("x", 1000))}
	}
	body := map[string]any{"results": results, "outputPath": out}

	rec := ts.do(t, http.MethodPost, "/api/save-results", testToken, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var summary crawler.SaveSummary
	decodeBody(t, rec, &summary)
	if summary.TotalRecords != len(results) {
		t.Errorf("totalRecords = %d, want %d", summary.TotalRecords, len(results))
	}

	// The same body size is still refused on an ordinary JSON route.
	rec = ts.do(t, http.MethodPost, "/api/get-recommendations", testToken, map[string]any{"customerId": "c", "preferences": results})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized get-recommendations body = %d, want 400", rec.Code)
	}
}

func TestCrawlJobs(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/analyze-directory/jobs", testToken, map[string]string{"directoryPath": "/cards", "outputPath": "/tmp/out.json"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]string
	decodeBody(t, rec, &accepted)
	if accepted["job_id"] != "job-1" || accepted["status"] != string(jobs.JobStatusPending) {
		t.Errorf("response = %v", accepted)
	}
	if len(ts.publisher.Published) != 1 || ts.publisher.Published[0].OutputPath != "/tmp/out.json" {
		t.Errorf("published = %+v", ts.publisher.Published)
	}

	if err := ts.jobs.SaveJob(context.Background(), ts.publisher.Published[0]); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs/job-1", testToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job = %d: %s", rec.Code, rec.Body.String())
	}
	var job jobs.CrawlDirectoryJob
	decodeBody(t, rec, &job)
	if job.DirectoryPath != "/cards" {
		t.Errorf("job = %+v", job)
	}

	if rec := ts.do(t, http.MethodGet, "/api/jobs/nope", testToken, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job = %d, want 404", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs?status=pending&limit=10", testToken, nil)
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}
}

func TestRecoveryReturns500(t *testing.T) {
	ts := newTestServer(t)
	ts.analyzer.ProcessFunc = func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
		panic("boom")
	}

	body, contentType := multipartBody(t, map[string]string{"customerId": "c"}, map[string][]string{"files": {"a.pdf"}})
	req := httptest.NewRequest(http.MethodPost, "/api/recommendation", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", testToken)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
