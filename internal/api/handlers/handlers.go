package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/card-advisor/internal/api/middleware"
	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/customer"
	"github.com/dvloznov/card-advisor/internal/recommend"
	"github.com/rs/zerolog"
)

const (
	// maxJSONBody caps JSON request bodies.
	maxJSONBody = 1 << 20
	// maxResultsBody caps /save-results, whose body is a whole crawl's output.
	maxResultsBody = 64 << 20
)

// CustomerService is implemented by customer.Service.
type CustomerService interface {
	Authenticate(ctx context.Context, linkToken string) (*customer.AuthenticateResult, error)
	SubmitQuestionnaire(ctx context.Context, req customer.QuestionnaireRequest) (*customer.QuestionnaireResult, error)
}

// Recommender is implemented by recommend.Aggregator.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) ([]recommend.Recommendation, error)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// CustomerHandler handles onboarding endpoints.
type CustomerHandler struct {
	svc CustomerService
	log zerolog.Logger
}

// NewCustomerHandler creates a new customer handler.
func NewCustomerHandler(svc CustomerService, log zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{svc: svc, log: log}
}

// Authenticate handles POST /authenticate
func (h *CustomerHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	res, err := h.svc.Authenticate(r.Context(), req.Token)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// SubmitQuestionnaire handles POST /questionnaire
func (h *CustomerHandler) SubmitQuestionnaire(w http.ResponseWriter, r *http.Request) {
	var req customer.QuestionnaireRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	res, err := h.svc.SubmitQuestionnaire(r.Context(), req)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// RecommendationsHandler serves ranked card recommendations.
type RecommendationsHandler struct {
	recommender Recommender
	log         zerolog.Logger
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(rec Recommender, log zerolog.Logger) *RecommendationsHandler {
	return &RecommendationsHandler{recommender: rec, log: log}
}

// GetRecommendations handles POST /get-recommendations
func (h *RecommendationsHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	recs, err := h.recommender.Recommend(r.Context(), req)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	middleware.WriteJSON(w, http.StatusOK, recs)
}

// decodeJSON reads a single JSON object of at most maxJSONBody bytes from the
// request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeJSONLimit(w, r, dst, maxJSONBody)
}

func decodeJSONLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Precondition("request body is empty")
		}
		return apperr.Precondition("invalid request body: %v", err)
	}
	return nil
}
