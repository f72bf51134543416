// Package customer handles onboarding: authenticate creates a user and hands
// back the API token, and questionnaires record declared spending.
package customer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QuestionnaireSubmitted is the message returned for a stored questionnaire.
const QuestionnaireSubmitted = "questionnaire submitted successfully"

// Repository is the part of the Entity Store used here.
type Repository interface {
	store.UserRepository
	store.QuestionnaireRepository
}

// Service implements authenticate and questionnaire submission.
type Service struct {
	repo     Repository
	apiToken string
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a Service handing out apiToken to new users.
func NewService(repo Repository, apiToken string, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		apiToken: apiToken,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// AuthenticateResult is the response of Authenticate.
type AuthenticateResult struct {
	IsValidLink bool   `json:"isValidLink"`
	APIToken    string `json:"apiToken"`
	CustomerID  string `json:"customerId"`
}

// Authenticate creates a new user for a link token. Every non-empty link
// token is accepted.
func (s *Service) Authenticate(ctx context.Context, linkToken string) (*AuthenticateResult, error) {
	if strings.TrimSpace(linkToken) == "" {
		return nil, apperr.Precondition("token is required")
	}

	user := &domain.User{CustomerID: s.newID(), CreatedAt: s.now()}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, apperr.Dependency("Authenticate: creating user", err)
	}

	s.log.Info().Str("customer_id", user.CustomerID).Msg("user created")
	return &AuthenticateResult{
		IsValidLink: true,
		APIToken:    s.apiToken,
		CustomerID:  user.CustomerID,
	}, nil
}

// SpendCategoryInput is one declared category. Amounts and scores may come as
// numbers or numeric strings.
type SpendCategoryInput struct {
	CategoryName   string          `json:"categoryName"`
	CategoryAmount json.RawMessage `json:"categoryAmount,omitempty"`
	CategoryScore  json.RawMessage `json:"categoryScore,omitempty"`
	SubCategory    []string        `json:"subCategory"`
}

// QuestionnaireRequest is the questionnaire body.
type QuestionnaireRequest struct {
	CustomerID    string               `json:"customerId"`
	SpendCategory []SpendCategoryInput `json:"spendCategory"`
	IncomeRange   string               `json:"incomeRange,omitempty"`
	HasCreditCard *bool                `json:"hasCreditCard,omitempty"`
	CreditLimit   json.RawMessage      `json:"creditLimit,omitempty"`
}

// QuestionnaireResult is the response of SubmitQuestionnaire.
type QuestionnaireResult struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// SubmitQuestionnaire stores a new questionnaire for an existing customer.
func (s *Service) SubmitQuestionnaire(ctx context.Context, req QuestionnaireRequest) (*QuestionnaireResult, error) {
	q, err := s.toQuestionnaire(req)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUser(ctx, q.CustomerID)
	if err != nil {
		return nil, apperr.Dependency("SubmitQuestionnaire: loading user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user with customerId %s", q.CustomerID)
	}

	if err := s.repo.CreateQuestionnaire(ctx, q); err != nil {
		return nil, apperr.Dependency("SubmitQuestionnaire: saving questionnaire", err)
	}

	s.log.Info().Str("customer_id", q.CustomerID).Str("questionnaire_id", q.ID).Msg("questionnaire stored")
	return &QuestionnaireResult{Message: QuestionnaireSubmitted, ID: q.ID}, nil
}

func (s *Service) toQuestionnaire(req QuestionnaireRequest) (*domain.Questionnaire, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, apperr.Precondition("customerId is required")
	}
	if len(req.SpendCategory) == 0 {
		return nil, apperr.Precondition("spendCategory must not be empty")
	}

	q := &domain.Questionnaire{
		ID:              s.newID(),
		CustomerID:      customerID,
		SpendCategories: make([]domain.SpendCategory, 0, len(req.SpendCategory)),
		IncomeRange:     strings.TrimSpace(req.IncomeRange),
		HasCreditCard:   req.HasCreditCard,
		SubmittedAt:     s.now(),
	}

	for i, in := range req.SpendCategory {
		name := strings.TrimSpace(in.CategoryName)
		if name == "" {
			return nil, apperr.Precondition("spendCategory[%d].categoryName is required", i)
		}
		amount, err := domain.ParseLooseNumber(in.CategoryAmount)
		if err != nil {
			return nil, apperr.Precondition("spendCategory[%d].categoryAmount: %v", i, err)
		}
		score, err := domain.ParseLooseNumber(in.CategoryScore)
		if err != nil {
			return nil, apperr.Precondition("spendCategory[%d].categoryScore: %v", i, err)
		}
		q.SpendCategories = append(q.SpendCategories, domain.SpendCategory{
			CategoryName:   name,
			CategoryAmount: amount,
			CategoryScore:  score,
			SubCategories:  append([]string{}, in.SubCategory...),
		})
	}

	limit, err := domain.ParseLooseNumber(req.CreditLimit)
	if err != nil {
		return nil, fmt.Errorf("toQuestionnaire: %w", apperr.Precondition("creditLimit: %v", err))
	}
	q.CreditLimit = limit
	return q, nil
}
