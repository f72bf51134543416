package customer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/logger"
	"github.com/dvloznov/card-advisor/internal/store/inmemory"
)

func TestAuthenticate(t *testing.T) {
	st := inmemory.NewStore()
	svc := NewService(st, "secret-token", logger.Nop())

	res, err := svc.Authenticate(context.Background(), "link-123")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if !res.IsValidLink || res.APIToken != "secret-token" || res.CustomerID == "" {
		t.Errorf("Authenticate = %+v", res)
	}

	user, err := st.GetUser(context.Background(), res.CustomerID)
	if err != nil || user == nil {
		t.Errorf("user not created: %v, %v", user, err)
	}

	again, err := svc.Authenticate(context.Background(), "link-123")
	if err != nil {
		t.Fatalf("second Authenticate failed: %v", err)
	}
	if again.CustomerID == res.CustomerID {
		t.Error("each authenticate call should create a new customer")
	}

	if _, err := svc.Authenticate(context.Background(), "  "); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("Authenticate(blank) error = %v, want precondition failure", err)
	}
}

func TestSubmitQuestionnaire(t *testing.T) {
	st := inmemory.NewStore()
	if err := st.CreateUser(context.Background(), &domain.User{CustomerID: "cust-1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	svc := NewService(st, "tok", logger.Nop())

	var req QuestionnaireRequest
	body := `{
		"customerId": "cust-1",
		"spendCategory": [
			{"categoryName": "Travel", "subCategory": ["Flights"]},
			{"categoryName": "Dining", "categoryAmount": "5,000", "categoryScore": 4, "subCategory": []}
		],
		"incomeRange": "10-20L",
		"hasCreditCard": true,
		"creditLimit": "200000"
	}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	res, err := svc.SubmitQuestionnaire(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitQuestionnaire failed: %v", err)
	}
	if res.Message != QuestionnaireSubmitted || res.ID == "" {
		t.Errorf("SubmitQuestionnaire = %+v", res)
	}

	q, err := st.LatestQuestionnaire(context.Background(), "cust-1")
	if err != nil || q == nil {
		t.Fatalf("LatestQuestionnaire = %v, %v", q, err)
	}
	if q.ID != res.ID || len(q.SpendCategories) != 2 {
		t.Errorf("stored questionnaire = %+v", q)
	}
	if q.SpendCategories[0].CategoryAmount != nil || q.SpendCategories[0].SubCategories[0] != "Flights" {
		t.Errorf("travel = %+v", q.SpendCategories[0])
	}
	if a := q.SpendCategories[1].CategoryAmount; a == nil || *a != 5000 {
		t.Errorf("dining amount = %v", a)
	}
	if q.CreditLimit == nil || *q.CreditLimit != 200000 || q.HasCreditCard == nil || !*q.HasCreditCard {
		t.Errorf("credit fields = %v %v", q.CreditLimit, q.HasCreditCard)
	}
}

func TestSubmitQuestionnaire_Rejections(t *testing.T) {
	st := inmemory.NewStore()
	if err := st.CreateUser(context.Background(), &domain.User{CustomerID: "cust-1"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	svc := NewService(st, "tok", logger.Nop())
	travel := []SpendCategoryInput{{CategoryName: "Travel"}}

	tests := []struct {
		name    string
		req     QuestionnaireRequest
		wantErr error
	}{
		{"missing customer", QuestionnaireRequest{SpendCategory: travel}, apperr.ErrPrecondition},
		{"no categories", QuestionnaireRequest{CustomerID: "cust-1"}, apperr.ErrPrecondition},
		{"blank category", QuestionnaireRequest{CustomerID: "cust-1", SpendCategory: []SpendCategoryInput{{CategoryName: " "}}}, apperr.ErrPrecondition},
		{"bad amount", QuestionnaireRequest{CustomerID: "cust-1", SpendCategory: []SpendCategoryInput{{CategoryName: "Fuel", CategoryAmount: json.RawMessage(`"lots"`)}}}, apperr.ErrPrecondition},
		{"unknown customer", QuestionnaireRequest{CustomerID: "ghost", SpendCategory: travel}, apperr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SubmitQuestionnaire(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("SubmitQuestionnaire error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
