package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/domain"
)

func seedUserAndDocument(t *testing.T, s *Store, customerID, documentID string) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateUser(ctx, &domain.User{CustomerID: customerID, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.CreateDocumentUpload(ctx, &domain.DocumentUpload{ID: documentID, CustomerID: customerID}); err != nil {
		t.Fatalf("CreateDocumentUpload failed: %v", err)
	}
}

func TestStore_UserLifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	user, err := s.GetUser(ctx, "missing")
	if err != nil || user != nil {
		t.Fatalf("GetUser(missing) = %v, %v; want nil, nil", user, err)
	}

	if err := s.CreateUser(ctx, &domain.User{CustomerID: "c1"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.CreateUser(ctx, &domain.User{CustomerID: "c1"}); err == nil {
		t.Error("expected duplicate user to be rejected")
	}

	user, err = s.GetUser(ctx, "c1")
	if err != nil || user == nil || user.CustomerID != "c1" {
		t.Errorf("GetUser(c1) = %v, %v", user, err)
	}
}

func TestStore_SaveStatementAnalysis_RequiresReferences(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedUserAndDocument(t, s, "c1", "d1")
	if err := s.CreateUser(ctx, &domain.User{CustomerID: "c2"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	tests := []struct {
		name     string
		analysis domain.StatementAnalysis
		wantKind error
	}{
		{"unknown user", domain.StatementAnalysis{ID: "a1", CustomerID: "nobody", DocumentID: "d1"}, apperr.ErrNotFound},
		{"unknown document", domain.StatementAnalysis{ID: "a2", CustomerID: "c1", DocumentID: "nope"}, apperr.ErrNotFound},
		{"foreign document", domain.StatementAnalysis{ID: "a3", CustomerID: "c2", DocumentID: "d1"}, apperr.ErrPrecondition},
		{"missing refs", domain.StatementAnalysis{ID: "a4"}, apperr.ErrPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SaveStatementAnalysis(ctx, &tt.analysis)
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("SaveStatementAnalysis error = %v, want %v", err, tt.wantKind)
			}
		})
	}
}

func TestStore_LatestStatementAnalysis(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedUserAndDocument(t, s, "c1", "d1")

	latest, err := s.LatestStatementAnalysis(ctx, "c1")
	if err != nil || latest != nil {
		t.Fatalf("expected no analysis, got %v, %v", latest, err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "newest", "middle"} {
		offset := map[string]time.Duration{"old": 0, "newest": 2 * time.Hour, "middle": time.Hour}[id]
		a := &domain.StatementAnalysis{ID: id, CustomerID: "c1", DocumentID: "d1", AnalyzedAt: base.Add(offset)}
		if err := s.SaveStatementAnalysis(ctx, a); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	latest, err = s.LatestStatementAnalysis(ctx, "c1")
	if err != nil {
		t.Fatalf("LatestStatementAnalysis failed: %v", err)
	}
	if latest == nil || latest.ID != "newest" {
		t.Errorf("latest = %+v, want id newest", latest)
	}
}

func TestStore_Catalog(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	cards := []domain.CardCatalogEntry{
		{CardName: "Zeta Rewards", IsActive: true},
		{CardName: "Alpha Cashback", IsActive: true},
		{CardName: "Legacy Gold", IsActive: false},
	}
	for i := range cards {
		if err := s.UpsertCard(ctx, &cards[i]); err != nil {
			t.Fatalf("UpsertCard failed: %v", err)
		}
	}
	// Upsert replaces by name.
	if err := s.UpsertCard(ctx, &domain.CardCatalogEntry{CardName: "Zeta Rewards", BankName: "Zeta", IsActive: true}); err != nil {
		t.Fatalf("UpsertCard failed: %v", err)
	}

	active, err := s.ListActiveCards(ctx)
	if err != nil {
		t.Fatalf("ListActiveCards failed: %v", err)
	}
	if len(active) != 2 || active[0].CardName != "Alpha Cashback" || active[1].BankName != "Zeta" {
		t.Errorf("ListActiveCards = %+v", active)
	}

	found, err := s.FindCardsByName(ctx, []string{" legacy gold ", "ALPHA CASHBACK", "", "Unknown"}, 50)
	if err != nil {
		t.Fatalf("FindCardsByName failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("FindCardsByName returned %d cards, want 2", len(found))
	}

	limited, _ := s.FindCardsByName(ctx, []string{"legacy gold", "alpha cashback"}, 1)
	if len(limited) != 1 {
		t.Errorf("limit not applied: %d cards", len(limited))
	}

	none, _ := s.FindCardsByName(ctx, nil, 50)
	if len(none) != 0 {
		t.Errorf("expected no cards for empty names, got %d", len(none))
	}
}

func TestStore_LatestQuestionnaire(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Now()

	_ = s.CreateQuestionnaire(ctx, &domain.Questionnaire{ID: "q1", CustomerID: "c1", SubmittedAt: base})
	_ = s.CreateQuestionnaire(ctx, &domain.Questionnaire{ID: "q2", CustomerID: "c1", SubmittedAt: base.Add(time.Minute)})
	_ = s.CreateQuestionnaire(ctx, &domain.Questionnaire{ID: "q3", CustomerID: "c2", SubmittedAt: base.Add(time.Hour)})

	q, err := s.LatestQuestionnaire(ctx, "c1")
	if err != nil || q == nil || q.ID != "q2" {
		t.Errorf("LatestQuestionnaire = %+v, %v; want q2", q, err)
	}
}
