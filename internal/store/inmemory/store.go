package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/card-advisor/internal/domain"
	"github.com/dvloznov/card-advisor/internal/store"
)

// Store is an in-memory Entity Store. It is safe for concurrent use and is
// used for local runs and tests; data is lost on restart.
type Store struct {
	mu             sync.RWMutex
	users          map[string]domain.User
	documents      map[string]domain.DocumentUpload
	questionnaires []domain.Questionnaire
	analyses       []domain.StatementAnalysis
	cards          map[string]domain.CardCatalogEntry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		documents: make(map[string]domain.DocumentUpload),
		cards:     make(map[string]domain.CardCatalogEntry),
	}
}

// CreateUser implements store.UserRepository.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CustomerID == "" {
		return fmt.Errorf("CreateUser: customer id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.CustomerID]; exists {
		return fmt.Errorf("CreateUser: user %s already exists", user.CustomerID)
	}
	s.users[user.CustomerID] = *user
	return nil
}

// GetUser implements store.UserRepository.
func (s *Store) GetUser(ctx context.Context, customerID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[customerID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// CreateDocumentUpload implements store.DocumentRepository.
func (s *Store) CreateDocumentUpload(ctx context.Context, doc *domain.DocumentUpload) error {
	if doc.ID == "" {
		return fmt.Errorf("CreateDocumentUpload: id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[doc.CustomerID]; !ok {
		return fmt.Errorf("CreateDocumentUpload: user %s not found", doc.CustomerID)
	}
	docCopy := *doc
	docCopy.FilePaths = append([]string(nil), doc.FilePaths...)
	s.documents[doc.ID] = docCopy
	return nil
}

// GetDocumentUpload implements store.DocumentRepository.
func (s *Store) GetDocumentUpload(ctx context.Context, id string) (*domain.DocumentUpload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// CreateQuestionnaire implements store.QuestionnaireRepository.
func (s *Store) CreateQuestionnaire(ctx context.Context, q *domain.Questionnaire) error {
	if q.ID == "" {
		return fmt.Errorf("CreateQuestionnaire: id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.questionnaires = append(s.questionnaires, *q)
	return nil
}

// LatestQuestionnaire implements store.QuestionnaireRepository.
func (s *Store) LatestQuestionnaire(ctx context.Context, customerID string) (*domain.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Questionnaire
	for i := range s.questionnaires {
		q := s.questionnaires[i]
		if q.CustomerID != customerID {
			continue
		}
		if latest == nil || !q.SubmittedAt.Before(latest.SubmittedAt) {
			latest = &q
		}
	}
	return latest, nil
}

// SaveStatementAnalysis implements store.AnalysisRepository.
func (s *Store) SaveStatementAnalysis(ctx context.Context, a *domain.StatementAnalysis) error {
	if a.ID == "" {
		return fmt.Errorf("SaveStatementAnalysis: id is required")
	}
	if err := store.VerifyAnalysisRefs(ctx, s, s, a); err != nil {
		return fmt.Errorf("SaveStatementAnalysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	aCopy := *a
	aCopy.CategoryBreakdown = a.CategoryBreakdown.Clone()
	s.analyses = append(s.analyses, aCopy)
	return nil
}

// LatestStatementAnalysis implements store.AnalysisRepository.
func (s *Store) LatestStatementAnalysis(ctx context.Context, customerID string) (*domain.StatementAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.StatementAnalysis
	for i := range s.analyses {
		a := s.analyses[i]
		if a.CustomerID != customerID {
			continue
		}
		if latest == nil || !a.AnalyzedAt.Before(latest.AnalyzedAt) {
			latest = &a
		}
	}
	if latest != nil {
		latest.CategoryBreakdown = latest.CategoryBreakdown.Clone()
	}
	return latest, nil
}

// UpsertCard implements store.CatalogRepository.
func (s *Store) UpsertCard(ctx context.Context, card *domain.CardCatalogEntry) error {
	if card.CardName == "" {
		return fmt.Errorf("UpsertCard: card name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards[card.CardName] = *card
	return nil
}

// ListActiveCards implements store.CatalogRepository.
func (s *Store) ListActiveCards(ctx context.Context) ([]domain.CardCatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.CardCatalogEntry
	for _, card := range s.cards {
		if card.IsActive {
			result = append(result, card)
		}
	}
	sortCards(result)
	return result, nil
}

// FindCardsByName implements store.CatalogRepository.
func (s *Store) FindCardsByName(ctx context.Context, names []string, limit int) ([]domain.CardCatalogEntry, error) {
	wanted := store.NormalizeCardNames(names)
	if len(wanted) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.CardCatalogEntry
	for _, card := range s.cards {
		if _, ok := wanted[store.CardNameKey(card.CardName)]; ok {
			result = append(result, card)
		}
	}
	sortCards(result)

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}

func sortCards(cards []domain.CardCatalogEntry) {
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].CardName < cards[j].CardName
	})
}

// Ensure Store implements the Entity Store.
var _ store.Store = (*Store)(nil)
