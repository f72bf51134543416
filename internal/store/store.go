// Package store declares the Entity Store used by the service. Backends live in
// store/inmemory, infra/bigquery and infra/postgres.
//
// Lookup methods return (nil, nil) when the record does not exist.
package store

import (
	"context"
	"strings"

	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/domain"
)

// MaxHeldCardMatches caps the current-card lookup.
const MaxHeldCardMatches = 50

// UserRepository stores users created by authenticate.
type UserRepository interface {
	// CreateUser inserts a new user.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser returns the user with the given customer id.
	GetUser(ctx context.Context, customerID string) (*domain.User, error)
}

// DocumentRepository stores statement upload batches.
type DocumentRepository interface {
	// CreateDocumentUpload inserts one upload record for a batch of files.
	CreateDocumentUpload(ctx context.Context, doc *domain.DocumentUpload) error

	// GetDocumentUpload returns an upload record by id.
	GetDocumentUpload(ctx context.Context, id string) (*domain.DocumentUpload, error)
}

// QuestionnaireRepository stores questionnaire submissions.
type QuestionnaireRepository interface {
	// CreateQuestionnaire inserts a submission. Submissions are never merged.
	CreateQuestionnaire(ctx context.Context, q *domain.Questionnaire) error

	// LatestQuestionnaire returns the most recent submission for a customer.
	LatestQuestionnaire(ctx context.Context, customerID string) (*domain.Questionnaire, error)
}

// AnalysisRepository stores statement analyses.
type AnalysisRepository interface {
	// SaveStatementAnalysis inserts an analysis. The referenced user and
	// document upload must already exist.
	SaveStatementAnalysis(ctx context.Context, a *domain.StatementAnalysis) error

	// LatestStatementAnalysis returns the analysis with the newest AnalyzedAt.
	LatestStatementAnalysis(ctx context.Context, customerID string) (*domain.StatementAnalysis, error)
}

// CatalogRepository stores the card catalog.
type CatalogRepository interface {
	// UpsertCard inserts or replaces the entry with the same card name.
	UpsertCard(ctx context.Context, card *domain.CardCatalogEntry) error

	// ListActiveCards returns every entry flagged active, ordered by name.
	ListActiveCards(ctx context.Context) ([]domain.CardCatalogEntry, error)

	// FindCardsByName returns entries whose name matches one of names,
	// ignoring case and surrounding space, at most limit entries.
	FindCardsByName(ctx context.Context, names []string, limit int) ([]domain.CardCatalogEntry, error)
}

// Store is the full Entity Store.
type Store interface {
	UserRepository
	DocumentRepository
	QuestionnaireRepository
	AnalysisRepository
	CatalogRepository

	// Close releases backend connections.
	Close() error
}

// VerifyAnalysisRefs checks that the user and document upload referenced by
// an analysis exist and belong together.
func VerifyAnalysisRefs(ctx context.Context, users UserRepository, docs DocumentRepository, a *domain.StatementAnalysis) error {
	if a.CustomerID == "" || a.DocumentID == "" {
		return apperr.Precondition("analysis must reference a customer and a document upload")
	}

	user, err := users.GetUser(ctx, a.CustomerID)
	if err != nil {
		return apperr.Dependency("VerifyAnalysisRefs: loading user", err)
	}
	if user == nil {
		return apperr.NotFound("user %s", a.CustomerID)
	}

	doc, err := docs.GetDocumentUpload(ctx, a.DocumentID)
	if err != nil {
		return apperr.Dependency("VerifyAnalysisRefs: loading document upload", err)
	}
	if doc == nil {
		return apperr.NotFound("document upload %s", a.DocumentID)
	}
	if doc.CustomerID != a.CustomerID {
		return apperr.Precondition("document upload %s belongs to another customer", a.DocumentID)
	}
	return nil
}

// NormalizeCardNames trims names, drops blanks and lower-cases them for matching.
func NormalizeCardNames(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		key := CardNameKey(n)
		if key == "" {
			continue
		}
		out[key] = struct{}{}
	}
	return out
}

// CardNameKey is the comparison key used for held-card lookups.
func CardNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
