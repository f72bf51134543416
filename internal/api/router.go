// Package api assembles the HTTP surface of the service.
package api

import (
	"net/http"

	"github.com/dvloznov/card-advisor/internal/api/handlers"
	"github.com/dvloznov/card-advisor/internal/api/middleware"
	"github.com/dvloznov/card-advisor/internal/jobs"
	"github.com/dvloznov/card-advisor/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the services behind the routes. Publisher and Jobs may be nil
// when no job queue runs; the job routes then answer 503 and 404.
type Deps struct {
	Customers  handlers.CustomerService
	Statements handlers.StatementAnalyzer
	Recommend  handlers.Recommender
	Crawler    handlers.DirectoryProcessor
	Publisher  jobs.Publisher
	Jobs       jobs.JobStore
	Limits     pipeline.Limits
	Logger     zerolog.Logger
}

// Options control routing and auth.
type Options struct {
	Prefix    string
	AuthToken string
}

// NewRouter builds the chi router with every route mounted under opts.Prefix.
func NewRouter(deps Deps, opts Options) http.Handler {
	log := deps.Logger

	customerHandler := handlers.NewCustomerHandler(deps.Customers, log)
	statementsHandler := handlers.NewStatementsHandler(deps.Statements, deps.Limits, log)
	recommendationsHandler := handlers.NewRecommendationsHandler(deps.Recommend, log)
	catalogHandler := handlers.NewCatalogHandler(deps.Crawler, deps.Publisher, log)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS())

	routes := func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.Post("/authenticate", customerHandler.Authenticate)
		r.Post("/questionnaire", customerHandler.SubmitQuestionnaire)

		r.Group(func(protected chi.Router) {
			protected.Use(middleware.BearerAuth(opts.AuthToken))
			protected.Post("/recommendation", statementsHandler.Analyze)
			protected.Post("/get-recommendations", recommendationsHandler.GetRecommendations)
			protected.Post("/analyze-directory", catalogHandler.AnalyzeDirectory)
			protected.Post("/analyze-directory/jobs", catalogHandler.EnqueueCrawl)
			protected.Post("/save-results", catalogHandler.SaveResults)

			if deps.Jobs != nil {
				jobsHandler := handlers.NewJobsHandler(deps.Jobs, log)
				protected.Get("/jobs", jobsHandler.ListJobs)
				protected.Get("/jobs/{id}", jobsHandler.GetJob)
			}
		})
	}

	if opts.Prefix == "" {
		routes(r)
	} else {
		r.Get("/health", handlers.Health)
		r.Route(opts.Prefix, routes)
	}
	return r
}
