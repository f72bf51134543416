package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/card-advisor/internal/api"
	"github.com/dvloznov/card-advisor/internal/app"
	"github.com/dvloznov/card-advisor/internal/config"
	"github.com/dvloznov/card-advisor/internal/jobs"
	"github.com/dvloznov/card-advisor/internal/jobs/inmemory"
	"github.com/dvloznov/card-advisor/internal/logger"
)

func main() {
	v := config.New()

	// Parse command-line flags
	port := flag.String("port", v.GetString("port"), "HTTP server port (or set PORT env)")
	flag.Parse()
	v.Set("port", *port)

	cfg, err := config.Load(v)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, Service: "card-advisor-api"})

	if cfg.AuthToken == "" {
		log.Warn().Msg("AUTH_TOKEN is empty - every protected endpoint will answer 401")
	}

	ctx := context.Background()

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build services")
	}
	defer services.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(jobStore, inmemory.Options{
		Logger: log.With().Str("component", "jobs").Logger(),
	})

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	crawlHandler := jobs.NewCrawlHandler(services.Crawler, log.With().Str("component", "crawl-job").Logger())
	if err := jobQueue.Start(workerCtx, crawlHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	handler := api.NewRouter(api.Deps{
		Customers:  services.Customers,
		Statements: services.Statements,
		Recommend:  services.Recommend,
		Crawler:    services.Crawler,
		Publisher:  jobQueue,
		Jobs:       jobStore,
		Limits:     services.Limits,
		Logger:     log,
	}, api.Options{Prefix: cfg.APIPrefix, AuthToken: cfg.AuthToken})

	server := newServer(cfg, handler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("prefix", cfg.APIPrefix).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight crawls finish, then cancel whatever is left
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop job queue")
	}
	cancelWorker()

	log.Info().Msg("Server stopped")
}

// newServer builds the HTTP server. There is no write deadline: a synchronous
// upload or directory crawl makes several oracle calls in a row, each bounded
// by OracleTimeout, and a server-wide cap would cut the response off while the
// work carries on. Large crawls belong on /analyze-directory/jobs.
func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
