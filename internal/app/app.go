// Package app builds the service graph shared by the api and cli binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/card-advisor/internal/config"
	"github.com/dvloznov/card-advisor/internal/crawler"
	"github.com/dvloznov/card-advisor/internal/customer"
	infraBQ "github.com/dvloznov/card-advisor/internal/infra/bigquery"
	"github.com/dvloznov/card-advisor/internal/infra/postgres"
	"github.com/dvloznov/card-advisor/internal/objectstore"
	"github.com/dvloznov/card-advisor/internal/oracle"
	"github.com/dvloznov/card-advisor/internal/pdftext"
	"github.com/dvloznov/card-advisor/internal/pipeline"
	"github.com/dvloznov/card-advisor/internal/recommend"
	"github.com/dvloznov/card-advisor/internal/store"
	"github.com/dvloznov/card-advisor/internal/store/inmemory"
	"github.com/rs/zerolog"
)

// Services is every component the binaries use. The oracle client is built
// once and shared by all of them.
type Services struct {
	Store      store.Store
	Objects    objectstore.Store
	Oracle     oracle.Generator
	Statements *pipeline.DocumentPipeline
	Recommend  *recommend.Aggregator
	Crawler    *crawler.Processor
	Customers  *customer.Service
	Limits     pipeline.Limits

	closers []io.Closer
}

// Build wires Services from cfg.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	s := &Services{
		Limits: pipeline.Limits{MaxFiles: cfg.MaxUploadFiles, MaxFileBytes: cfg.MaxFileBytes},
	}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.Store = st
	s.closers = append(s.closers, st)

	objects, err := OpenObjectStore(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Objects = objects
	if c, ok := objects.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	gemini, err := oracle.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("app.Build: %w", err)
	}
	s.Oracle = oracle.WithTimeout(gemini, cfg.OracleTimeout)

	s.Statements = pipeline.NewDocumentPipeline(pipeline.Deps{
		Users:     st,
		Documents: st,
		Analyses:  st,
		Objects:   objects,
		Extractor: pdftext.Chain{pdftext.Docconv{}, pdftext.NewTranscriber(s.Oracle)},
		Oracle:    s.Oracle,
		Logger:    log.With().Str("component", "pipeline").Logger(),
	}, s.Limits)

	s.Recommend = recommend.NewAggregator(st, s.Oracle, log.With().Str("component", "recommend").Logger())
	s.Crawler = crawler.NewProcessor(st, s.Oracle, log.With().Str("component", "crawler").Logger(),
		crawler.WithBatchSize(cfg.CrawlerBatchSize),
		crawler.WithDelay(cfg.CrawlerDelay),
	)
	s.Customers = customer.NewService(st, cfg.AuthToken, log.With().Str("component", "customer").Logger())

	log.Info().
		Str("store", cfg.StoreBackend).
		Str("object_store", cfg.ObjectStore).
		Str("model", gemini.Model()).
		Dur("oracle_timeout", cfg.OracleTimeout).
		Msg("services ready")
	return s, nil
}

// Close releases every backend connection.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the Entity Store backend named by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return inmemory.NewStore(), nil
	case config.StoreBigQuery:
		st, err := infraBQ.New(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return st, nil
	case config.StorePostgres:
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown store backend %q", cfg.StoreBackend)
	}
}

// OpenObjectStore opens the statement file store named by cfg.ObjectStore.
func OpenObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	switch cfg.ObjectStore {
	case config.ObjectLocal:
		s, err := objectstore.NewLocal(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("OpenObjectStore: %w", err)
		}
		return s, nil
	case config.ObjectGCS:
		s, err := objectstore.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("OpenObjectStore: %w", err)
		}
		return s, nil
	case config.ObjectS3:
		s, err := objectstore.NewS3(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			return nil, fmt.Errorf("OpenObjectStore: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("OpenObjectStore: unknown object store %q", cfg.ObjectStore)
	}
}
