package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/card-advisor/internal/apperr"
	"github.com/dvloznov/card-advisor/internal/crawler"
	"github.com/rs/zerolog"
)

// NewCrawlHandler runs a directory crawl with p and, when the job names an
// output path, saves the results there.
func NewCrawlHandler(p *crawler.Processor, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job *CrawlDirectoryJob) error {
		log.Info().Str("job_id", job.JobID).Str("dir", job.DirectoryPath).Int("attempt", job.RetryCount+1).Msg("crawl job started")

		results, err := p.ProcessDirectory(ctx, job.DirectoryPath)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrPrecondition) {
				return Permanent(err)
			}
			return fmt.Errorf("crawl %s: %w", job.DirectoryPath, err)
		}

		summary := &CrawlSummary{TotalFiles: len(results)}
		for _, r := range results {
			if r != nil {
				summary.Succeeded++
			}
		}

		if job.OutputPath != "" {
			if _, err := crawler.SaveResults(results, job.OutputPath); err != nil {
				return fmt.Errorf("crawl %s: %w", job.DirectoryPath, err)
			}
			summary.OutputPath = job.OutputPath
		}

		job.Result = summary
		log.Info().Str("job_id", job.JobID).Int("files", summary.TotalFiles).Int("succeeded", summary.Succeeded).Msg("crawl job finished")
		return nil
	}
}
