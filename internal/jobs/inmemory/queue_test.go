package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/card-advisor/internal/jobs"
	"github.com/dvloznov/card-advisor/internal/logger"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitForStatus(t *testing.T, s *Store, jobID string, want jobs.JobStatus) *jobs.CrawlDirectoryJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := s.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state: %+v", jobID, want, job)
	return nil
}

func newTestQueue(store *Store) *Queue {
	return NewQueue(store, Options{
		Workers: 2,
		Backoff: func(int) time.Duration { return time.Millisecond },
		Logger:  logger.Nop(),
	})
}

func TestQueue_CompletesJob(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx := context.Background()

	handler := func(ctx context.Context, job *jobs.CrawlDirectoryJob) error {
		job.Result = &jobs.CrawlSummary{TotalFiles: 2, Succeeded: 2}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer q.Stop(ctx)

	job := &jobs.CrawlDirectoryJob{DirectoryPath: "/data/cards"}
	if err := q.PublishCrawlDirectory(ctx, job); err != nil {
		t.Fatalf("PublishCrawlDirectory failed: %v", err)
	}
	if job.JobID == "" || job.Type != jobs.JobTypeCrawlDirectory || job.MaxRetries != jobs.DefaultMaxRetries {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || done.Result.Succeeded != 2 {
		t.Errorf("result = %+v", done.Result)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("timestamps missing: %+v", done)
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx := context.Background()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *jobs.CrawlDirectoryJob) error {
		attempts.Add(1)
		return errors.New("oracle unavailable")
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer q.Stop(ctx)

	job := &jobs.CrawlDirectoryJob{DirectoryPath: "/data/cards", MaxRetries: 2}
	if err := q.PublishCrawlDirectory(ctx, job); err != nil {
		t.Fatalf("PublishCrawlDirectory failed: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 || attempts.Load() != 3 {
		t.Errorf("retry count = %d, attempts = %d; want 2 and 3", failed.RetryCount, attempts.Load())
	}
	if failed.Error != "oracle unavailable" {
		t.Errorf("error = %q", failed.Error)
	}
}

func TestQueue_PermanentErrorIsNotRetried(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx := context.Background()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *jobs.CrawlDirectoryJob) error {
		attempts.Add(1)
		return jobs.Permanent(errors.New("directory missing"))
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer q.Stop(ctx)

	job := &jobs.CrawlDirectoryJob{DirectoryPath: "/nope"}
	if err := q.PublishCrawlDirectory(ctx, job); err != nil {
		t.Fatalf("PublishCrawlDirectory failed: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 0 || attempts.Load() != 1 {
		t.Errorf("retry count = %d, attempts = %d; want 0 and 1", failed.RetryCount, attempts.Load())
	}
}

func TestQueue_StopRejectsNewJobs(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx := context.Background()

	if err := q.Start(ctx, func(context.Context, *jobs.CrawlDirectoryJob) error { return nil }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := q.Start(ctx, func(context.Context, *jobs.CrawlDirectoryJob) error { return nil }); err == nil {
		t.Error("second Start should fail")
	}
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := q.Stop(ctx); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}

	if err := q.PublishCrawlDirectory(ctx, &jobs.CrawlDirectoryJob{DirectoryPath: "/x"}); err == nil {
		t.Error("publish after Stop should fail")
	}
	if err := q.Start(ctx, func(context.Context, *jobs.CrawlDirectoryJob) error { return nil }); err == nil {
		t.Error("Start after Stop should fail")
	}
}
