package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/card-advisor/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures a Queue.
type Options struct {
	// BufferSize is how many jobs can wait before publishing blocks.
	BufferSize int
	// Workers is the number of concurrent workers.
	Workers int
	// Backoff returns the delay before the given retry attempt.
	Backoff func(retry int) time.Duration
	Logger  zerolog.Logger
}

// LinearBackoff waits one second per attempt.
func LinearBackoff(retry int) time.Duration {
	return time.Duration(retry) * time.Second
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Jobs are lost on restart.
type Queue struct {
	jobChan   chan *jobs.CrawlDirectoryJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	started   bool
	workers   int
	backoff   func(int) time.Duration
	log       zerolog.Logger
}

// NewQueue creates a new in-memory job queue backed by store.
func NewQueue(store jobs.JobStore, opts Options) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 16
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Backoff == nil {
		opts.Backoff = LinearBackoff
	}
	return &Queue{
		jobChan:   make(chan *jobs.CrawlDirectoryJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   opts.Workers,
		backoff:   opts.Backoff,
		log:       opts.Logger,
	}
}

// PublishCrawlDirectory implements the Publisher interface.
// It fills in defaults, saves the job and enqueues it.
func (q *Queue) PublishCrawlDirectory(ctx context.Context, job *jobs.CrawlDirectoryJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	job.Type = jobs.JobTypeCrawlDirectory
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if err := q.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("PublishCrawlDirectory: saving job: %w", err)
	}

	queued := *job
	return q.enqueue(ctx, &queued)
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.CrawlDirectoryJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	if closed {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// It starts the workers; each job is handled by exactly one of them.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue is closed")
	}
	if q.started {
		return fmt.Errorf("queue already started")
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.CrawlDirectoryJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case !jobs.IsPermanent(err) && job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
	}

	q.log.Info().Str("job_id", job.JobID).Str("status", string(job.Status)).Int("retry_count", job.RetryCount).Msg("job processed")
	q.save(ctx, job)

	// Saved first so the retry's own state changes are never overwritten.
	if job.Status == jobs.JobStatusRetrying {
		q.scheduleRetry(ctx, *job)
	}
}

// scheduleRetry re-enqueues job after the backoff. The wait ends early when
// the queue stops.
func (q *Queue) scheduleRetry(ctx context.Context, job jobs.CrawlDirectoryJob) {
	delay := q.backoff(job.RetryCount)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-t.C:
		case <-q.closeChan:
			return
		case <-ctx.Done():
			return
		}

		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		q.save(ctx, &job)

		if err := q.enqueue(ctx, &job); err != nil {
			q.log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to re-enqueue job")
			_ = q.store.UpdateJobStatus(context.Background(), job.JobID, jobs.JobStatusFailed, err.Error())
		}
	}()
}

func (q *Queue) save(ctx context.Context, job *jobs.CrawlDirectoryJob) {
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to save job state")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
// It closes the queue and releases resources.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
