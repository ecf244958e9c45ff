// Package queue implements the in-memory job queue and worker pool that
// front the conversion service: bounded concurrency, token-bucket rate
// limiting, exponential-backoff retry, completed/failed retention
// windows, submission deduplication, and backpressure via a circuit
// breaker on consecutive failures. Jobs and their history live only in
// process memory and are lost when the process exits.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/toursvc/conversion-pipeline/internal/pipeline"
	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

// Runner is the dependency the queue drives per job. *pipeline.Service
// satisfies this.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
}

// Status is a point-in-time snapshot of queue health, returned by the
// status probe endpoint.
type Status struct {
	State              CircuitState
	QueueDepth         int
	MaxPendingJobs     int
	UtilizationPercent float64
	Accepting          bool
	RejectionReason    string
}

// Queue accepts conversion jobs, gates them against backpressure, and
// runs them through a bounded worker pool.
type Queue struct {
	cfg     Config
	runner  Runner
	limiter *rate.Limiter
	breaker *breaker
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*Entry // waiting + active, keyed by JobID
	jobCh   chan *Entry

	completed *ring
	failed    *ring

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Queue and starts its worker pool. Call Stop for a
// graceful shutdown.
func New(cfg Config, runner Runner, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		cfg:       cfg,
		runner:    runner,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		breaker:   newBreaker(cfg.CircuitBreakerThreshold, cfg.resetDuration()),
		logger:    logger,
		entries:   make(map[string]*Entry),
		jobCh:     make(chan *Entry, cfg.MaxPendingJobs),
		completed: newRing(cfg.CompletedRetention),
		failed:    newRing(cfg.FailedRetention),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// Submit enqueues job, deduplicating by job.ID (idempotent: a second
// submission for a job still waiting or active is a no-op). Rejects
// with a *pipelineerr.BackpressureError when the queue is full or the
// circuit breaker is open.
func (q *Queue) Submit(job pipeline.Job) (string, error) {
	if q.ctx.Err() != nil {
		return "", pipelineerr.Backpressure(pipelineerr.ReasonQueueFull, "queue is shutting down")
	}

	q.mu.Lock()

	if _, exists := q.entries[job.ID]; exists {
		q.mu.Unlock()
		return job.ID, nil
	}

	depth := len(q.entries)
	if depth >= q.cfg.MaxPendingJobs {
		q.mu.Unlock()
		return "", pipelineerr.Backpressure(pipelineerr.ReasonQueueFull,
			fmt.Sprintf("queue has %d pending jobs, at capacity %d", depth, q.cfg.MaxPendingJobs))
	}
	q.mu.Unlock()

	admitted, state := q.breaker.allow()
	if !admitted {
		return "", pipelineerr.Backpressure(pipelineerr.ReasonCircuitOpen,
			fmt.Sprintf("circuit breaker is %s", state))
	}

	entry := &Entry{
		JobID:       job.ID,
		Job:         job,
		Status:      EntryWaiting,
		SubmittedAt: time.Now(),
		UpdatedAt:   time.Now(),
	}

	q.mu.Lock()
	q.entries[job.ID] = entry
	q.mu.Unlock()

	select {
	case q.jobCh <- entry:
	case <-q.ctx.Done():
		q.mu.Lock()
		delete(q.entries, job.ID)
		q.mu.Unlock()
		return "", pipelineerr.Backpressure(pipelineerr.ReasonQueueFull, "queue is shutting down")
	}

	return job.ID, nil
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	l := q.logger.With("worker_id", id)

	for {
		select {
		case <-q.ctx.Done():
			return
		case entry, ok := <-q.jobCh:
			if !ok {
				return
			}
			if err := q.limiter.Wait(q.ctx); err != nil {
				return
			}
			q.runEntry(l, entry)
		}
	}
}

func (q *Queue) runEntry(l *slog.Logger, entry *Entry) {
	q.mu.Lock()
	entry.Status = EntryActive
	entry.Progress = 10
	entry.Attempts++
	q.mu.Unlock()

	result, err := q.runner.Run(q.ctx, entry.Job)

	q.mu.Lock()
	entry.Result = result
	entry.Err = err
	entry.Progress = 100
	entry.UpdatedAt = time.Now()
	q.mu.Unlock()

	if err == nil && result != nil && result.OK {
		q.breaker.recordSuccess()
		q.finish(entry, EntryCompleted)
		return
	}

	retryable := false
	if pe, ok := err.(*pipelineerr.Error); ok {
		retryable = pe.Retryable
	} else if result != nil && result.Err != nil {
		retryable = result.Err.Retryable
	}

	q.breaker.recordFailure()

	if retryable && entry.Attempts < q.cfg.RetryMaxAttempts {
		l.Warn("job failed, scheduling retry", "job_id", entry.JobID, "attempt", entry.Attempts)
		q.scheduleRetry(entry)
		return
	}

	l.Error("job failed permanently", "job_id", entry.JobID, "attempts", entry.Attempts)
	q.finish(entry, EntryFailed)
}

func (q *Queue) scheduleRetry(entry *Entry) {
	q.mu.Lock()
	entry.Status = EntryWaiting
	if entry.backoff == nil {
		b, err := retry.NewExponential(q.cfg.RetryBaseDelay)
		if err != nil {
			b = retry.NewConstant(q.cfg.RetryBaseDelay)
		}
		entry.backoff = b
	}
	delay, _ := entry.backoff.Next()
	q.mu.Unlock()

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-q.ctx.Done():
			return
		}
		select {
		case q.jobCh <- entry:
		case <-q.ctx.Done():
		}
	}()
}

// finish moves entry from the in-flight map into the appropriate
// retention ring.
func (q *Queue) finish(entry *Entry, status EntryStatus) {
	q.mu.Lock()
	entry.Status = status
	delete(q.entries, entry.JobID)
	if status == EntryCompleted {
		q.completed.push(entry)
	} else {
		q.failed.push(entry)
	}
	q.mu.Unlock()
}

// Status reports current queue health for the backpressure probe.
func (q *Queue) Status() Status {
	q.mu.Lock()
	depth := len(q.entries)
	q.mu.Unlock()

	state := q.breaker.snapshot()
	utilization := 0.0
	if q.cfg.MaxPendingJobs > 0 {
		utilization = float64(depth) / float64(q.cfg.MaxPendingJobs) * 100
	}

	status := Status{
		State:              state,
		QueueDepth:         depth,
		MaxPendingJobs:     q.cfg.MaxPendingJobs,
		UtilizationPercent: utilization,
		Accepting:          true,
	}
	if depth >= q.cfg.MaxPendingJobs {
		status.Accepting = false
		status.RejectionReason = string(pipelineerr.ReasonQueueFull)
	} else if state == CircuitOpen {
		status.Accepting = false
		status.RejectionReason = string(pipelineerr.ReasonCircuitOpen)
	}
	return status
}

// Entry returns a snapshot of one tracked job by ID, searching waiting/
// active entries first, then the completed and failed retention rings.
func (q *Queue) Entry(jobID string) (*Entry, bool) {
	q.mu.Lock()
	if e, ok := q.entries[jobID]; ok {
		q.mu.Unlock()
		cp := *e
		return &cp, true
	}
	q.mu.Unlock()

	for _, e := range q.completed.snapshot() {
		if e.JobID == jobID {
			return e, true
		}
	}
	for _, e := range q.failed.snapshot() {
		if e.JobID == jobID {
			return e, true
		}
	}
	return nil, false
}

// Stop stops accepting new work and waits up to deadline for workers to
// finish the job each is running; jobs still waiting are not started.
// The internal job channel is left open.
func (q *Queue) Stop(deadline time.Duration) {
	q.cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deadline):
		q.logger.Warn("queue shutdown deadline exceeded, workers may still be running")
	}
}
