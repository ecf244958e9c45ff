package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toursvc/conversion-pipeline/internal/pipeline"
	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

type fakeRunner struct {
	run func(job pipeline.Job) (*pipeline.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, job pipeline.Job) (*pipeline.Result, error) {
	return f.run(job)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Concurrency = 1
	cfg.MaxPendingJobs = 2
	cfg.CircuitBreakerThreshold = 2
	cfg.CircuitBreakerResetMs = 5000
	cfg.RetryBaseDelay = 10 * time.Millisecond
	cfg.RetryMaxAttempts = 2
	cfg.RateLimit = 1000
	cfg.RateLimitBurst = 1000
	return cfg
}

func waitForEntry(t *testing.T, q *Queue, jobID string, want EntryStatus, timeout time.Duration) *Entry {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e, ok := q.Entry(jobID); ok && e.Status == want {
			return e
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("entry %s did not reach status %s in time", jobID, want)
	return nil
}

func TestQueue_SubmitAndSucceed(t *testing.T) {
	runner := &fakeRunner{run: func(job pipeline.Job) (*pipeline.Result, error) {
		return &pipeline.Result{OK: true, Status: pipeline.StatusDone}, nil
	}}
	q := New(testConfig(), runner, nil)
	defer q.Stop(time.Second)

	job := pipeline.NewJob("asset-1", "tours/us/asset-1/source.ply", "us")
	id, err := q.Submit(job)
	require.NoError(t, err)
	assert.Equal(t, job.ID, id)

	entry := waitForEntry(t, q, job.ID, EntryCompleted, time.Second)
	assert.True(t, entry.Result.OK)
}

func TestQueue_SubmitIsIdempotentByJobID(t *testing.T) {
	var calls atomic.Int32
	block := make(chan struct{})
	runner := &fakeRunner{run: func(job pipeline.Job) (*pipeline.Result, error) {
		calls.Add(1)
		<-block
		return &pipeline.Result{OK: true}, nil
	}}
	q := New(testConfig(), runner, nil)
	defer func() {
		close(block)
		q.Stop(time.Second)
	}()

	job := pipeline.NewJob("asset-2", "tours/us/asset-2/source.ply", "us")
	id1, err := q.Submit(job)
	require.NoError(t, err)
	id2, err := q.Submit(job)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(1))
}

func TestQueue_BackpressureQueueFull(t *testing.T) {
	block := make(chan struct{})
	runner := &fakeRunner{run: func(job pipeline.Job) (*pipeline.Result, error) {
		<-block
		return &pipeline.Result{OK: true}, nil
	}}
	cfg := testConfig()
	cfg.MaxPendingJobs = 1
	cfg.Concurrency = 1
	q := New(cfg, runner, nil)
	defer func() {
		close(block)
		q.Stop(time.Second)
	}()

	_, err := q.Submit(pipeline.NewJob("asset-3", "k1", "us"))
	require.NoError(t, err)

	// Give the worker a moment to pick up the first job so the second
	// submission actually observes a full queue.
	time.Sleep(20 * time.Millisecond)

	_, err = q.Submit(pipeline.NewJob("asset-4", "k2", "us"))
	require.Error(t, err)
	var bpErr *pipelineerr.BackpressureError
	require.ErrorAs(t, err, &bpErr)
	assert.Equal(t, pipelineerr.ReasonQueueFull, bpErr.Reason)
}

func TestQueue_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	runner := &fakeRunner{run: func(job pipeline.Job) (*pipeline.Result, error) {
		return nil, pipelineerr.QAFailed("qa_below_threshold", "forced failure")
	}}
	cfg := testConfig()
	cfg.RetryMaxAttempts = 1 // fail immediately, no retry, to reach the breaker fast
	q := New(cfg, runner, nil)
	defer q.Stop(time.Second)

	for i := 0; i < cfg.CircuitBreakerThreshold; i++ {
		job := pipeline.NewJob(assetName(i), assetName(i), "us")
		_, err := q.Submit(job)
		require.NoError(t, err)
		waitForEntry(t, q, job.ID, EntryFailed, time.Second)
	}

	status := q.Status()
	assert.Equal(t, CircuitOpen, status.State)
	assert.False(t, status.Accepting)

	_, err := q.Submit(pipeline.NewJob("asset-rejected", "k", "us"))
	require.Error(t, err)
	var bpErr *pipelineerr.BackpressureError
	require.ErrorAs(t, err, &bpErr)
	assert.Equal(t, pipelineerr.ReasonCircuitOpen, bpErr.Reason)
}

func assetName(i int) string {
	return "asset-breaker-" + string(rune('a'+i))
}

func TestQueue_RetryableFailureEventuallySucceeds(t *testing.T) {
	var attempt atomic.Int32
	runner := &fakeRunner{run: func(job pipeline.Job) (*pipeline.Result, error) {
		n := attempt.Add(1)
		if n == 1 {
			return nil, pipelineerr.IO("transient", "first attempt fails", nil)
		}
		return &pipeline.Result{OK: true}, nil
	}}
	cfg := testConfig()
	cfg.RetryMaxAttempts = 3
	q := New(cfg, runner, nil)
	defer q.Stop(time.Second)

	job := pipeline.NewJob("asset-retry", "k", "us")
	_, err := q.Submit(job)
	require.NoError(t, err)

	entry := waitForEntry(t, q, job.ID, EntryCompleted, 2*time.Second)
	assert.True(t, entry.Result.OK)
	assert.GreaterOrEqual(t, attempt.Load(), int32(2))
}

func TestQueue_RetryableThrowRecordsAndClearsBreakerFailure(t *testing.T) {
	attempt := 0
	runner := &fakeRunner{run: func(job pipeline.Job) (*pipeline.Result, error) {
		attempt++
		if attempt == 1 {
			return nil, pipelineerr.IO("transient", "first attempt fails", nil)
		}
		return &pipeline.Result{OK: true}, nil
	}}
	cfg := testConfig()
	cfg.Concurrency = 0 // drive runEntry by hand, no background workers
	cfg.RetryMaxAttempts = 3
	q := New(cfg, runner, nil)
	defer q.Stop(time.Second)

	job := pipeline.NewJob("asset-breaker-retry", "k", "us")
	_, err := q.Submit(job)
	require.NoError(t, err)

	entry := <-q.jobCh
	q.runEntry(q.logger, entry)
	assert.Equal(t, 1, q.breaker.failures(), "a thrown retryable error must record a breaker failure even with retry budget left")
	assert.Equal(t, CircuitClosed, q.breaker.snapshot())

	entry = <-q.jobCh // scheduleRetry lands the entry back on jobCh after RetryBaseDelay
	q.runEntry(q.logger, entry)
	assert.Equal(t, 0, q.breaker.failures(), "the eventual success must reset the breaker's consecutive-failure count")
	assert.Equal(t, CircuitClosed, q.breaker.snapshot())
}
