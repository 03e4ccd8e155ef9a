package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/superbank/internal/jobs"
)

// waitForStatus polls the store until the job reaches want or the deadline passes.
func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.SliceStatementJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state: %+v", jobID, want, job)
	return nil
}

func TestQueue_Completes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(Options{BufferSize: 4, Workers: 2}, store)
	defer q.Close()

	handler := func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.SliceStatementJob).RowCount = 3
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.SliceStatementJob{StatementID: "st-1"}
	if err := q.PublishSliceStatement(ctx, job); err != nil {
		t.Fatalf("PublishSliceStatement: %v", err)
	}
	if job.JobID == "" || job.MaxRetries != defaultMaxRetries {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RowCount != 3 || done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("unexpected completed job: %+v", done)
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(Options{BufferSize: 4, Workers: 1, Backoff: time.Millisecond}, store)
	defer q.Close()

	var calls int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.SliceStatementJob{StatementID: "st-1"}
	if err := q.PublishSliceStatement(ctx, job); err != nil {
		t.Fatalf("PublishSliceStatement: %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 2 || done.Error != "" {
		t.Errorf("unexpected job: %+v", done)
	}
}

func TestQueue_PermanentErrorFailsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(Options{BufferSize: 4, Workers: 1, Backoff: time.Millisecond}, store)
	defer q.Close()

	var calls int32
	handler := func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return jobs.Permanent(errors.New("bad statement"))
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.SliceStatementJob{StatementID: "st-1"}
	if err := q.PublishSliceStatement(ctx, job); err != nil {
		t.Fatalf("PublishSliceStatement: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 0 || failed.Error != "bad statement" {
		t.Errorf("unexpected job: %+v", failed)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestQueue_ExhaustsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(Options{BufferSize: 4, Workers: 1, Backoff: time.Millisecond}, store)
	defer q.Close()

	handler := func(ctx context.Context, job jobs.Job) error {
		return errors.New("still down")
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.SliceStatementJob{StatementID: "st-1", MaxRetries: 2}
	if err := q.PublishSliceStatement(ctx, job); err != nil {
		t.Fatalf("PublishSliceStatement: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", failed.RetryCount)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(Options{BufferSize: 1}, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.PublishSliceStatement(context.Background(), &jobs.SliceStatementJob{}); err == nil {
		t.Error("expected error publishing to a closed queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting a closed queue")
	}
}
