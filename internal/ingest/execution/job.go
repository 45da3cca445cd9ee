package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an extraction job.
type Status string

// Job states. Completed, Failed and Cancelled are final.
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Final reports whether s is a terminal state.
func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobInfo is a point-in-time view of a job.
type JobInfo struct {
	ID          uuid.UUID  `json:"job_id"`
	Schema      string     `json:"schema"`
	Pipeline    string     `json:"pipeline"`
	Status      Status     `json:"status"`
	Processed   int64      `json:"processed"`
	Failed      int64      `json:"failed"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// job tracks one pipeline run. It receives the run's per-item progress.
type job struct {
	id       uuid.UUID
	schema   string
	pipeline string
	ctx      context.Context
	cancel   context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	status    Status
	err       error
	submitted time.Time
	started   time.Time
	finished  time.Time
}

func newJob(parent context.Context, schema, pipeline string) *job {
	ctx, cancel := context.WithCancel(parent)
	return &job{
		id:        uuid.New(),
		schema:    schema,
		pipeline:  pipeline,
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusIdle,
		submitted: time.Now(),
	}
}

func (j *job) Processed() { j.processed.Add(1) }
func (j *job) Failed()    { j.failed.Add(1) }

// start moves an idle job to running. It fails if the job was cancelled first.
func (j *job) start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusIdle {
		return false
	}
	if j.ctx.Err() != nil {
		j.status = StatusCancelled
		j.finished = time.Now()
		return false
	}
	j.status = StatusRunning
	j.started = time.Now()
	return true
}

func (j *job) finish(err error) Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)):
		j.status = StatusCancelled
	case err != nil:
		j.status = StatusFailed
		j.err = err
	default:
		j.status = StatusCompleted
	}
	j.finished = time.Now()
	j.cancel()
	return j.status
}

// stop cancels the job. An idle job becomes cancelled at once.
func (j *job) stop() {
	j.cancel()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusIdle {
		j.status = StatusCancelled
		j.finished = time.Now()
	}
}

func (j *job) info() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	info := JobInfo{
		ID:          j.id,
		Schema:      j.schema,
		Pipeline:    j.pipeline,
		Status:      j.status,
		Processed:   j.processed.Load(),
		Failed:      j.failed.Load(),
		SubmittedAt: j.submitted,
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	if !j.started.IsZero() {
		t := j.started
		info.StartedAt = &t
	}
	if !j.finished.IsZero() {
		t := j.finished
		info.FinishedAt = &t
	}
	return info
}
