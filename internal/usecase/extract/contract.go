package extract

import (
	"context"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/ingest"
	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
)

// Pipelines resolves configured pipelines.
type Pipelines interface {
	Pipeline(schema, name string) (*ingest.Pipeline, error)
}

// Executor runs pipelines as jobs.
type Executor interface {
	Submit(ctx context.Context, schema string, p execution.Runnable) (execution.JobInfo, error)
	Job(id uuid.UUID) (execution.JobInfo, error)
	Jobs() []execution.JobInfo
	Cancel(id uuid.UUID) (execution.JobInfo, error)
}
