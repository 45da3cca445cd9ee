package archipanion

import (
	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
	queryexec "github.com/v0idness/archipanion-ve/internal/query/execution"
	schemauc "github.com/v0idness/archipanion-ve/internal/usecase/schema"
)

// SchemaInfo describes a schema and its storage state.
type SchemaInfo = schemauc.Info

// FieldInfo describes one schema field.
type FieldInfo = schemauc.FieldInfo

// Result is one retrieved item. Score is 0 for unscored results.
type Result = queryexec.Result

// Job is a point-in-time view of an extraction job.
type Job = execution.JobInfo

// JobStatus is the lifecycle state of an extraction job.
type JobStatus = execution.Status

// Job states.
const (
	JobIdle      = execution.StatusIdle
	JobRunning   = execution.StatusRunning
	JobCompleted = execution.StatusCompleted
	JobFailed    = execution.StatusFailed
	JobCancelled = execution.StatusCancelled
)
