package chi

import (
	"context"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
	queryexec "github.com/v0idness/archipanion-ve/internal/query/execution"
	"github.com/v0idness/archipanion-ve/internal/query/model"
	healthuc "github.com/v0idness/archipanion-ve/internal/usecase/health"
	schemauc "github.com/v0idness/archipanion-ve/internal/usecase/schema"
)

// Schemas describes, initializes and drops schemas.
type Schemas interface {
	List(ctx context.Context) []schemauc.Info
	About(ctx context.Context, name string) (schemauc.Info, error)
	Initialize(ctx context.Context, name string) (int, error)
	Drop(ctx context.Context, name string) (int, error)
}

// Querier answers information needs.
type Querier interface {
	Query(ctx context.Context, schema string, desc *model.InformationNeedDescription) ([]queryexec.Result, error)
}

// Extractor starts and tracks extraction jobs.
type Extractor interface {
	Start(ctx context.Context, schema, pipeline string) (execution.JobInfo, error)
	Job(id uuid.UUID) (execution.JobInfo, error)
	Jobs() []execution.JobInfo
	Cancel(id uuid.UUID) (execution.JobInfo, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
