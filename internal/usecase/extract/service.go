// Package extract starts and tracks ingestion jobs.
package extract

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
)

// Service submits configured pipelines to the executor.
type Service struct {
	pipelines Pipelines
	executor  Executor
}

// New creates an extraction service.
func New(pipelines Pipelines, executor Executor) *Service {
	return &Service{pipelines: pipelines, executor: executor}
}

// Start queues the named pipeline of schema.
func (s *Service) Start(ctx context.Context, schema, pipeline string) (execution.JobInfo, error) {
	p, err := s.pipelines.Pipeline(schema, pipeline)
	if err != nil {
		return execution.JobInfo{}, err
	}
	info, err := s.executor.Submit(ctx, schema, p)
	if err != nil {
		return execution.JobInfo{}, fmt.Errorf("submit %s/%s: %w", schema, pipeline, err)
	}
	return info, nil
}

// Job reports the state of a job.
func (s *Service) Job(id uuid.UUID) (execution.JobInfo, error) {
	return s.executor.Job(id)
}

// Jobs lists the retained jobs.
func (s *Service) Jobs() []execution.JobInfo {
	return s.executor.Jobs()
}

// Cancel stops a job.
func (s *Service) Cancel(id uuid.UUID) (execution.JobInfo, error) {
	return s.executor.Cancel(id)
}
