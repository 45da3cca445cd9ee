// Package execution runs ingestion pipelines as asynchronous jobs.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/ingest"
	"github.com/v0idness/archipanion-ve/internal/metrics"
)

// Runnable is an ingestion pipeline.
type Runnable interface {
	Name() string
	Run(ctx context.Context, progress ingest.Progress) error
}

// Config sizes the server.
type Config struct {
	Workers    int
	QueueSize  int
	JobHistory int
	JobTTL     time.Duration
}

// Server runs submitted pipelines on a bounded worker pool and remembers
// recent jobs for status queries.
type Server struct {
	pool   *workerPool
	jobs   *expirable.LRU[uuid.UUID, *job]
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewServer starts the worker pool.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JobHistory <= 0 {
		cfg.JobHistory = 128
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		pool:   newWorkerPool(cfg.Workers, cfg.QueueSize),
		jobs:   expirable.NewLRU[uuid.UUID, *job](cfg.JobHistory, nil, cfg.JobTTL),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Submit queues p for execution. It blocks while the queue is full, until ctx ends.
func (s *Server) Submit(ctx context.Context, schema string, p Runnable) (JobInfo, error) {
	j := newJob(s.ctx, schema, p.Name())
	s.jobs.Add(j.id, j)
	if err := s.pool.submit(ctx, func() { s.run(j, p) }); err != nil {
		j.stop()
		s.jobs.Remove(j.id)
		return JobInfo{}, fmt.Errorf("submit pipeline %s: %w", p.Name(), err)
	}
	s.logger.Info("Extraction job submitted",
		zap.String("job_id", j.id.String()), zap.String("schema", schema), zap.String("pipeline", p.Name()))
	return j.info(), nil
}

func (s *Server) run(j *job, p Runnable) {
	log := s.logger.With(zap.String("job_id", j.id.String()), zap.String("pipeline", p.Name()))
	if !j.start() {
		log.Info("Extraction job cancelled before start")
		metrics.JobsTotal.WithLabelValues(string(StatusCancelled)).Inc()
		return
	}
	err := p.Run(j.ctx, j)
	status := j.finish(err)
	metrics.JobsTotal.WithLabelValues(string(status)).Inc()

	info := j.info()
	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.Int64("processed", info.Processed),
		zap.Int64("failed", info.Failed),
	}
	if status == StatusFailed {
		log.Error("Extraction job failed", append(fields, zap.Error(err))...)
		return
	}
	log.Info("Extraction job finished", fields...)
}

// Job returns the state of a known job.
func (s *Server) Job(id uuid.UUID) (JobInfo, error) {
	j, ok := s.jobs.Get(id)
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return j.info(), nil
}

// Jobs returns every remembered job, oldest first.
func (s *Server) Jobs() []JobInfo {
	jobs := s.jobs.Values()
	out := make([]JobInfo, len(jobs))
	for i, j := range jobs {
		out[i] = j.info()
	}
	return out
}

// Cancel stops a job. Cancelling a finished job has no effect.
func (s *Server) Cancel(id uuid.UUID) (JobInfo, error) {
	j, ok := s.jobs.Get(id)
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	j.stop()
	return j.info(), nil
}

// Close cancels every job and waits for the workers to exit.
func (s *Server) Close() {
	s.cancel()
	s.pool.close()
}
