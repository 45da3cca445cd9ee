// Package execution runs compiled queries and shapes their results.
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/metrics"
	"github.com/v0idness/archipanion-ve/internal/operator"
	"github.com/v0idness/archipanion-ve/internal/query/model"
	"github.com/v0idness/archipanion-ve/internal/query/parsing"
)

// Result is the public shape of one query result. Score is 0 for unscored results.
type Result struct {
	ID    uuid.UUID   `json:"id"`
	Score float64     `json:"score"`
	Parts []uuid.UUID `json:"parts"`
}

// NewResult converts a retrieved record.
func NewResult(r retrievable.Retrieved) Result {
	parts := r.Parts
	if parts == nil {
		parts = []uuid.UUID{}
	}
	res := Result{ID: r.ID, Parts: parts}
	if r.Scored {
		res.Score = r.Score
	}
	return res
}

// Runner compiles and executes queries against one schema.
type Runner struct {
	schema   *metamodel.Schema
	compiler *parsing.Compiler
	logger   *zap.Logger
}

// NewRunner creates a runner with the built-in transformers and aggregators.
func NewRunner(
	schema *metamodel.Schema,
	transformers *metamodel.Registry[metamodel.TransformerFactory],
	aggregators *metamodel.Registry[metamodel.AggregatorFactory],
	factory content.Factory,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		schema:   schema,
		compiler: parsing.NewCompiler(schema, transformers, aggregators, factory, logger),
		logger:   logger,
	}
}

// Schema returns the queried schema.
func (r *Runner) Schema() *metamodel.Schema { return r.schema }

// Run compiles desc and drains its output operator.
// Compilation errors carry domain.CompileError; execution errors are returned as raised.
func (r *Runner) Run(ctx context.Context, desc *model.InformationNeedDescription) ([]Result, error) {
	start := time.Now()
	op, err := r.compiler.Compile(ctx, desc)
	metrics.QueryCompileDuration.WithLabelValues(r.schema.Name(), status(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	start = time.Now()
	retrieved, err := operator.Collect(ctx, op)
	metrics.QueryExecuteDuration.WithLabelValues(r.schema.Name(), status(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		r.logger.Error("Query execution failed", zap.String("schema", r.schema.Name()), zap.Error(err))
		return nil, err
	}

	results := make([]Result, len(retrieved))
	for i, rv := range retrieved {
		results[i] = NewResult(rv)
	}
	r.logger.Debug("Query executed",
		zap.String("schema", r.schema.Name()),
		zap.Int("results", len(results)),
		zap.Duration("took", time.Since(start)))
	return results, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
