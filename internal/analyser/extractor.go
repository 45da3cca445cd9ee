// Package analyser holds the building blocks shared by concrete analysers:
// a batching extractor and vector/boolean retrievers.
package analyser

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/metrics"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Parameter keys understood by Extractor.
const (
	ParamParallelism = "parallelism"
	ParamBatchSize   = "batch_size"
)

const (
	defaultParallelism = 1
	defaultBatchSize   = 100
)

// AnalyseFunc derives descriptors for one retrievable. An error marks the item as failed;
// the item is still passed downstream.
type AnalyseFunc func(ctx context.Context, r *retrievable.Ingested) ([]descriptor.Descriptor, error)

// Extractor attaches descriptors to each retrievable and optionally persists them in batches.
type Extractor struct {
	field       *metamodel.Field
	input       operator.Operator[*retrievable.Ingested]
	persisting  bool
	analyse     AnalyseFunc
	parallelism int
	batchSize   int
	logger      *zap.Logger
}

var _ metamodel.Extractor = (*Extractor)(nil)

// NewExtractor builds an Extractor. Parallelism and batch size come from parameters,
// falling back to the index context.
func NewExtractor(
	field *metamodel.Field,
	input operator.Operator[*retrievable.Ingested],
	ictx *metamodel.IndexContext,
	persisting bool,
	parameters map[string]string,
	analyse AnalyseFunc,
) *Extractor {
	e := &Extractor{
		field:       field,
		input:       input,
		persisting:  persisting,
		analyse:     analyse,
		parallelism: defaultParallelism,
		batchSize:   defaultBatchSize,
		logger:      ictx.Log().With(zap.String("field", field.Name())),
	}
	if ictx != nil && ictx.Parallelism > 0 {
		e.parallelism = ictx.Parallelism
	}
	if ictx != nil && ictx.BatchSize > 0 {
		e.batchSize = ictx.BatchSize
	}
	e.parallelism = intParam(parameters, ParamParallelism, e.parallelism)
	e.batchSize = intParam(parameters, ParamBatchSize, e.batchSize)
	return e
}

// Field returns the field descriptors are extracted for.
func (e *Extractor) Field() *metamodel.Field { return e.field }

// Input returns the upstream operator.
func (e *Extractor) Input() operator.Operator[*retrievable.Ingested] { return e.input }

// Persisting reports whether descriptors are written to storage.
func (e *Extractor) Persisting() bool { return e.persisting }

type analysed struct {
	item  *retrievable.Ingested
	descs []descriptor.Descriptor
}

// Emit analyses items up to parallelism at a time, preserving input order.
// A failed batch write is logged and does not stop the stream. Pending descriptors
// are not written once ctx is cancelled.
func (e *Extractor) Emit(ctx context.Context, out chan<- *retrievable.Ingested) error {
	fieldName := e.field.Name()
	stage := operator.OrderedMap(e.input, e.parallelism,
		func(ctx context.Context, r *retrievable.Ingested) (analysed, bool, error) {
			descs, err := e.analyse(ctx, r)
			if err != nil {
				if ctx.Err() != nil {
					return analysed{}, false, ctx.Err()
				}
				e.logger.Warn("Failed to analyse retrievable",
					zap.String("retrievable_id", r.ID().String()), zap.Error(err))
				metrics.PipelineItemsTotal.WithLabelValues(fieldName, "failed").Inc()
				return analysed{item: r}, true, nil
			}
			for _, d := range descs {
				r.AddDescriptor(d)
			}
			metrics.PipelineItemsTotal.WithLabelValues(fieldName, "ok").Inc()
			return analysed{item: r, descs: descs}, true, nil
		})

	var writer metamodel.DescriptorWriter
	if e.persisting {
		writer = e.field.Writer()
	}
	batch := make([]descriptor.Descriptor, 0, e.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		status := "ok"
		if !writer.AddAll(ctx, batch) {
			status = "failed"
			e.logger.Error("Failed to persist descriptor batch", zap.Int("count", len(batch)))
		}
		metrics.DescriptorWritesTotal.WithLabelValues(fieldName, status).Inc()
		batch = batch[:0]
	}

	in, wait := operator.Start(ctx, stage, 0)
	for a := range in {
		if writer != nil {
			batch = append(batch, a.descs...)
			if len(batch) >= e.batchSize {
				flush()
			}
		}
		if err := operator.Send(ctx, out, a.item); err != nil {
			_ = wait()
			return err
		}
	}
	if err := wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if writer != nil {
		flush()
	}
	return nil
}

func intParam(parameters map[string]string, key string, def int) int {
	v, ok := parameters[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
