package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Persister stores every retrievable and its relationships before extraction.
// A retrievable that cannot be stored is reported to progress and dropped.
type Persister struct {
	writer   metamodel.RetrievableWriter
	progress Progress
	logger   *zap.Logger
}

// NewPersister creates a persister writing through writer.
func NewPersister(writer metamodel.RetrievableWriter, progress Progress, logger *zap.Logger) *Persister {
	if progress == nil {
		progress = noProgress{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{writer: writer, progress: progress, logger: logger}
}

// Persist builds the persisting stage over upstream.
func (p *Persister) Persist(upstream operator.Operator[*retrievable.Ingested]) operator.Operator[*retrievable.Ingested] {
	return operator.Map(upstream, func(ctx context.Context, r *retrievable.Ingested) (*retrievable.Ingested, bool, error) {
		if !p.writer.Add(ctx, r) {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			p.logger.Error("Failed to persist retrievable", zap.String("retrievable_id", r.ID().String()))
			p.progress.Failed()
			return nil, false, nil
		}
		for _, rel := range r.Relationships() {
			if !p.writer.Connect(ctx, rel) {
				p.logger.Warn("Failed to persist relationship",
					zap.String("subject", rel.Subject.String()),
					zap.String("predicate", rel.Predicate),
					zap.String("object", rel.Object.String()))
			}
		}
		return r, true, nil
	})
}
