package analyser

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// VectorSource yields the query vectors when the retriever runs.
type VectorSource func(ctx context.Context) ([]*descriptor.FloatVector, error)

// VectorRetriever runs one proximity query per query vector and emits the merged
// candidates by descending score. A candidate hit by several vectors keeps its best score.
type VectorRetriever struct {
	field  *metamodel.Field
	source VectorSource
	k      int
}

var _ metamodel.Retriever = (*VectorRetriever)(nil)

// NewVectorRetriever builds a retriever whose k is the context's limit property.
func NewVectorRetriever(field *metamodel.Field, source VectorSource, qctx *metamodel.QueryContext) *VectorRetriever {
	return &VectorRetriever{
		field:  field,
		source: source,
		k:      qctx.IntProperty(metamodel.PropertyLimit, query.DefaultLimit),
	}
}

// StaticVectors adapts existing descriptors to a VectorSource.
// Every descriptor must be a float vector.
func StaticVectors(descs []descriptor.Descriptor) (VectorSource, error) {
	vecs := make([]*descriptor.FloatVector, 0, len(descs))
	for _, d := range descs {
		v, ok := d.(*descriptor.FloatVector)
		if !ok {
			return nil, fmt.Errorf("%w: expected float vector descriptor, got %T", domain.ErrInvalidInput, d)
		}
		vecs = append(vecs, v)
	}
	return func(context.Context) ([]*descriptor.FloatVector, error) { return vecs, nil }, nil
}

// Field returns the queried field.
func (r *VectorRetriever) Field() *metamodel.Field { return r.field }

// K returns the neighbour count per query vector.
func (r *VectorRetriever) K() int { return r.k }

// Emit queries the field's reader.
func (r *VectorRetriever) Emit(ctx context.Context, out chan<- retrievable.Retrieved) error {
	vecs, err := r.source(ctx)
	if err != nil {
		return fmt.Errorf("prepare query vectors for %s: %w", r.field.Name(), err)
	}
	reader := r.field.Reader()

	best := make(map[uuid.UUID]retrievable.Retrieved)
	for _, v := range vecs {
		results, err := reader.Query(ctx, query.ProximityQuery{Descriptor: v, K: r.k})
		if err != nil {
			return fmt.Errorf("query %s: %w", r.field.Name(), err)
		}
		for _, res := range results {
			if prev, ok := best[res.ID]; !ok || res.Score > prev.Score {
				best[res.ID] = res
			}
		}
	}

	merged := make([]retrievable.Retrieved, 0, len(best))
	for _, res := range best {
		merged = append(merged, res)
	}
	slices.SortFunc(merged, func(a, b retrievable.Retrieved) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	if len(merged) > r.k {
		merged = merged[:r.k]
	}
	for _, res := range merged {
		if err := operator.Send(ctx, out, res); err != nil {
			return err
		}
	}
	return nil
}

// BooleanRetriever runs a single comparison query against a struct field.
type BooleanRetriever struct {
	field *metamodel.Field
	query query.SimpleBooleanQuery
}

var _ metamodel.Retriever = (*BooleanRetriever)(nil)

// NewBooleanRetriever builds a retriever for q. A zero limit takes the context's limit property.
func NewBooleanRetriever(field *metamodel.Field, q query.SimpleBooleanQuery, qctx *metamodel.QueryContext) *BooleanRetriever {
	if q.Limit <= 0 {
		q.Limit = qctx.IntProperty(metamodel.PropertyLimit, query.DefaultLimit)
	}
	return &BooleanRetriever{field: field, query: q}
}

// Field returns the queried field.
func (r *BooleanRetriever) Field() *metamodel.Field { return r.field }

// Query returns the bound predicate.
func (r *BooleanRetriever) Query() query.SimpleBooleanQuery { return r.query }

// Emit streams matches in storage order.
func (r *BooleanRetriever) Emit(ctx context.Context, out chan<- retrievable.Retrieved) error {
	results, err := r.field.Reader().Query(ctx, r.query)
	if err != nil {
		return fmt.Errorf("query %s: %w", r.field.Name(), err)
	}
	for _, res := range results {
		if err := operator.Send(ctx, out, res); err != nil {
			return err
		}
	}
	return nil
}
