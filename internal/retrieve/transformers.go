// Package retrieve holds the transformers and aggregators that post-process query results.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Registry names and property keys.
const (
	NameLimit          = "Limit"
	NameScoreThreshold = "ScoreThreshold"
	NameFieldLookup    = "FieldLookup"

	PropLimit     = "limit"
	PropThreshold = "threshold"
	PropField     = "field"
)

type upstream struct {
	input operator.Operator[retrievable.Retrieved]
}

func (u upstream) Input() operator.Operator[retrievable.Retrieved] { return u.input }

// Limit passes on at most n results, then stops its upstream.
type Limit struct {
	upstream
	n int
}

var _ metamodel.Transformer = (*Limit)(nil)

// NewLimit is a TransformerFactory. Property "limit" defaults to query.DefaultLimit.
func NewLimit(input operator.Operator[retrievable.Retrieved], _ *metamodel.Schema, props map[string]string) (metamodel.Transformer, error) {
	n, err := intProp(props, PropLimit, query.DefaultLimit)
	if err != nil {
		return nil, err
	}
	return &Limit{upstream: upstream{input}, n: n}, nil
}

func (l *Limit) Emit(ctx context.Context, out chan<- retrievable.Retrieved) error {
	in, wait := operator.Start(ctx, l.input, 0)
	sent := 0
	for r := range in {
		if sent == l.n {
			break
		}
		if err := operator.Send(ctx, out, r); err != nil {
			_ = wait()
			return err
		}
		sent++
	}
	return wait()
}

// ScoreThreshold drops results scoring below a threshold. Unscored results are dropped.
type ScoreThreshold struct {
	upstream
	threshold float64
}

var _ metamodel.Transformer = (*ScoreThreshold)(nil)

// NewScoreThreshold is a TransformerFactory. Property "threshold" is required.
func NewScoreThreshold(input operator.Operator[retrievable.Retrieved], _ *metamodel.Schema, props map[string]string) (metamodel.Transformer, error) {
	raw, ok := props[PropThreshold]
	if !ok {
		return nil, fmt.Errorf("%w: %s requires %q", domain.ErrInvalidInput, NameScoreThreshold, PropThreshold)
	}
	th, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", domain.ErrInvalidInput, PropThreshold, raw, err)
	}
	return &ScoreThreshold{upstream: upstream{input}, threshold: th}, nil
}

func (s *ScoreThreshold) Emit(ctx context.Context, out chan<- retrievable.Retrieved) error {
	return operator.Map(s.input, func(_ context.Context, r retrievable.Retrieved) (retrievable.Retrieved, bool, error) {
		return r, r.Scored && r.Score >= s.threshold, nil
	}).Emit(ctx, out)
}

// FieldLookup attaches each result's stored descriptor for one field.
// Results without a descriptor pass through unchanged.
type FieldLookup struct {
	upstream
	field *metamodel.Field
}

var _ metamodel.Transformer = (*FieldLookup)(nil)

// NewFieldLookup is a TransformerFactory. Property "field" names a schema field.
func NewFieldLookup(input operator.Operator[retrievable.Retrieved], schema *metamodel.Schema, props map[string]string) (metamodel.Transformer, error) {
	name, ok := props[PropField]
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s requires %q", domain.ErrInvalidInput, NameFieldLookup, PropField)
	}
	f, err := schema.Field(name)
	if err != nil {
		return nil, err
	}
	return &FieldLookup{upstream: upstream{input}, field: f}, nil
}

func (l *FieldLookup) Emit(ctx context.Context, out chan<- retrievable.Retrieved) error {
	reader := l.field.Reader()
	return operator.Map(l.input, func(ctx context.Context, r retrievable.Retrieved) (retrievable.Retrieved, bool, error) {
		d, err := reader.GetBy(ctx, r.ID, descriptor.ColumnRetrievableID)
		switch {
		case errors.Is(err, domain.ErrDescriptorNotFound):
			return r, true, nil
		case err != nil:
			return r, false, fmt.Errorf("look up %s for %s: %w", l.field.Name(), r.ID, err)
		}
		return r.WithDescriptor(d), true, nil
	}).Emit(ctx, out)
}

func intProp(props map[string]string, key string, def int) (int, error) {
	raw, ok := props[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", domain.ErrInvalidInput, key, raw)
	}
	return n, nil
}
