package retrieve

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Registry names and property keys.
const (
	NameRRF                 = "RRF"
	NameWeightedScoreFusion = "WeightedScoreFusion"

	PropK       = "k"
	PropWeights = "weights"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

type upstreams struct {
	inputs []operator.Operator[retrievable.Retrieved]
}

func (u upstreams) Inputs() []operator.Operator[retrievable.Retrieved] { return u.inputs }

// fused accumulates one retrievable across rankings. The first occurrence provides the record.
type fused struct {
	res   retrievable.Retrieved
	score float64
	first int
}

// RRF merges rankings via Reciprocal Rank Fusion:
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
type RRF struct {
	upstreams
	k int
}

var _ metamodel.Aggregator = (*RRF)(nil)

// NewRRF is an AggregatorFactory. Property "k" defaults to 60.
func NewRRF(inputs []operator.Operator[retrievable.Retrieved], _ *metamodel.Schema, props map[string]string) (metamodel.Aggregator, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: %w", NameRRF, domain.ErrEmptyInputs)
	}
	k, err := intProp(props, PropK, rrfK)
	if err != nil {
		return nil, err
	}
	return &RRF{upstreams: upstreams{inputs}, k: k}, nil
}

func (a *RRF) Emit(ctx context.Context, out chan<- retrievable.Retrieved) error {
	lists, err := operator.CollectAll(ctx, a.inputs)
	if err != nil {
		return err
	}
	merged := make(map[uuid.UUID]*fused)
	seq := 0
	for _, list := range lists {
		for rank, r := range list {
			s := 1.0 / float64(a.k+rank+1)
			if existing, ok := merged[r.ID]; ok {
				existing.score += s
				continue
			}
			merged[r.ID] = &fused{res: r, score: s, first: seq}
			seq++
		}
	}
	return emitFused(ctx, out, merged)
}

// WeightedScoreFusion combines the scores of each input with per-input weights.
// score(d) = sum(w_i * score_i(d)) / sum(w_i); a missing or unscored entry counts as 0.
type WeightedScoreFusion struct {
	upstreams
	weights []float64
}

var _ metamodel.Aggregator = (*WeightedScoreFusion)(nil)

// NewWeightedScoreFusion is an AggregatorFactory. Property "weights" is a comma-separated
// list with one weight per input; it defaults to equal weights.
func NewWeightedScoreFusion(
	inputs []operator.Operator[retrievable.Retrieved], _ *metamodel.Schema, props map[string]string,
) (metamodel.Aggregator, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: %w", NameWeightedScoreFusion, domain.ErrEmptyInputs)
	}
	weights := make([]float64, len(inputs))
	for i := range weights {
		weights[i] = 1
	}
	if raw, ok := props[PropWeights]; ok {
		parts := strings.Split(raw, ",")
		if len(parts) != len(inputs) {
			return nil, fmt.Errorf("%w: %d weights for %d inputs", domain.ErrInvalidInput, len(parts), len(inputs))
		}
		for i, p := range parts {
			w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil || w < 0 {
				return nil, fmt.Errorf("%w: invalid weight %q", domain.ErrInvalidInput, p)
			}
			weights[i] = w
		}
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", domain.ErrInvalidInput)
	}
	return &WeightedScoreFusion{upstreams: upstreams{inputs}, weights: weights}, nil
}

func (a *WeightedScoreFusion) Emit(ctx context.Context, out chan<- retrievable.Retrieved) error {
	lists, err := operator.CollectAll(ctx, a.inputs)
	if err != nil {
		return err
	}
	var total float64
	for _, w := range a.weights {
		total += w
	}
	merged := make(map[uuid.UUID]*fused)
	seq := 0
	for i, list := range lists {
		for _, r := range list {
			var s float64
			if r.Scored {
				s = a.weights[i] * r.Score / total
			}
			if existing, ok := merged[r.ID]; ok {
				existing.score += s
				continue
			}
			merged[r.ID] = &fused{res: r, score: s, first: seq}
			seq++
		}
	}
	return emitFused(ctx, out, merged)
}

// emitFused sends results by descending score, ties in first-seen order.
func emitFused(ctx context.Context, out chan<- retrievable.Retrieved, merged map[uuid.UUID]*fused) error {
	all := make([]*fused, 0, len(merged))
	for _, f := range merged {
		all = append(all, f)
	}
	slices.SortFunc(all, func(a, b *fused) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.first, b.first)
	})
	for _, f := range all {
		if err := operator.Send(ctx, out, f.res.WithScore(f.score)); err != nil {
			return err
		}
	}
	return nil
}
