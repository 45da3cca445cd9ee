package analyser

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
)

// ParamDimensions overrides an analyser's default vector length.
const ParamDimensions = "dimensions"

// VectorFunc embeds one content element. An empty vector means the element yields nothing.
type VectorFunc func(ctx context.Context, elem content.Element) ([]float32, error)

// Dimensions returns the field's configured vector length or def.
func Dimensions(field *metamodel.Field, def int) int {
	return intParam(field.Parameters(), ParamDimensions, def)
}

// VectorAnalyse embeds every element of r whose type is in types.
func VectorAnalyse(types []content.Type, dims int, fn VectorFunc) AnalyseFunc {
	return func(ctx context.Context, r *retrievable.Ingested) ([]descriptor.Descriptor, error) {
		var out []descriptor.Descriptor
		for _, elem := range r.Content() {
			if !slices.Contains(types, elem.Type()) {
				continue
			}
			vec, err := fn(ctx, elem)
			if err != nil {
				return nil, err
			}
			if len(vec) == 0 {
				continue
			}
			if len(vec) != dims {
				return nil, fmt.Errorf("%w: vector has %d dimensions, field expects %d", domain.ErrInvalidInput, len(vec), dims)
			}
			d, err := descriptor.NewFloatVector(uuid.New(), r.ID(), vec)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	}
}

// ContentVectors embeds elems lazily when the retriever runs.
// Elements of a type outside types are rejected up front.
func ContentVectors(types []content.Type, elems []content.Element, fn VectorFunc) (VectorSource, error) {
	for _, e := range elems {
		if !slices.Contains(types, e.Type()) {
			return nil, fmt.Errorf("%w: content type %s not accepted", domain.ErrInvalidInput, e.Type())
		}
	}
	return func(ctx context.Context) ([]*descriptor.FloatVector, error) {
		vecs := make([]*descriptor.FloatVector, 0, len(elems))
		for _, e := range elems {
			vec, err := fn(ctx, e)
			if err != nil {
				return nil, err
			}
			if len(vec) == 0 {
				continue
			}
			vecs = append(vecs, descriptor.NewTransientFloatVector(vec))
		}
		return vecs, nil
	}, nil
}
