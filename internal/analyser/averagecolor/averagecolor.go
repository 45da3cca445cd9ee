// Package averagecolor derives the mean RGB colour of an image.
package averagecolor

import (
	"context"
	"fmt"
	"image"

	"github.com/v0idness/archipanion-ve/internal/analyser"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Name is the registry name.
const Name = "AverageColor"

const dimensions = 3

var contentTypes = []content.Type{content.Image}

// Analyser maps images to a 3-dimensional RGB vector in [0,1].
type Analyser struct {
	name string
}

var _ metamodel.Analyser = (*Analyser)(nil)

// New creates an analyser instance.
func New() *Analyser { return &Analyser{name: Name} }

// Factory creates an analyser for one field.
func Factory(map[string]string) (metamodel.Analyser, error) { return New(), nil }

func (a *Analyser) Name() string                 { return a.name }
func (a *Analyser) ContentTypes() []content.Type { return contentTypes }
func (a *Analyser) DescriptorType() string       { return metamodel.DescriptorFloatVector }

// Prototype returns a zero 3-dimensional vector.
func (a *Analyser) Prototype(field *metamodel.Field) (descriptor.Descriptor, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	return descriptor.FloatVectorPrototype(dimensions), nil
}

// NewExtractor builds an extractor computing one vector per image element.
func (a *Analyser) NewExtractor(
	field *metamodel.Field,
	input operator.Operator[*retrievable.Ingested],
	ictx *metamodel.IndexContext,
	persisting bool,
	parameters map[string]string,
) (metamodel.Extractor, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	analyse := analyser.VectorAnalyse(contentTypes, dimensions, embed)
	return analyser.NewExtractor(field, input, ictx, persisting, parameters, analyse), nil
}

// NewRetrieverForDescriptors builds a nearest-neighbour retriever.
func (a *Analyser) NewRetrieverForDescriptors(
	field *metamodel.Field, descs []descriptor.Descriptor, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	src, err := analyser.StaticVectors(descs)
	if err != nil {
		return nil, err
	}
	return analyser.NewVectorRetriever(field, src, qctx), nil
}

// NewRetrieverForContent averages the query images and retrieves by the result.
func (a *Analyser) NewRetrieverForContent(
	field *metamodel.Field, elems []content.Element, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	src, err := analyser.ContentVectors(contentTypes, elems, embed)
	if err != nil {
		return nil, err
	}
	return analyser.NewVectorRetriever(field, src, qctx), nil
}

func embed(_ context.Context, elem content.Element) ([]float32, error) {
	ic, ok := elem.(content.ImageContent)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an image", domain.ErrInvalidInput, elem.Type())
	}
	img, err := ic.Image()
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	return Mean(img), nil
}

// Mean returns the mean red, green and blue of img scaled to [0,1]. An empty image yields nil.
func Mean(img image.Image) []float32 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n <= 0 {
		return nil
	}
	var r, g, bl float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r += float64(pr)
			g += float64(pg)
			bl += float64(pb)
		}
	}
	scale := float64(n) * 0xffff
	return []float32{float32(r / scale), float32(g / scale), float32(bl / scale)}
}
