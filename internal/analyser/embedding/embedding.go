// Package embedding maps text to vectors through an embedding provider.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/v0idness/archipanion-ve/internal/analyser"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Name is the registry name.
const Name = "OpenAIText"

var contentTypes = []content.Type{content.Text}

// Analyser embeds text elements with an Embedder.
type Analyser struct {
	embedder domain.Embedder
	dims     int
}

var _ metamodel.Analyser = (*Analyser)(nil)

// New creates an analyser producing vectors of dims dimensions.
func New(embedder domain.Embedder, dims int) *Analyser {
	return &Analyser{embedder: embedder, dims: dims}
}

// Factory returns an AnalyserFactory bound to embedder. dims is the provider's default output size.
func Factory(embedder domain.Embedder, dims int) metamodel.AnalyserFactory {
	return func(map[string]string) (metamodel.Analyser, error) {
		if embedder == nil {
			return nil, fmt.Errorf("%w: %s needs an embedding provider", domain.ErrInvalidInput, Name)
		}
		return New(embedder, dims), nil
	}
}

// ParamVectorizer names the configured vectorizer a field embeds with.
const ParamVectorizer = "vectorizer"

// Vectorizer is a named embedding provider and its output size.
type Vectorizer struct {
	Embedder   domain.Embedder
	Dimensions int
}

// VectorizerFactory returns an AnalyserFactory that binds each field to the vectorizer
// named by its "vectorizer" parameter. With a single vectorizer the parameter is optional.
func VectorizerFactory(vectorizers map[string]Vectorizer) metamodel.AnalyserFactory {
	return func(params map[string]string) (metamodel.Analyser, error) {
		name := params[ParamVectorizer]
		if name == "" && len(vectorizers) == 1 {
			for n := range vectorizers {
				name = n
			}
		}
		v, ok := vectorizers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a known %s parameter, got %q",
				domain.ErrInvalidInput, Name, ParamVectorizer, name)
		}
		return Factory(v.Embedder, v.Dimensions)(params)
	}
}

func (a *Analyser) Name() string                 { return Name }
func (a *Analyser) ContentTypes() []content.Type { return contentTypes }
func (a *Analyser) DescriptorType() string       { return metamodel.DescriptorFloatVector }

func (a *Analyser) Prototype(field *metamodel.Field) (descriptor.Descriptor, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	return descriptor.FloatVectorPrototype(analyser.Dimensions(field, a.dims)), nil
}

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
	analyse := analyser.VectorAnalyse(contentTypes, analyser.Dimensions(field, a.dims), a.embed)
	return analyser.NewExtractor(field, input, ictx, persisting, parameters, analyse), nil
}

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

func (a *Analyser) NewRetrieverForContent(
	field *metamodel.Field, elems []content.Element, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	src, err := analyser.ContentVectors(contentTypes, elems, a.embed)
	if err != nil {
		return nil, err
	}
	return analyser.NewVectorRetriever(field, src, qctx), nil
}

// embed skips blank text.
func (a *Analyser) embed(ctx context.Context, elem content.Element) ([]float32, error) {
	tc, ok := elem.(content.TextContent)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not text", domain.ErrInvalidInput, elem.Type())
	}
	text, err := tc.Text()
	if err != nil {
		return nil, fmt.Errorf("load text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	res, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return res.Embedding, nil
}
