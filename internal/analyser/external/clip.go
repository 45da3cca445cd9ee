package external

import (
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// CLIPImage embeds images through the feature service.
type CLIPImage struct {
	remote
}

var _ metamodel.Analyser = (*CLIPImage)(nil)

// NewCLIPImage creates an image analyser. The "endpoint" parameter overrides the default path.
func NewCLIPImage(client FeatureClient, params map[string]string, logger *zap.Logger) *CLIPImage {
	return &CLIPImage{newRemote(NameCLIPImage, content.Image, client, DefaultImageEndpoint, params, logger)}
}

// CLIPImageFactory returns an AnalyserFactory bound to client.
func CLIPImageFactory(client FeatureClient, logger *zap.Logger) metamodel.AnalyserFactory {
	return func(params map[string]string) (metamodel.Analyser, error) {
		return NewCLIPImage(client, params, logger), nil
	}
}

func (a *CLIPImage) Name() string                 { return a.name }
func (a *CLIPImage) ContentTypes() []content.Type { return a.types }
func (a *CLIPImage) DescriptorType() string       { return metamodel.DescriptorFloatVector }

func (a *CLIPImage) Prototype(field *metamodel.Field) (descriptor.Descriptor, error) {
	return a.prototype(a, field)
}

func (a *CLIPImage) NewExtractor(
	field *metamodel.Field,
	input operator.Operator[*retrievable.Ingested],
	ictx *metamodel.IndexContext,
	persisting bool,
	parameters map[string]string,
) (metamodel.Extractor, error) {
	return a.extractor(a, field, input, ictx, persisting, parameters)
}

func (a *CLIPImage) NewRetrieverForDescriptors(
	field *metamodel.Field, descs []descriptor.Descriptor, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	return a.retrieverForDescriptors(a, field, descs, qctx)
}

func (a *CLIPImage) NewRetrieverForContent(
	field *metamodel.Field, elems []content.Element, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	return a.retrieverForContent(a, field, elems, qctx)
}

// CLIPText embeds text into the same space as CLIPImage.
type CLIPText struct {
	remote
}

var _ metamodel.Analyser = (*CLIPText)(nil)

// NewCLIPText creates a text analyser. The "endpoint" parameter overrides the default path.
func NewCLIPText(client FeatureClient, params map[string]string, logger *zap.Logger) *CLIPText {
	return &CLIPText{newRemote(NameCLIPText, content.Text, client, DefaultTextEndpoint, params, logger)}
}

// CLIPTextFactory returns an AnalyserFactory bound to client.
func CLIPTextFactory(client FeatureClient, logger *zap.Logger) metamodel.AnalyserFactory {
	return func(params map[string]string) (metamodel.Analyser, error) {
		return NewCLIPText(client, params, logger), nil
	}
}

func (a *CLIPText) Name() string                 { return a.name }
func (a *CLIPText) ContentTypes() []content.Type { return a.types }
func (a *CLIPText) DescriptorType() string       { return metamodel.DescriptorFloatVector }

func (a *CLIPText) Prototype(field *metamodel.Field) (descriptor.Descriptor, error) {
	return a.prototype(a, field)
}

func (a *CLIPText) NewExtractor(
	field *metamodel.Field,
	input operator.Operator[*retrievable.Ingested],
	ictx *metamodel.IndexContext,
	persisting bool,
	parameters map[string]string,
) (metamodel.Extractor, error) {
	return a.extractor(a, field, input, ictx, persisting, parameters)
}

func (a *CLIPText) NewRetrieverForDescriptors(
	field *metamodel.Field, descs []descriptor.Descriptor, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	return a.retrieverForDescriptors(a, field, descs, qctx)
}

func (a *CLIPText) NewRetrieverForContent(
	field *metamodel.Field, elems []content.Element, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	return a.retrieverForContent(a, field, elems, qctx)
}
