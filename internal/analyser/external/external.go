// Package external provides analysers backed by a remote feature service.
package external

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/analyser"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Registry names and service defaults.
const (
	NameCLIPImage = "CLIPImage"
	NameCLIPText  = "CLIPText"

	DefaultImageEndpoint = "/extract/clip_image"
	DefaultTextEndpoint  = "/extract/clip_text"
	DefaultDimensions    = 512

	// ParamEndpoint overrides the service path of a field.
	ParamEndpoint = "endpoint"
)

// FeatureClient posts one encoded payload and returns the vector.
// An empty vector means the service produced nothing usable.
type FeatureClient interface {
	Extract(ctx context.Context, endpoint, dataURL string) ([]float32, error)
}

// remote holds what both CLIP analysers share.
type remote struct {
	name     string
	types    []content.Type
	client   FeatureClient
	endpoint string
	dims     int
	logger   *zap.Logger
}

func newRemote(name string, t content.Type, client FeatureClient, endpoint string, params map[string]string, logger *zap.Logger) remote {
	if v := params[ParamEndpoint]; v != "" {
		endpoint = v
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return remote{
		name:     name,
		types:    []content.Type{t},
		client:   client,
		endpoint: endpoint,
		dims:     DefaultDimensions,
		logger:   logger.With(zap.String("analyser", name)),
	}
}

// embed encodes elem as a data URL and asks the service for its vector.
func (r *remote) embed(ctx context.Context, elem content.Element) ([]float32, error) {
	payload, err := content.EncodeDataURL(elem)
	if err != nil {
		return nil, fmt.Errorf("encode %s content: %w", elem.Type(), err)
	}
	vec, err := r.client.Extract(ctx, r.endpoint, payload)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		r.logger.Debug("Feature service returned no vector", zap.String("endpoint", r.endpoint))
	}
	return vec, nil
}

func (r *remote) prototype(self metamodel.Analyser, field *metamodel.Field) (descriptor.Descriptor, error) {
	if err := metamodel.CheckBinding(field, self); err != nil {
		return nil, err
	}
	return descriptor.FloatVectorPrototype(analyser.Dimensions(field, r.dims)), nil
}

func (r *remote) extractor(
	self metamodel.Analyser,
	field *metamodel.Field,
	input operator.Operator[*retrievable.Ingested],
	ictx *metamodel.IndexContext,
	persisting bool,
	parameters map[string]string,
) (metamodel.Extractor, error) {
	if err := metamodel.CheckBinding(field, self); err != nil {
		return nil, err
	}
	analyse := analyser.VectorAnalyse(r.types, analyser.Dimensions(field, r.dims), r.embed)
	return analyser.NewExtractor(field, input, ictx, persisting, parameters, analyse), nil
}

func (r *remote) retrieverForDescriptors(
	self metamodel.Analyser, field *metamodel.Field, descs []descriptor.Descriptor, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	if err := metamodel.CheckBinding(field, self); err != nil {
		return nil, err
	}
	src, err := analyser.StaticVectors(descs)
	if err != nil {
		return nil, err
	}
	return analyser.NewVectorRetriever(field, src, qctx), nil
}

func (r *remote) retrieverForContent(
	self metamodel.Analyser, field *metamodel.Field, elems []content.Element, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	if err := metamodel.CheckBinding(field, self); err != nil {
		return nil, err
	}
	src, err := analyser.ContentVectors(r.types, elems, r.embed)
	if err != nil {
		return nil, err
	}
	return analyser.NewVectorRetriever(field, src, qctx), nil
}
