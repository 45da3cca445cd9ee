package metamodel

import (
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Descriptor kinds an analyser can declare.
const (
	DescriptorFloatVector = "FloatVector"
	DescriptorStruct      = "Struct"
)

// Analyser specifies one analysis capability: how content of its declared types
// maps to its descriptor kind, and how to build ingestion and query operators for a Field.
//
// Every constructor must reject a Field bound to a different Analyser instance
// (see CheckBinding) and return domain.ErrUnsupportedOperation for roles it does not offer.
type Analyser interface {
	Name() string
	ContentTypes() []content.Type
	DescriptorType() string

	// Prototype returns a structurally valid, semantically empty descriptor for field.
	Prototype(field *Field) (descriptor.Descriptor, error)

	NewExtractor(
		field *Field,
		input operator.Operator[*retrievable.Ingested],
		ictx *IndexContext,
		persisting bool,
		parameters map[string]string,
	) (Extractor, error)

	NewRetrieverForDescriptors(field *Field, descriptors []descriptor.Descriptor, qctx *QueryContext) (Retriever, error)

	// NewRetrieverForContent builds a retriever that first analyses content into descriptors.
	NewRetrieverForContent(field *Field, elems []content.Element, qctx *QueryContext) (Retriever, error)
}

// QueryAnalyser is implemented by analysers whose descriptors support boolean retrieval.
type QueryAnalyser interface {
	Analyser
	NewRetrieverForQuery(field *Field, q query.SimpleBooleanQuery, qctx *QueryContext) (Retriever, error)
}
