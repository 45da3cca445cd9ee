package metamodel

import (
	"context"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// stubAnalyser binds by instance and builds nothing.
type stubAnalyser struct {
	name string
}

func (a *stubAnalyser) Name() string                 { return a.name }
func (a *stubAnalyser) ContentTypes() []content.Type { return []content.Type{content.Image} }
func (a *stubAnalyser) DescriptorType() string       { return DescriptorFloatVector }

func (a *stubAnalyser) Prototype(field *Field) (descriptor.Descriptor, error) {
	if err := CheckBinding(field, a); err != nil {
		return nil, err
	}
	return descriptor.FloatVectorPrototype(3), nil
}

func (a *stubAnalyser) NewExtractor(
	field *Field, _ operator.Operator[*retrievable.Ingested], _ *IndexContext, _ bool, _ map[string]string,
) (Extractor, error) {
	if err := CheckBinding(field, a); err != nil {
		return nil, err
	}
	return nil, domain.ErrUnsupportedOperation
}

func (a *stubAnalyser) NewRetrieverForDescriptors(field *Field, _ []descriptor.Descriptor, _ *QueryContext) (Retriever, error) {
	if err := CheckBinding(field, a); err != nil {
		return nil, err
	}
	return nil, domain.ErrUnsupportedOperation
}

func (a *stubAnalyser) NewRetrieverForContent(field *Field, _ []content.Element, _ *QueryContext) (Retriever, error) {
	if err := CheckBinding(field, a); err != nil {
		return nil, err
	}
	return nil, domain.ErrUnsupportedOperation
}

// stubConnection records which field each accessor was asked for.
type stubConnection struct {
	readerFor []*Field
}

func (c *stubConnection) Description() string                      { return "stub" }
func (c *stubConnection) RetrievableInitializer() Initializer      { return stubInitializer{} }
func (c *stubConnection) RetrievableReader() RetrievableReader     { return nil }
func (c *stubConnection) RetrievableWriter() RetrievableWriter     { return nil }
func (c *stubConnection) DescriptorInitializer(*Field) Initializer { return stubInitializer{} }
func (c *stubConnection) DescriptorWriter(*Field) DescriptorWriter { return nil }
func (c *stubConnection) Close() error                             { return nil }

func (c *stubConnection) DescriptorReader(f *Field) DescriptorReader {
	c.readerFor = append(c.readerFor, f)
	return stubReader{}
}

type stubInitializer struct{}

func (stubInitializer) IsInitialized(context.Context) bool { return true }
func (stubInitializer) Initialize(context.Context) error   { return nil }

type stubReader struct{}

func (stubReader) GetBy(context.Context, uuid.UUID, string) (descriptor.Descriptor, error) {
	return nil, domain.ErrDescriptorNotFound
}

func (stubReader) Query(context.Context, query.Query) ([]retrievable.Retrieved, error) {
	return nil, nil
}
