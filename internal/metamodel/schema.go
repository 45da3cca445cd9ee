// Package metamodel binds named fields to analysers and storage.
package metamodel

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Schema is a named set of fields sharing one storage connection.
type Schema struct {
	name string
	conn Connection

	mu     sync.RWMutex
	fields []*Field
	byName map[string]*Field
}

// NewSchema creates an empty schema.
func NewSchema(name string, conn Connection) *Schema {
	return &Schema{name: name, conn: conn, byName: make(map[string]*Field)}
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Connection returns the storage connection.
func (s *Schema) Connection() Connection { return s.conn }

// AddField registers a field. Field names are unique within a schema.
func (s *Schema) AddField(name string, analyser Analyser, parameters map[string]string) (*Field, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: field name is required", domain.ErrInvalidInput)
	}
	if analyser == nil {
		return nil, fmt.Errorf("%w: field %q has no analyser", domain.ErrInvalidInput, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[name]; ok {
		return nil, fmt.Errorf("%w: duplicate field %q", domain.ErrInvalidInput, name)
	}
	f := &Field{
		name:       name,
		schema:     s,
		analyser:   analyser,
		parameters: maps.Clone(parameters),
	}
	s.fields = append(s.fields, f)
	s.byName[name] = f
	return f, nil
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (*Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in schema %q", domain.ErrFieldNotFound, name, s.name)
	}
	return f, nil
}

// Fields returns all fields in registration order.
func (s *Schema) Fields() []*Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.fields)
}

// Field binds a name to one analyser instance and the schema's storage.
type Field struct {
	name       string
	schema     *Schema
	analyser   Analyser
	parameters map[string]string
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Schema returns the owning schema.
func (f *Field) Schema() *Schema { return f.schema }

// Analyser returns the bound analyser.
func (f *Field) Analyser() Analyser { return f.analyser }

// Parameter returns a configured parameter.
func (f *Field) Parameter(key string) (string, bool) {
	v, ok := f.parameters[key]
	return v, ok
}

// Parameters returns a copy of the configured parameters.
func (f *Field) Parameters() map[string]string { return maps.Clone(f.parameters) }

// Reader returns the descriptor reader for this field.
func (f *Field) Reader() DescriptorReader { return f.schema.conn.DescriptorReader(f) }

// Writer returns the descriptor writer for this field.
func (f *Field) Writer() DescriptorWriter { return f.schema.conn.DescriptorWriter(f) }

// Initializer returns the descriptor storage initializer for this field.
func (f *Field) Initializer() Initializer { return f.schema.conn.DescriptorInitializer(f) }

// Prototype returns the analyser prototype for this field.
func (f *Field) Prototype() (descriptor.Descriptor, error) { return f.analyser.Prototype(f) }

// Extractor builds an ingestion operator for this field.
func (f *Field) Extractor(
	input operator.Operator[*retrievable.Ingested], ictx *IndexContext, persisting bool,
) (Extractor, error) {
	return f.analyser.NewExtractor(f, input, ictx, persisting, f.parameters)
}

// RetrieverForDescriptors builds a retriever from existing descriptors.
func (f *Field) RetrieverForDescriptors(descs []descriptor.Descriptor, qctx *QueryContext) (Retriever, error) {
	return f.analyser.NewRetrieverForDescriptors(f, descs, qctx)
}

// RetrieverForContent builds a retriever from raw content.
func (f *Field) RetrieverForContent(elems []content.Element, qctx *QueryContext) (Retriever, error) {
	return f.analyser.NewRetrieverForContent(f, elems, qctx)
}

// RetrieverForQuery builds a boolean retriever if the analyser supports it.
func (f *Field) RetrieverForQuery(q query.SimpleBooleanQuery, qctx *QueryContext) (Retriever, error) {
	qa, ok := f.analyser.(QueryAnalyser)
	if !ok {
		return nil, fmt.Errorf("%w: analyser %s has no boolean retrieval", domain.ErrUnsupportedOperation, f.analyser.Name())
	}
	return qa.NewRetrieverForQuery(f, q, qctx)
}

// CheckBinding fails unless field is bound to exactly the analyser instance a.
func CheckBinding(field *Field, a Analyser) error {
	if field == nil {
		return fmt.Errorf("%w: nil field", domain.ErrInvalidInput)
	}
	if field.analyser != a {
		return fmt.Errorf("%w: field %q uses %s", domain.ErrAnalyserMismatch, field.name, field.analyser.Name())
	}
	return nil
}

// Accepts reports whether a handles content of type t.
func Accepts(a Analyser, t content.Type) bool {
	return slices.Contains(a.ContentTypes(), t)
}
