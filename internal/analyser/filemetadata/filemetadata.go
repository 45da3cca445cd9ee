// Package filemetadata records where a retrievable's source file came from.
package filemetadata

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/analyser"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Name is the registry name.
const Name = "FileMetadata"

// Struct columns.
const (
	ColumnPath      = "path"
	ColumnSize      = "size"
	ColumnExtension = "extension"
)

var columnTypes = map[string]types.Type{
	ColumnPath:      types.String,
	ColumnSize:      types.Long,
	ColumnExtension: types.String,
}

// Analyser describes the source of every retrievable regardless of its content.
type Analyser struct {
	name string
}

var _ metamodel.QueryAnalyser = (*Analyser)(nil)

// New creates an analyser instance.
func New() *Analyser { return &Analyser{name: Name} }

// Factory creates an analyser for one field.
func Factory(map[string]string) (metamodel.Analyser, error) { return New(), nil }

func (a *Analyser) Name() string                 { return a.name }
func (a *Analyser) ContentTypes() []content.Type { return content.AllTypes }
func (a *Analyser) DescriptorType() string       { return metamodel.DescriptorStruct }

func (a *Analyser) Prototype(field *metamodel.Field) (descriptor.Descriptor, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	return descriptor.MapStructPrototype(columnTypes), nil
}

// NewExtractor attaches one descriptor per retrievable that has a source.
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
	return analyser.NewExtractor(field, input, ictx, persisting, parameters, analyse), nil
}

// NewRetrieverForDescriptors finds retrievables sharing the first descriptor's path.
func (a *Analyser) NewRetrieverForDescriptors(
	field *metamodel.Field, descs []descriptor.Descriptor, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("%w: no descriptor to retrieve by", domain.ErrInvalidInput)
	}
	s, ok := descs[0].(*descriptor.MapStruct)
	if !ok {
		return nil, fmt.Errorf("%w: expected struct descriptor, got %T", domain.ErrInvalidInput, descs[0])
	}
	path := s.Value(ColumnPath)
	if path == nil {
		return nil, fmt.Errorf("%w: descriptor has no %s", domain.ErrInvalidInput, ColumnPath)
	}
	q := query.SimpleBooleanQuery{Attribute: ColumnPath, Comparison: query.EQ, Value: path}
	return analyser.NewBooleanRetriever(field, q, qctx), nil
}

// NewRetrieverForContent is unsupported: raw content carries no file metadata.
func (a *Analyser) NewRetrieverForContent(
	field *metamodel.Field, _ []content.Element, _ *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s cannot retrieve by content", domain.ErrUnsupportedOperation, Name)
}

// NewRetrieverForQuery compares one metadata column.
func (a *Analyser) NewRetrieverForQuery(
	field *metamodel.Field, q query.SimpleBooleanQuery, qctx *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	t, ok := columnTypes[q.Attribute]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no column %q", domain.ErrFieldNotFound, Name, q.Attribute)
	}
	if q.Value == nil || q.Value.Type() != t {
		return nil, fmt.Errorf("%w: column %q expects %s", domain.ErrInvalidInput, q.Attribute, t)
	}
	return analyser.NewBooleanRetriever(field, q, qctx), nil
}

func analyse(_ context.Context, r *retrievable.Ingested) ([]descriptor.Descriptor, error) {
	src, ok := r.Source()
	if !ok {
		return nil, nil
	}
	d, err := descriptor.NewMapStruct(uuid.New(), r.ID(), columnTypes, Values(src))
	if err != nil {
		return nil, err
	}
	return []descriptor.Descriptor{d}, nil
}

// Values maps a source to column values.
func Values(src *retrievable.Source) map[string]types.Value {
	path := src.URI
	if path == "" {
		path = src.Name
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return map[string]types.Value{
		ColumnPath:      types.StringValue(path),
		ColumnSize:      types.LongValue(src.Size),
		ColumnExtension: types.StringValue(ext),
	}
}
