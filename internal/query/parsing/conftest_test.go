package parsing_test

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/analyser/averagecolor"
	"github.com/v0idness/archipanion-ve/internal/analyser/filemetadata"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
	"github.com/v0idness/archipanion-ve/internal/query/parsing"
	"github.com/v0idness/archipanion-ve/internal/repository/memory"
	"github.com/v0idness/archipanion-ve/internal/retrieve"
)

// fixture is a schema with a color field, a metadata field and a date field,
// holding three images: red a.png, green b.jpg, blue c.png.
type fixture struct {
	schema  *metamodel.Schema
	conn    *memory.Connection
	factory *countingFactory
	ids     map[string]uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	conn := memory.New("test", nil)
	s := metamodel.NewSchema("test", conn)

	colorField, err := s.AddField("color", averagecolor.New(), nil)
	if err != nil {
		t.Fatalf("AddField color: %v", err)
	}
	metaField, err := s.AddField("meta", filemetadata.New(), nil)
	if err != nil {
		t.Fatalf("AddField meta: %v", err)
	}
	if _, err := s.AddField("dates", &dateAnalyser{name: "Dates"}, nil); err != nil {
		t.Fatalf("AddField dates: %v", err)
	}

	f := &fixture{schema: s, conn: conn, factory: &countingFactory{}, ids: make(map[string]uuid.UUID)}
	items := []struct {
		name string
		vec  []float32
		src  *retrievable.Source
	}{
		{"red", []float32{1, 0, 0}, &retrievable.Source{Name: "a.png", Size: 10, MediaType: content.Image}},
		{"green", []float32{0, 1, 0}, &retrievable.Source{Name: "b.jpg", Size: 20, MediaType: content.Image}},
		{"blue", []float32{0, 0, 1}, &retrievable.Source{Name: "c.png", Size: 30, MediaType: content.Image}},
	}
	for _, it := range items {
		r := retrievable.NewIngested(retrievable.TypeSource, it.src)
		if !conn.RetrievableWriter().Add(ctx, r) {
			t.Fatalf("add retrievable %s", it.name)
		}
		f.ids[it.name] = r.ID()

		vec, err := descriptor.NewFloatVector(uuid.New(), r.ID(), it.vec)
		if err != nil {
			t.Fatalf("NewFloatVector: %v", err)
		}
		if !colorField.Writer().Add(ctx, vec) {
			t.Fatalf("add vector %s", it.name)
		}
		meta, err := descriptor.NewMapStruct(uuid.New(), r.ID(), map[string]types.Type{
			filemetadata.ColumnPath:      types.String,
			filemetadata.ColumnSize:      types.Long,
			filemetadata.ColumnExtension: types.String,
		}, filemetadata.Values(it.src))
		if err != nil {
			t.Fatalf("NewMapStruct: %v", err)
		}
		if !metaField.Writer().Add(ctx, meta) {
			t.Fatalf("add metadata %s", it.name)
		}
	}
	return f
}

func (f *fixture) compiler() *parsing.Compiler {
	return parsing.NewCompiler(f.schema, retrieve.NewTransformerRegistry(), retrieve.NewAggregatorRegistry(), f.factory, nil)
}

func run(t *testing.T, op operator.Operator[retrievable.Retrieved]) []retrievable.Retrieved {
	t.Helper()
	out, err := operator.Collect(context.Background(), op)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return out
}

func imageURL(t *testing.T, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	elem, err := content.InMemoryFactory{}.NewImage(img)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	raw, err := content.EncodeDataURL(elem)
	if err != nil {
		t.Fatalf("EncodeDataURL: %v", err)
	}
	return raw
}

// countingFactory counts query content allocations.
type countingFactory struct {
	content.InMemoryFactory
	images int
	texts  int
}

func (f *countingFactory) NewImage(img image.Image) (content.ImageContent, error) {
	f.images++
	return f.InMemoryFactory.NewImage(img)
}

func (f *countingFactory) NewText(text string) (content.TextContent, error) {
	f.texts++
	return f.InMemoryFactory.NewText(text)
}

// dateAnalyser exposes a single DateTime column and offers no retrieval.
type dateAnalyser struct {
	name string
}

var _ metamodel.QueryAnalyser = (*dateAnalyser)(nil)

func (a *dateAnalyser) Name() string                 { return a.name }
func (a *dateAnalyser) ContentTypes() []content.Type { return content.AllTypes }
func (a *dateAnalyser) DescriptorType() string       { return metamodel.DescriptorStruct }

func (a *dateAnalyser) Prototype(field *metamodel.Field) (descriptor.Descriptor, error) {
	if err := metamodel.CheckBinding(field, a); err != nil {
		return nil, err
	}
	return descriptor.MapStructPrototype(map[string]types.Type{"created": types.DateTime}), nil
}

func (a *dateAnalyser) NewExtractor(
	*metamodel.Field, operator.Operator[*retrievable.Ingested], *metamodel.IndexContext, bool, map[string]string,
) (metamodel.Extractor, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (a *dateAnalyser) NewRetrieverForDescriptors(
	*metamodel.Field, []descriptor.Descriptor, *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (a *dateAnalyser) NewRetrieverForContent(
	*metamodel.Field, []content.Element, *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (a *dateAnalyser) NewRetrieverForQuery(
	*metamodel.Field, query.SimpleBooleanQuery, *metamodel.QueryContext,
) (metamodel.Retriever, error) {
	return nil, domain.ErrUnsupportedOperation
}

// downConnection serves everything from memory except descriptor reads.
type downConnection struct {
	*memory.Connection
	err error
}

func (c downConnection) DescriptorReader(*metamodel.Field) metamodel.DescriptorReader {
	return downReader(c)
}

type downReader downConnection

func (r downReader) GetBy(context.Context, uuid.UUID, string) (descriptor.Descriptor, error) {
	return nil, r.err
}

func (r downReader) Query(context.Context, query.Query) ([]retrievable.Retrieved, error) {
	return nil, r.err
}
