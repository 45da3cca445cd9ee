package ingest

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/v0idness/archipanion-ve/internal/analyser/averagecolor"
	"github.com/v0idness/archipanion-ve/internal/analyser/filemetadata"
	"github.com/v0idness/archipanion-ve/internal/config"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
	"github.com/v0idness/archipanion-ve/internal/repository/memory"
)

func TestMediaTypeOf(t *testing.T) {
	tests := []struct {
		name string
		want content.Type
		ok   bool
	}{
		{"a.PNG", content.Image, true},
		{"dir/b.jpeg", content.Image, true},
		{"notes.md", content.Text, true},
		{"song.wav", content.Audio, true},
		{"archive.zip", 0, false},
		{"README", 0, false},
	}
	for _, tt := range tests {
		got, ok := MediaTypeOf(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("MediaTypeOf(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFileSystemEnumerator(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.png":         "x",
		"b.txt":         "hello",
		"c.bin":         "skip",
		"sub/d.jpg":     "yy",
		"sub/e.unknown": "",
	}
	for name, data := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	assets, err := operator.Collect(context.Background(), operator.Operator[Asset](NewFileSystemEnumerator(dir, nil)))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var names []string
	for _, a := range assets {
		names = append(names, a.Source.Name)
	}
	if want := []string{"a.png", "b.txt", "d.jpg"}; !slices.Equal(names, want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	if assets[1].Source.MediaType != content.Text || assets[1].Source.Size != 5 {
		t.Errorf("unexpected source %+v", assets[1].Source)
	}

	rc, err := assets[1].Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	buf := make([]byte, 5)
	if _, err := rc.Read(buf); err != nil || string(buf) != "hello" {
		t.Errorf("unexpected content %q, err %v", buf, err)
	}
}

func TestFileSystemEnumerator_MissingRoot(t *testing.T) {
	e := NewFileSystemEnumerator(filepath.Join(t.TempDir(), "missing"), nil)
	if _, err := operator.Collect(context.Background(), operator.Operator[Asset](e)); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestMinioEnumerator(t *testing.T) {
	bucket := &fakeBucket{objects: []minio.ObjectInfo{
		{Key: "media/cat.jpg", Size: 10},
		{Key: "media/data.bin", Size: 3},
		{Key: "media/notes.txt", Size: 4},
	}}
	e := newMinioEnumerator(bucket, "photos", "media/", nil)

	assets, err := operator.Collect(context.Background(), operator.Operator[Asset](e))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !bucket.opts.Recursive || bucket.opts.Prefix != "media/" {
		t.Errorf("unexpected list options %+v", bucket.opts)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if got := assets[0].Source; got.Name != "cat.jpg" || got.URI != "s3://photos/media/cat.jpg" || got.MediaType != content.Image {
		t.Errorf("unexpected source %+v", got)
	}
	if _, err := assets[0].Open(context.Background()); err == nil {
		t.Error("expected open error from fake bucket")
	}
}

func TestMinioEnumerator_ListError(t *testing.T) {
	listErr := errors.New("access denied")
	bucket := &fakeBucket{objects: []minio.ObjectInfo{{Key: "a.png"}, {Err: listErr}}}
	e := newMinioEnumerator(bucket, "b", "", nil)
	if _, err := operator.Collect(context.Background(), operator.Operator[Asset](e)); !errors.Is(err, listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestDecoder(t *testing.T) {
	progress := &countingProgress{}
	dec, err := NewDecoder(content.InMemoryFactory{}, []content.Type{content.Image, content.Text}, progress, nil)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	assets := operator.Slice(
		memAsset("red.png", content.Image, pngBytes(t, color.RGBA{R: 255, A: 255})),
		memAsset("broken.png", content.Image, []byte("not an image")),
		memAsset("notes.txt", content.Text, []byte("hello")),
		memAsset("bad.txt", content.Text, []byte{0xff, 0xfe}),
		memAsset("song.wav", content.Audio, []byte("RIFF")),
	)

	items, err := operator.Collect(context.Background(), dec.Decode(assets))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 decoded items, got %d", len(items))
	}
	if got := progress.failed.Load(); got != 2 {
		t.Errorf("expected 2 failures, got %d", got)
	}
	if items[0].Type() != retrievable.TypeSource || len(items[0].ContentOf(content.Image)) != 1 {
		t.Errorf("unexpected image item %+v", items[0])
	}
	src, ok := items[1].Source()
	if !ok || src.Name != "notes.txt" {
		t.Errorf("unexpected source %+v", src)
	}
	text, err := items[1].ContentOf(content.Text)[0].(content.TextContent).Text()
	if err != nil || text != "hello" {
		t.Errorf("unexpected text %q, err %v", text, err)
	}
}

func TestNewDecoder_Unsupported(t *testing.T) {
	_, err := NewDecoder(content.InMemoryFactory{}, []content.Type{content.Mesh}, nil, nil)
	if !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestChunks(t *testing.T) {
	if got := Chunks("abcdefg", 3); !slices.Equal(got, []string{"abc", "def", "g"}) {
		t.Errorf("unexpected chunks %v", got)
	}
	if got := Chunks("äöüß", 2); !slices.Equal(got, []string{"äö", "üß"}) {
		t.Errorf("chunks must split on runes, got %v", got)
	}
	if got := Chunks("", 2); len(got) != 0 {
		t.Errorf("expected no chunks, got %v", got)
	}
}

func TestTextChunk_Segment(t *testing.T) {
	ictx := &metamodel.IndexContext{ContentFactory: content.InMemoryFactory{}}
	seg, err := NewTextChunk(ictx, map[string]string{ParamChunkSize: "4"})
	if err != nil {
		t.Fatalf("NewTextChunk: %v", err)
	}
	text, _ := content.InMemoryFactory{}.NewText("hello world")
	source := retrievable.NewIngested(retrievable.TypeSource, &retrievable.Source{Name: "a.txt"}, text)
	plain := retrievable.NewIngested(retrievable.TypeSource, nil)

	out, err := operator.Collect(context.Background(), seg.Segment(operator.Slice(source, plain)))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected source, 3 chunks and the plain item, got %d", len(out))
	}
	if out[0] != source || len(source.ContentOf(content.Text)) != 0 {
		t.Error("expected the source first, stripped of text")
	}
	for i, want := range []string{"hell", "o wo", "rld"} {
		chunk := out[i+1]
		if chunk.Type() != retrievable.TypeSegment {
			t.Errorf("chunk %d: unexpected type %s", i, chunk.Type())
		}
		got, _ := chunk.ContentOf(content.Text)[0].(content.TextContent).Text()
		if got != want {
			t.Errorf("chunk %d: got %q, want %q", i, got, want)
		}
		rels := chunk.Relationships()
		if len(rels) != 1 || rels[0].Object != source.ID() || rels[0].Predicate != retrievable.PredicatePartOf {
			t.Errorf("chunk %d: unexpected relationships %+v", i, rels)
		}
	}
	if out[4] != plain {
		t.Error("expected the item without text to pass through")
	}
}

func TestNewTextChunk_InvalidSize(t *testing.T) {
	ictx := &metamodel.IndexContext{ContentFactory: content.InMemoryFactory{}}
	if _, err := NewTextChunk(ictx, map[string]string{ParamChunkSize: "0"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func newSchema(t *testing.T) (*metamodel.Schema, *memory.Connection) {
	t.Helper()
	conn := memory.New("media", nil)
	s := metamodel.NewSchema("media", conn)
	if _, err := s.AddField("color", averagecolor.New(), nil); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if _, err := s.AddField("file", filemetadata.New(), nil); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	return s, conn
}

func pipelineConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		Name:        "all",
		Decoder:     config.DecoderConfig{Types: []string{"IMAGE", "TEXT"}},
		Segmenters:  []config.SegmenterConfig{{Type: NameTextChunk, Parameters: map[string]string{ParamChunkSize: "4"}}},
		Extractors:  []config.ExtractorConfig{{Field: "color"}, {Field: "file"}},
		Parallelism: 2,
		BatchSize:   2,
	}
}

func TestPipeline_Run(t *testing.T) {
	s, conn := newSchema(t)
	source := operator.Slice(
		memAsset("red.png", content.Image, pngBytes(t, color.RGBA{R: 255, A: 255})),
		memAsset("notes.txt", content.Text, []byte("hello world")),
		memAsset("broken.png", content.Image, []byte("garbage")),
		memAsset("song.wav", content.Audio, []byte("RIFF")),
	)
	p, err := NewPipeline(s, pipelineConfig(), Deps{Factory: content.InMemoryFactory{}, Source: source})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	progress := &countingProgress{}
	if err := p.Run(context.Background(), progress); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := progress.processed.Load(); got != 5 {
		t.Errorf("expected 5 processed (2 sources, 3 chunks), got %d", got)
	}
	if got := progress.failed.Load(); got != 1 {
		t.Errorf("expected 1 failure, got %d", got)
	}
	if got := conn.RetrievableCount(); got != 5 {
		t.Errorf("expected 5 stored retrievables, got %d", got)
	}
	if got := conn.DescriptorCount("color"); got != 1 {
		t.Errorf("expected 1 color descriptor, got %d", got)
	}
	if got := conn.DescriptorCount("file"); got != 2 {
		t.Errorf("expected 2 file descriptors, got %d", got)
	}
}

func TestPipeline_RunTwice(t *testing.T) {
	s, conn := newSchema(t)
	source := operator.Slice(memAsset("red.png", content.Image, pngBytes(t, color.White)))
	cfg := pipelineConfig()
	cfg.Segmenters = nil
	p, err := NewPipeline(s, cfg, Deps{Factory: content.InMemoryFactory{}, Source: source})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	for range 2 {
		if err := p.Run(context.Background(), nil); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if got := conn.RetrievableCount(); got != 2 {
		t.Errorf("expected a fresh retrievable per run, got %d", got)
	}
}

func TestNewPipeline_SetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.PipelineConfig)
		want   error
	}{
		{"unknown field", func(c *config.PipelineConfig) {
			c.Extractors = []config.ExtractorConfig{{Field: "shape"}}
		}, domain.ErrFieldNotFound},
		{"unknown segmenter", func(c *config.PipelineConfig) {
			c.Segmenters = []config.SegmenterConfig{{Type: "Shot"}}
		}, domain.ErrFactoryNotFound},
		{"bad segmenter parameter", func(c *config.PipelineConfig) {
			c.Segmenters = []config.SegmenterConfig{{Type: NameTextChunk, Parameters: map[string]string{ParamChunkSize: "x"}}}
		}, domain.ErrInvalidInput},
		{"unknown decoder type", func(c *config.PipelineConfig) {
			c.Decoder.Types = []string{"VIDEO"}
		}, domain.ErrInvalidInput},
		{"undecodable type", func(c *config.PipelineConfig) {
			c.Decoder.Types = []string{"AUDIO"}
		}, domain.ErrUnsupportedOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSchema(t)
			cfg := pipelineConfig()
			tt.mutate(cfg)
			_, err := NewPipeline(s, cfg, Deps{Factory: content.InMemoryFactory{}, Source: operator.Slice[Asset]()})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
