package ingest

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Segmenter names.
const (
	NamePassThrough = "PassThrough"
	NameTextChunk   = "TextChunk"
)

// ParamChunkSize is the TextChunk window size in runes.
const (
	ParamChunkSize   = "size"
	DefaultChunkSize = 512
)

// Segmenter splits retrievables into smaller ones.
type Segmenter interface {
	Segment(upstream operator.Operator[*retrievable.Ingested]) operator.Operator[*retrievable.Ingested]
}

// SegmenterFactory creates a segmenter from stage parameters.
type SegmenterFactory func(ictx *metamodel.IndexContext, parameters map[string]string) (Segmenter, error)

// NewSegmenterRegistry returns a registry holding every built-in segmenter.
func NewSegmenterRegistry() *metamodel.Registry[SegmenterFactory] {
	r := metamodel.NewRegistry[SegmenterFactory]("segmenter")
	_ = r.Register(NamePassThrough, func(*metamodel.IndexContext, map[string]string) (Segmenter, error) {
		return PassThrough{}, nil
	})
	_ = r.Register(NameTextChunk, NewTextChunk)
	return r
}

// PassThrough treats every source as a single segment.
type PassThrough struct{}

func (PassThrough) Segment(upstream operator.Operator[*retrievable.Ingested]) operator.Operator[*retrievable.Ingested] {
	return upstream
}

// TextChunk cuts text content into fixed-size rune windows. Each window becomes a
// segment that is part of its source. The source is emitted first, without its text.
// Retrievables without text pass through unchanged.
type TextChunk struct {
	size    int
	factory content.Factory
	logger  *zap.Logger
}

// NewTextChunk creates a chunking segmenter.
func NewTextChunk(ictx *metamodel.IndexContext, parameters map[string]string) (Segmenter, error) {
	size := DefaultChunkSize
	if raw, ok := parameters[ParamChunkSize]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive integer, got %q", domain.ErrInvalidInput, ParamChunkSize, raw)
		}
		size = n
	}
	if ictx == nil || ictx.ContentFactory == nil {
		return nil, fmt.Errorf("%w: text chunking needs a content factory", domain.ErrInvalidInput)
	}
	return &TextChunk{size: size, factory: ictx.ContentFactory, logger: ictx.Log()}, nil
}

func (s *TextChunk) Segment(upstream operator.Operator[*retrievable.Ingested]) operator.Operator[*retrievable.Ingested] {
	return operator.Func[*retrievable.Ingested](func(ctx context.Context, out chan<- *retrievable.Ingested) error {
		in, wait := operator.Start(ctx, upstream, 0)
		for r := range in {
			if err := s.split(ctx, r, out); err != nil {
				_ = wait()
				return err
			}
		}
		return wait()
	})
}

func (s *TextChunk) split(ctx context.Context, r *retrievable.Ingested, out chan<- *retrievable.Ingested) error {
	texts := r.ContentOf(content.Text)
	if len(texts) == 0 {
		return operator.Send(ctx, out, r)
	}

	var rest []content.Element
	for _, e := range r.Content() {
		if e.Type() != content.Text {
			rest = append(rest, e)
		}
	}
	r.ClearContent()
	r.AddContent(rest...)

	var segments []*retrievable.Ingested
	for _, e := range texts {
		text, err := e.(content.TextContent).Text()
		if err != nil {
			s.logger.Error("Failed to read text content", zap.String("retrievable_id", r.ID().String()), zap.Error(err))
			continue
		}
		for _, chunk := range Chunks(text, s.size) {
			elem, err := s.factory.NewText(chunk)
			if err != nil {
				return fmt.Errorf("allocate text chunk: %w", err)
			}
			seg := retrievable.NewIngested(retrievable.TypeSegment, nil, elem)
			seg.Relate(retrievable.PredicatePartOf, r.ID())
			segments = append(segments, seg)
		}
	}

	if err := operator.Send(ctx, out, r); err != nil {
		return err
	}
	for _, seg := range segments {
		if err := operator.Send(ctx, out, seg); err != nil {
			return err
		}
	}
	return nil
}

// Chunks splits text into windows of at most size runes. Empty text yields none.
func Chunks(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
