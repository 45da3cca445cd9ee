package ingest

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"io"
	"slices"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// MaxTextSize bounds the bytes read from one text asset.
const MaxTextSize = 16 << 20

// Progress receives per-item outcomes of a running pipeline.
type Progress interface {
	Processed()
	Failed()
}

type noProgress struct{}

func (noProgress) Processed() {}
func (noProgress) Failed()    {}

// Decoder turns assets into source retrievables whose content lives in the content factory.
// Assets of types it does not decode are skipped; assets that fail to decode are
// logged, reported to progress and skipped.
type Decoder struct {
	factory  content.Factory
	types    []content.Type
	progress Progress
	logger   *zap.Logger
}

// NewDecoder creates a decoder for image and text media. Other types are rejected.
func NewDecoder(factory content.Factory, types []content.Type, progress Progress, logger *zap.Logger) (*Decoder, error) {
	for _, t := range types {
		if t != content.Image && t != content.Text {
			return nil, fmt.Errorf("%w: no decoder for %s media", domain.ErrUnsupportedOperation, t)
		}
	}
	if progress == nil {
		progress = noProgress{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{factory: factory, types: slices.Clone(types), progress: progress, logger: logger}, nil
}

// Decode builds the decoding stage over assets.
func (d *Decoder) Decode(assets operator.Operator[Asset]) operator.Operator[*retrievable.Ingested] {
	return operator.Map(assets, func(ctx context.Context, a Asset) (*retrievable.Ingested, bool, error) {
		if !slices.Contains(d.types, a.Source.MediaType) {
			d.logger.Info("Skipping unsupported media",
				zap.String("source", a.Source.Name), zap.Stringer("type", a.Source.MediaType))
			return nil, false, nil
		}
		elem, err := d.decode(ctx, a)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			d.logger.Error("Failed to decode asset", zap.String("source", a.Source.URI), zap.Error(err))
			d.progress.Failed()
			return nil, false, nil
		}
		src := a.Source
		return retrievable.NewIngested(retrievable.TypeSource, &src, elem), true, nil
	})
}

func (d *Decoder) decode(ctx context.Context, a Asset) (content.Element, error) {
	rc, err := a.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	switch a.Source.MediaType {
	case content.Image:
		img, _, err := image.Decode(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: decode image: %w", domain.ErrInvalidInput, err)
		}
		return d.factory.NewImage(img)
	case content.Text:
		data, err := io.ReadAll(io.LimitReader(rc, MaxTextSize))
		if err != nil {
			return nil, fmt.Errorf("read text: %w", err)
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: text is not valid UTF-8", domain.ErrInvalidInput)
		}
		return d.factory.NewText(string(data))
	default:
		return nil, fmt.Errorf("%w: %s media", domain.ErrUnsupportedOperation, a.Source.MediaType)
	}
}
