package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"sync/atomic"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
)

type countingProgress struct {
	processed atomic.Int64
	failed    atomic.Int64
}

func (p *countingProgress) Processed() { p.processed.Add(1) }
func (p *countingProgress) Failed()    { p.failed.Add(1) }

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func memAsset(name string, mt content.Type, data []byte) Asset {
	return Asset{
		Source: retrievable.Source{Name: name, Size: int64(len(data)), MediaType: mt},
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// fakeBucket serves a fixed object listing.
type fakeBucket struct {
	objects []minio.ObjectInfo
	opts    minio.ListObjectsOptions
}

func (b *fakeBucket) ListObjects(ctx context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	b.opts = opts
	ch := make(chan minio.ObjectInfo)
	go func() {
		defer close(ch)
		for _, o := range b.objects {
			select {
			case ch <- o:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (b *fakeBucket) GetObject(context.Context, string, string, minio.GetObjectOptions) (*minio.Object, error) {
	return nil, io.ErrUnexpectedEOF
}
