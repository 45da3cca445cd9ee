// Package ingest turns media sources into retrievables and runs them through extraction.
package ingest

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
)

// Asset is one enumerated media object, not yet decoded.
type Asset struct {
	Source retrievable.Source
	Open   func(ctx context.Context) (io.ReadCloser, error)
}

var mediaTypes = map[string]content.Type{
	"png":  content.Image,
	"jpg":  content.Image,
	"jpeg": content.Image,
	"gif":  content.Image,
	"txt":  content.Text,
	"md":   content.Text,
	"text": content.Text,
	"wav":  content.Audio,
	"obj":  content.Mesh,
}

// MediaTypeOf guesses the media type of a file from its extension.
func MediaTypeOf(name string) (content.Type, bool) {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	t, ok := mediaTypes[ext]
	return t, ok
}
