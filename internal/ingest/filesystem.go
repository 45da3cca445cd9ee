package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// FileSystemEnumerator walks a directory tree in lexical order and emits every
// file with a known media type.
type FileSystemEnumerator struct {
	root   string
	logger *zap.Logger
}

var _ operator.Operator[Asset] = (*FileSystemEnumerator)(nil)

// NewFileSystemEnumerator creates an enumerator rooted at root.
func NewFileSystemEnumerator(root string, logger *zap.Logger) *FileSystemEnumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemEnumerator{root: root, logger: logger}
}

func (e *FileSystemEnumerator) Emit(ctx context.Context, out chan<- Asset) error {
	root, err := filepath.Abs(e.root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", e.root, err)
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", p, err)
		}
		if d.IsDir() {
			return nil
		}
		mt, ok := MediaTypeOf(d.Name())
		if !ok {
			e.logger.Debug("Skipping file of unknown media type", zap.String("path", p))
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		asset := Asset{
			Source: retrievable.Source{Name: d.Name(), URI: p, Size: info.Size(), MediaType: mt},
			Open: func(context.Context) (io.ReadCloser, error) {
				return os.Open(filepath.Clean(p))
			},
		}
		return operator.Send(ctx, out, asset)
	})
}
