package schema

import (
	"context"
	"testing"

	"github.com/v0idness/archipanion-ve/internal/analyser/averagecolor"
	"github.com/v0idness/archipanion-ve/internal/analyser/filemetadata"
	"github.com/v0idness/archipanion-ve/internal/config"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/ingest"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
	"github.com/v0idness/archipanion-ve/internal/repository/memory"
)

func newSchema(t *testing.T, name string) *metamodel.Schema {
	t.Helper()
	s := metamodel.NewSchema(name, memory.New(name, nil))
	if _, err := s.AddField("color", averagecolor.New(), nil); err != nil {
		t.Fatalf("AddField color: %v", err)
	}
	if _, err := s.AddField("file", filemetadata.New(), map[string]string{"note": "x"}); err != nil {
		t.Fatalf("AddField file: %v", err)
	}
	return s
}

func newPipeline(t *testing.T, s *metamodel.Schema, name string) *ingest.Pipeline {
	t.Helper()
	p, err := ingest.NewPipeline(s, &config.PipelineConfig{
		Name:       name,
		Decoder:    config.DecoderConfig{Types: []string{"IMAGE"}},
		Extractors: []config.ExtractorConfig{{Field: "color"}},
	}, ingest.Deps{Factory: content.InMemoryFactory{}, Source: operator.Slice[ingest.Asset]()})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

// failingInitializer refuses to initialize.
type failingInitializer struct{ err error }

func (f failingInitializer) IsInitialized(context.Context) bool { return false }
func (f failingInitializer) Initialize(context.Context) error   { return f.err }

// brokenConnection wraps a memory connection whose field initializers fail.
type brokenConnection struct {
	*memory.Connection
	err error
}

func (c brokenConnection) DescriptorInitializer(*metamodel.Field) metamodel.Initializer {
	return failingInitializer{err: c.err}
}
