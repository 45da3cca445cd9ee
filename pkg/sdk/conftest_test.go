package archipanion

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/analyser/averagecolor"
	"github.com/v0idness/archipanion-ve/internal/config"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/ingest"
	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/repository/memory"
	"github.com/v0idness/archipanion-ve/internal/retrieve"
	chiTransport "github.com/v0idness/archipanion-ve/internal/transport/chi"
	extractuc "github.com/v0idness/archipanion-ve/internal/usecase/extract"
	healthuc "github.com/v0idness/archipanion-ve/internal/usecase/health"
	queryuc "github.com/v0idness/archipanion-ve/internal/usecase/query"
	schemauc "github.com/v0idness/archipanion-ve/internal/usecase/schema"
)

const testAPIKey = "test-key"

type nopPinger struct{}

func (nopPinger) Ping(context.Context) error { return nil }

// server is a real API over an in-memory schema "media" holding a red and a blue item.
type server struct {
	*httptest.Server
	red, blue uuid.UUID
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()

	conn := memory.New("media", nil)
	s := metamodel.NewSchema("media", conn)
	f, err := s.AddField("color", averagecolor.New(), nil)
	if err != nil {
		t.Fatalf("AddField: %v", err)
	}
	srv := &server{}
	for _, item := range []struct {
		id  *uuid.UUID
		vec []float32
	}{{&srv.red, []float32{1, 0, 0}}, {&srv.blue, []float32{0, 0, 1}}} {
		r := retrievable.NewIngested(retrievable.TypeSource, nil)
		conn.RetrievableWriter().Add(ctx, r)
		d, err := descriptor.NewFloatVector(uuid.New(), r.ID(), item.vec)
		if err != nil {
			t.Fatalf("NewFloatVector: %v", err)
		}
		f.Writer().Add(ctx, d)
		*item.id = r.ID()
	}

	p, err := ingest.NewPipeline(s, &config.PipelineConfig{
		Name:       "local",
		Source:     config.SourceConfig{Type: config.SourceFilesystem, Path: t.TempDir()},
		Decoder:    config.DecoderConfig{Types: []string{"IMAGE"}},
		Extractors: []config.ExtractorConfig{{Field: "color"}},
	}, ingest.Deps{Factory: content.InMemoryFactory{}})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	catalog := schemauc.NewCatalog()
	if err := catalog.Add(s, p); err != nil {
		t.Fatalf("catalog.Add: %v", err)
	}

	executor := execution.NewServer(execution.Config{Workers: 1, QueueSize: 1}, nil)
	t.Cleanup(executor.Close)
	query, err := queryuc.New(catalog,
		retrieve.NewTransformerRegistry(), retrieve.NewAggregatorRegistry(), content.InMemoryFactory{}, nil)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(chiTransport.APIKeyAuth([]string{testAPIKey}, nil))
	chiTransport.NewServer(
		schemauc.New(catalog, nil), query, extractuc.New(catalog, executor),
		healthuc.New(nopPinger{}, 0), nil,
	).Routes(r)

	srv.Server = httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *server) *Client {
	t.Helper()
	c, err := New(srv.URL, WithAPIKey(testAPIKey))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
