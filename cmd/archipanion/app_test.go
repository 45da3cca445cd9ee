package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/v0idness/archipanion-ve/internal/config"
	"github.com/v0idness/archipanion-ve/internal/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		HTTP:     config.HTTPConfig{Port: 8080},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Cache:    config.CacheConfig{Path: t.TempDir()},
		Embedding: config.EmbeddingConfig{
			Providers:   map[string]config.ProviderConfig{"openai": {APIKey: "test-key", BaseURL: "http://127.0.0.1:1"}},
			Vectorizers: map[string]config.VectorizerConfig{"small": {Provider: "openai", Model: "text-embedding-3-small"}},
		},
		Schemas: []config.SchemaConfig{{
			Name: "media",
			Fields: []config.FieldConfig{
				{Name: "color", Analyser: "AverageColor"},
				{Name: "file", Analyser: "FileMetadata"},
				{Name: "caption", Analyser: "OpenAIText"},
				{Name: "clip", Analyser: "CLIPImage"},
			},
			Pipelines: []config.PipelineConfig{{
				Name:       "images",
				Source:     config.SourceConfig{Path: t.TempDir()},
				Extractors: []config.ExtractorConfig{{Field: "color"}, {Field: "file"}},
			}},
		}},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestNewApp_MemoryDriver(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	if a.store != nil {
		t.Error("memory driver must not open a database store")
	}
	info, err := a.schemas.About(context.Background(), "media")
	if err != nil {
		t.Fatalf("About: %v", err)
	}
	if info.Connection != "memory://media" {
		t.Errorf("connection = %q", info.Connection)
	}
	if len(info.Fields) != 4 || info.Fields[2].Analyser != "OpenAIText" {
		t.Errorf("fields = %+v", info.Fields)
	}
	if len(info.Pipelines) != 1 || info.Pipelines[0] != "images" {
		t.Errorf("pipelines = %v", info.Pipelines)
	}

	created, err := a.schemas.Initialize(context.Background(), "media")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if created == 0 {
		t.Error("expected entities to be created")
	}
	dropped, err := a.schemas.Drop(context.Background(), "media")
	if err != nil || dropped != created {
		t.Errorf("Drop = %d, %v; want %d", dropped, err, created)
	}
}

func TestSchemaDrop_RequiresConfirmation(t *testing.T) {
	flagDropYes = false
	err := runSchemaDrop(schemaDropCmd, []string{"media"})
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("expected a confirmation error, got %v", err)
	}
}

func TestNewApp_UnknownAnalyser(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schemas[0].Fields = append(cfg.Schemas[0].Fields, config.FieldConfig{Name: "shape", Analyser: "Shape"})

	_, err := newApp(context.Background(), cfg, zaptest.NewLogger(t))
	if !errors.Is(err, domain.ErrFactoryNotFound) {
		t.Fatalf("expected ErrFactoryNotFound, got %v", err)
	}
}

func TestNewApp_CacheDirLocked(t *testing.T) {
	cfg := testConfig(t)
	first, err := newApp(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer first.close()

	if _, err := newApp(context.Background(), cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected the second app to fail on the locked cache dir")
	}
}

func TestRouter_QueryOverHTTP(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()
	if _, err := a.schemas.Initialize(context.Background(), "media"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	body := `{
		"inputs": {"q": {"type": "VECTOR", "data": [1, 0, 0]}},
		"operations": {"r": {"type": "RETRIEVER", "field": "color", "input": "q"}},
		"output": "r"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/media/query", strings.NewReader(body))
	rr := httptest.NewRecorder()
	newRouter(a).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"retrievables":[]}` {
		t.Errorf("body = %s", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}
