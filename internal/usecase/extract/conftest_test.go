package extract

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/analyser/averagecolor"
	"github.com/v0idness/archipanion-ve/internal/config"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/ingest"
	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
	"github.com/v0idness/archipanion-ve/internal/repository/memory"
)

type mockPipelines struct {
	pipelines map[string]*ingest.Pipeline
}

func (m *mockPipelines) Pipeline(schema, name string) (*ingest.Pipeline, error) {
	p, ok := m.pipelines[schema+"/"+name]
	if !ok {
		return nil, domain.ErrPipelineNotFound
	}
	return p, nil
}

type mockExecutor struct {
	submitted []string
	submitErr error
	jobs      map[uuid.UUID]execution.JobInfo
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{jobs: make(map[uuid.UUID]execution.JobInfo)}
}

func (m *mockExecutor) Submit(_ context.Context, schema string, p execution.Runnable) (execution.JobInfo, error) {
	if m.submitErr != nil {
		return execution.JobInfo{}, m.submitErr
	}
	m.submitted = append(m.submitted, schema+"/"+p.Name())
	info := execution.JobInfo{ID: uuid.New(), Schema: schema, Pipeline: p.Name(), Status: execution.StatusIdle}
	m.jobs[info.ID] = info
	return info, nil
}

func (m *mockExecutor) Job(id uuid.UUID) (execution.JobInfo, error) {
	info, ok := m.jobs[id]
	if !ok {
		return execution.JobInfo{}, domain.ErrJobNotFound
	}
	return info, nil
}

func (m *mockExecutor) Jobs() []execution.JobInfo {
	out := make([]execution.JobInfo, 0, len(m.jobs))
	for _, info := range m.jobs {
		out = append(out, info)
	}
	return out
}

func (m *mockExecutor) Cancel(id uuid.UUID) (execution.JobInfo, error) {
	info, ok := m.jobs[id]
	if !ok {
		return execution.JobInfo{}, domain.ErrJobNotFound
	}
	info.Status = execution.StatusCancelled
	m.jobs[id] = info
	return info, nil
}

func newPipeline(t *testing.T, name string) *ingest.Pipeline {
	t.Helper()
	s := metamodel.NewSchema("media", memory.New("media", nil))
	if _, err := s.AddField("color", averagecolor.New(), nil); err != nil {
		t.Fatalf("AddField: %v", err)
	}
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
