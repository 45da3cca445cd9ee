package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
	queryexec "github.com/v0idness/archipanion-ve/internal/query/execution"
	"github.com/v0idness/archipanion-ve/internal/query/model"
	healthuc "github.com/v0idness/archipanion-ve/internal/usecase/health"
	schemauc "github.com/v0idness/archipanion-ve/internal/usecase/schema"
)

type mockSchemas struct {
	infos   map[string]schemauc.Info
	created int
	initErr error
	dropped int
	dropErr error
}

func (m *mockSchemas) List(context.Context) []schemauc.Info {
	out := make([]schemauc.Info, 0, len(m.infos))
	for _, info := range m.infos {
		out = append(out, info)
	}
	return out
}

func (m *mockSchemas) About(_ context.Context, name string) (schemauc.Info, error) {
	info, ok := m.infos[name]
	if !ok {
		return schemauc.Info{}, domain.ErrSchemaNotFound
	}
	return info, nil
}

func (m *mockSchemas) Initialize(_ context.Context, name string) (int, error) {
	if _, ok := m.infos[name]; !ok {
		return 0, domain.ErrSchemaNotFound
	}
	return m.created, m.initErr
}

func (m *mockSchemas) Drop(_ context.Context, name string) (int, error) {
	if _, ok := m.infos[name]; !ok {
		return 0, domain.ErrSchemaNotFound
	}
	return m.dropped, m.dropErr
}

type mockQuerier struct {
	gotSchema string
	gotDesc   *model.InformationNeedDescription
	results   []queryexec.Result
	err       error
}

func (m *mockQuerier) Query(
	_ context.Context, schema string, desc *model.InformationNeedDescription,
) ([]queryexec.Result, error) {
	m.gotSchema = schema
	m.gotDesc = desc
	return m.results, m.err
}

type mockExtractor struct {
	jobs     map[uuid.UUID]execution.JobInfo
	startErr error
}

func (m *mockExtractor) Start(_ context.Context, schema, pipeline string) (execution.JobInfo, error) {
	if m.startErr != nil {
		return execution.JobInfo{}, m.startErr
	}
	info := execution.JobInfo{ID: uuid.New(), Schema: schema, Pipeline: pipeline, Status: execution.StatusIdle}
	m.jobs[info.ID] = info
	return info, nil
}

func (m *mockExtractor) Job(id uuid.UUID) (execution.JobInfo, error) {
	info, ok := m.jobs[id]
	if !ok {
		return execution.JobInfo{}, domain.ErrJobNotFound
	}
	return info, nil
}

func (m *mockExtractor) Jobs() []execution.JobInfo {
	var out []execution.JobInfo
	for _, info := range m.jobs {
		out = append(out, info)
	}
	return out
}

func (m *mockExtractor) Cancel(id uuid.UUID) (execution.JobInfo, error) {
	info, ok := m.jobs[id]
	if !ok {
		return execution.JobInfo{}, domain.ErrJobNotFound
	}
	info.Status = execution.StatusCancelled
	m.jobs[id] = info
	return info, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type fixture struct {
	schemas *mockSchemas
	query   *mockQuerier
	extract *mockExtractor
	health  *mockHealth
	router  chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		schemas: &mockSchemas{infos: map[string]schemauc.Info{
			"media": {Name: "media", Connection: "memory://media", Pipelines: []string{"images"}},
		}},
		query:   &mockQuerier{},
		extract: &mockExtractor{jobs: make(map[uuid.UUID]execution.JobInfo)},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{healthuc.StorageCheck: healthuc.CheckOK},
		}},
	}
	f.router = chi.NewRouter()
	NewServer(f.schemas, f.query, f.extract, f.health, nil).Routes(f.router)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}
