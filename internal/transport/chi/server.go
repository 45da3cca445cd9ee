// Package chi exposes the retrieval engine over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
	logpkg "github.com/v0idness/archipanion-ve/internal/logger"
	queryexec "github.com/v0idness/archipanion-ve/internal/query/execution"
	"github.com/v0idness/archipanion-ve/internal/query/model"
	healthuc "github.com/v0idness/archipanion-ve/internal/usecase/health"
	schemauc "github.com/v0idness/archipanion-ve/internal/usecase/schema"
)

// maxQueryBody bounds a query description.
const maxQueryBody = 4 << 20

// Error codes.
const (
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeSchemaNotFound     = "schema_not_found"
	CodePipelineNotFound   = "pipeline_not_found"
	CodeJobNotFound        = "job_not_found"
	CodeInvalidQuery       = "invalid_query"
	CodeUnsupported        = "unsupported_operation"
	CodeRateLimited        = "rate_limited"
	CodeProviderError      = "embedding_provider_error"
	CodeServiceUnavailable = "service_unavailable"
	CodeInternalError      = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Operation string `json:"operation,omitempty"`
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	Retrievables []queryexec.Result `json:"retrievables"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the HTTP API.
type Server struct {
	schemas       Schemas
	query         Querier
	extract       Extractor
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(schemas Schemas, query Querier, extract Extractor, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		schemas: schemas,
		query:   query,
		extract: extract,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		compileErrorHandler,
		sentinelHandler(domain.ErrSchemaNotFound, http.StatusNotFound, CodeSchemaNotFound),
		sentinelHandler(domain.ErrPipelineNotFound, http.StatusNotFound, CodePipelineNotFound),
		sentinelHandler(domain.ErrJobNotFound, http.StatusNotFound, CodeJobNotFound),
		sentinelHandler(domain.ErrInvalidDescription, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrUnsupportedOperation, http.StatusBadRequest, CodeUnsupported),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrExecutorClosed, http.StatusServiceUnavailable, CodeServiceUnavailable),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api", func(r chi.Router) {
		r.Get("/schemas", s.ListSchemas)
		r.Get("/schemas/{schema}", s.AboutSchema)
		r.Post("/schemas/{schema}/init", s.InitializeSchema)
		r.Delete("/schemas/{schema}", s.DropSchema)
		r.Post("/{schema}/query", s.Query)
		r.Post("/{schema}/extract/{pipeline}", s.StartExtraction)
		r.Get("/jobs", s.ListJobs)
		r.Get("/jobs/{id}", s.GetJob)
		r.Delete("/jobs/{id}", s.CancelJob)
	})
}

// ListSchemas handles GET /api/schemas.
func (s *Server) ListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.schemas.List(r.Context()))
}

// AboutSchema handles GET /api/schemas/{schema}.
func (s *Server) AboutSchema(w http.ResponseWriter, r *http.Request) {
	info, err := s.schemas.About(r.Context(), chi.URLParam(r, "schema"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// InitializeSchema handles POST /api/schemas/{schema}/init.
func (s *Server) InitializeSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "schema")
	created, err := s.schemas.Initialize(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": name, "created": created})
}

// DropSchema handles DELETE /api/schemas/{schema}.
func (s *Server) DropSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "schema")
	dropped, err := s.schemas.Drop(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": name, "dropped": dropped})
}

// Query handles POST /api/{schema}/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxQueryBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "cannot read request body")
		return
	}
	desc, err := model.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, err.Error())
		return
	}

	results, err := s.query.Query(r.Context(), chi.URLParam(r, "schema"), desc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if results == nil {
		results = []queryexec.Result{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{Retrievables: results})
}

// StartExtraction handles POST /api/{schema}/extract/{pipeline}.
func (s *Server) StartExtraction(w http.ResponseWriter, r *http.Request) {
	info, err := s.extract.Start(r.Context(), chi.URLParam(r, "schema"), chi.URLParam(r, "pipeline"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, info)
}

// ListJobs handles GET /api/jobs.
func (s *Server) ListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.extract.Jobs()
	if jobs == nil {
		jobs = []execution.JobInfo{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /api/jobs/{id}.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	info, err := s.extract.Job(id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// CancelJob handles DELETE /api/jobs/{id}.
func (s *Server) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	info, err := s.extract.Cancel(id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HealthCheck handles GET /health. A degraded server still answers 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: report.Status, Checks: report.Checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "job id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSchemaNotFound,
		domain.ErrPipelineNotFound,
		domain.ErrJobNotFound,
		domain.ErrUnsupportedOperation,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrExecutorClosed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	// Validation and compile failures describe the caller's own input.
	if isCompileFault(err) {
		return err.Error()
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// compileSentinels are the causes that make a CompileError the caller's fault.
var compileSentinels = []error{
	domain.ErrFieldNotFound,
	domain.ErrOperationNotFound,
	domain.ErrInputNotFound,
	domain.ErrFactoryNotFound,
	domain.ErrEmptyInputs,
	domain.ErrDescriptorNotFound,
	domain.ErrCycle,
	domain.ErrInvalidDescription,
	domain.ErrInvalidInput,
	domain.ErrUnsupportedOperation,
	domain.ErrNotImplemented,
	domain.ErrAnalyserMismatch,
}

func isCompileFault(err error) bool {
	for _, s := range compileSentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// compileErrorHandler claims compile errors caused by the description itself.
// Storage failures met while compiling fall through to the 500 path.
func compileErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var ce *domain.CompileError
	if !errors.As(err, &ce) || !isCompileFault(ce.Err) {
		return false
	}
	code := CodeInvalidQuery
	if errors.Is(ce.Err, domain.ErrUnsupportedOperation) {
		code = CodeUnsupported
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:      code,
		Message:   safeDomainMessage(ce.Err),
		Operation: ce.Operation,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

var (
	_ Schemas       = (*schemauc.Service)(nil)
	_ HealthChecker = (*healthuc.Service)(nil)
)
