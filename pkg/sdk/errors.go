package archipanion

import (
	"errors"
	"fmt"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrSchemaNotFound         = domain.ErrSchemaNotFound
	ErrPipelineNotFound       = domain.ErrPipelineNotFound
	ErrJobNotFound            = domain.ErrJobNotFound
	ErrInvalidDescription     = domain.ErrInvalidDescription
	ErrUnsupportedOperation   = domain.ErrUnsupportedOperation
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrExecutorClosed         = domain.ErrExecutorClosed

	// ErrUnauthorized signals a missing or rejected API key.
	ErrUnauthorized = errors.New("unauthorized")
)

// sentinels maps API error codes to the errors they report.
var sentinels = map[string]error{
	"schema_not_found":         ErrSchemaNotFound,
	"pipeline_not_found":       ErrPipelineNotFound,
	"job_not_found":            ErrJobNotFound,
	"invalid_query":            ErrInvalidDescription,
	"unsupported_operation":    ErrUnsupportedOperation,
	"rate_limited":             ErrRateLimited,
	"embedding_provider_error": ErrEmbeddingProviderError,
	"service_unavailable":      ErrExecutorClosed,
	"unauthorized":             ErrUnauthorized,
}

// APIError is a non-2xx API reply.
type APIError struct {
	Status    int
	Code      string `json:"code"`
	Message   string `json:"message"`
	Operation string `json:"operation,omitempty"` // failing query operation, if any
}

func (e *APIError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("archipanion: %d %s: operation %q: %s", e.Status, e.Code, e.Operation, e.Message)
	}
	return fmt.Sprintf("archipanion: %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap exposes the matching sentinel error.
func (e *APIError) Unwrap() error { return sentinels[e.Code] }
