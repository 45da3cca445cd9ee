package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldNotFound signals a field name that is not part of the schema.
	ErrFieldNotFound = errors.New("field not found")
	// ErrSchemaNotFound signals an unknown schema name.
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrOperationNotFound signals an operation name missing from a query description.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrInputNotFound signals an input name missing from a query description.
	ErrInputNotFound = errors.New("input not found")
	// ErrFactoryNotFound signals that no factory is registered under a name.
	ErrFactoryNotFound = errors.New("factory not found")
	// ErrEmptyInputs signals an aggregator without inputs.
	ErrEmptyInputs = errors.New("empty inputs")
	// ErrCycle signals a cyclic operation graph.
	ErrCycle = errors.New("operation graph contains a cycle")
	// ErrInvalidDescription signals a malformed query description.
	ErrInvalidDescription = errors.New("invalid information need description")

	// ErrDescriptorNotFound signals a missing descriptor.
	ErrDescriptorNotFound = errors.New("descriptor not found")
	// ErrRetrievableNotFound signals a missing retrievable.
	ErrRetrievableNotFound = errors.New("retrievable not found")

	// ErrUnsupportedOperation signals a capability an analyser or backend does not offer.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrAnalyserMismatch signals a field bound to a different analyser instance.
	ErrAnalyserMismatch = errors.New("field is not bound to this analyser")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidInput signals malformed input data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCacheClosed signals an allocation on a closed content cache.
	ErrCacheClosed = errors.New("content cache closed")

	// ErrJobNotFound signals an unknown or expired extraction job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrExecutorClosed signals a submission to a stopped execution server.
	ErrExecutorClosed = errors.New("execution server closed")
	// ErrPipelineNotFound signals an unknown pipeline name.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// CompileError attributes a query compilation failure to a named operation.
type CompileError struct {
	Operation string
	Err       error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("operation %q: %s", e.Operation, e.Err.Error())
}

func (e *CompileError) Unwrap() error { return e.Err }

// NewCompileError wraps err with the operation it was raised for.
func NewCompileError(operation string, err error) error {
	return &CompileError{Operation: operation, Err: err}
}
