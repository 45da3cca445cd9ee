package metamodel

import (
	"maps"
	"strconv"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain/content"
)

// Query context property keys.
const (
	PropertyLimit = "limit"
)

// QueryContext carries query-wide properties plus per-operation overrides.
type QueryContext struct {
	global    map[string]string
	local     map[string]map[string]string
	operation string
}

// NewQueryContext creates a context from global and per-operation properties.
func NewQueryContext(global map[string]string, local map[string]map[string]string) *QueryContext {
	l := make(map[string]map[string]string, len(local))
	for op, props := range local {
		l[op] = maps.Clone(props)
	}
	return &QueryContext{global: maps.Clone(global), local: l}
}

// Scope returns a view of c bound to one operation's local properties.
func (c *QueryContext) Scope(operation string) *QueryContext {
	if c == nil {
		return &QueryContext{operation: operation}
	}
	return &QueryContext{global: c.global, local: c.local, operation: operation}
}

// Operation returns the operation this view is scoped to.
func (c *QueryContext) Operation() string {
	if c == nil {
		return ""
	}
	return c.operation
}

// Property returns a local property of the scoped operation, falling back to the global value.
func (c *QueryContext) Property(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	if v, ok := c.local[c.operation][key]; ok {
		return v, true
	}
	v, ok := c.global[key]
	return v, ok
}

// IntProperty parses a property as a positive integer, returning def when absent or invalid.
func (c *QueryContext) IntProperty(key string, def int) int {
	v, ok := c.Property(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// IndexContext carries ingestion-wide collaborators.
type IndexContext struct {
	ContentFactory content.Factory
	Logger         *zap.Logger
	// Parallelism bounds concurrent per-item analysis inside one extractor.
	Parallelism int
	// BatchSize is the number of descriptors an extractor buffers before AddAll.
	BatchSize int
}

// Log returns the configured logger or a no-op logger.
func (c *IndexContext) Log() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
