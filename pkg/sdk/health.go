package archipanion

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // "storage", "feature", "vectorizer:<name>" -> "ok"/"error"
}

// Health checks the health of all server components. An unhealthy server
// answers 503, which is reported as a status rather than an error.
func (c *Client) Health(ctx context.Context) (status HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	err = c.do(ctx, http.MethodGet, "/health", nil, &status, http.StatusServiceUnavailable)
	return status, err
}
