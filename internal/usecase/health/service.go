package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a failing auxiliary component. Queries on fields
	// that do not depend on it still work.
	Degraded Status = "degraded"
	// Unhealthy indicates that storage is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// StorageCheck is the report key of the storage ping.
const StorageCheck = "storage"

const defaultTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name    string
	checker Checker
}

// Service coordinates health checks.
type Service struct {
	storage    Pinger
	components []component
	timeout    time.Duration
}

// New creates a Service pinging storage. A non-positive timeout selects 5s.
func New(storage Pinger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{storage: storage, timeout: timeout}
}

// Register adds a named component. Not safe for use concurrently with Check.
func (s *Service) Register(name string, c Checker) {
	s.components = append(s.components, component{name: name, checker: c})
}

// Check runs every check concurrently, each bounded by the service timeout.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.components)+1)
	probe := func(i int, fn func(context.Context) error) func() error {
		return func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = CheckOK
			if err := fn(cctx); err != nil {
				results[i] = CheckError
			}
			return nil
		}
	}

	var g errgroup.Group
	g.Go(probe(0, s.storage.Ping))
	for i, c := range s.components {
		g.Go(probe(i+1, c.checker.HealthCheck))
	}
	_ = g.Wait()

	checks := make(map[string]CheckResult, len(results))
	checks[StorageCheck] = results[0]
	status := Healthy
	for i, c := range s.components {
		checks[c.name] = results[i+1]
		if results[i+1] == CheckError {
			status = Degraded
		}
	}
	if results[0] == CheckError {
		status = Unhealthy
	}
	return Report{Status: status, Checks: checks}
}
