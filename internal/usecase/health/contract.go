package health

import "context"

// Pinger checks storage availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker checks the availability of an auxiliary component such as a
// feature server or an embedding provider.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
