package archipanion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes, used as the "outcome" metric label.
const (
	outcomeOK          = "ok"
	outcomeCanceled    = "canceled"
	outcomeNotFound    = "not_found"
	outcomeRejected    = "rejected"
	outcomeServerError = "server_error"
	outcomeTransport   = "transport_error"
)

// outcome classifies the error of one call.
func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeCanceled
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return outcomeTransport
	}
	switch {
	case IsNotFound(err):
		return outcomeNotFound
	case apiErr.Status >= 500:
		return outcomeServerError
	default:
		return outcomeRejected
	}
}

type sdkMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archipanion",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "archipanion",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK call latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("archipanion: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("archipanion: metric registered with type %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer records every client call. A nil observer records nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	result := outcome(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, result).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}
	attrs := []any{slog.String("op", op), slog.Duration("duration", elapsed)}
	switch result {
	case outcomeOK:
		o.logger.Debug("archipanion call completed", attrs...)
	case outcomeServerError, outcomeTransport:
		o.logger.Warn("archipanion call failed", append(attrs, slog.String("outcome", result), slog.Any("error", err))...)
	default:
		o.logger.Info("archipanion call failed", append(attrs, slog.String("outcome", result), slog.Any("error", err))...)
	}
}
