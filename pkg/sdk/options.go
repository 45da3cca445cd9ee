package archipanion

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultTimeout = 30 * time.Second

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	apiKey     string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.httpClient = c
	})
}

// WithTimeout sets the request timeout of the default HTTP client.
// Default: 30s. Ignored with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.timeout = d
	})
}

// WithAPIKey sends the key as a Bearer token.
func WithAPIKey(key string) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.apiKey = key
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(cfg *clientConfig) {
		cfg.metricsReg = reg
	})
}
