// Package feature is a client for external feature extraction services.
//
// Requests are form-encoded POSTs with a single "data" field holding a data URL.
// Responses are one line of comma-separated floats, optionally wrapped in brackets.
package feature

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/metrics"
)

const (
	defaultHost    = "localhost"
	defaultPort    = 8888
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20
	provider       = "feature"
)

// Config holds the service endpoint and client limits.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
	// RequestsPerSecond caps outgoing calls; zero means unlimited.
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// Client calls a feature service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c := &Client{
		baseURL: "http://" + cfg.Host + ":" + strconv.Itoa(cfg.Port),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}
	return c
}

// NewClientWithBaseURL creates a client against an explicit base URL.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, logger: logger}
}

// Extract posts dataURL to endpoint and parses the returned vector.
// Service failures and malformed bodies are logged and yield an empty vector.
// Only context cancellation is returned as an error.
func (c *Client) Extract(ctx context.Context, endpoint, dataURL string) ([]float32, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
		metrics.ProviderThrottleSeconds.WithLabelValues(provider).Observe(time.Since(waitStart).Seconds())
	}

	start := time.Now()
	vec, err := c.post(ctx, endpoint, dataURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.ProviderRequestsTotal.WithLabelValues(provider, endpoint, "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(provider, endpoint, "api_error").Inc()
		c.logger.Warn("Feature extraction failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, nil
	}
	metrics.ProviderRequestsTotal.WithLabelValues(provider, endpoint, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(provider, endpoint).Observe(time.Since(start).Seconds())
	return vec, nil
}

func (c *Client) post(ctx context.Context, endpoint, dataURL string) ([]float32, error) {
	form := url.Values{"data": {dataURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrEmbeddingProviderError)
	}
	return ParseVector(string(body))
}

// HealthCheck reports whether the service answers at all.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("feature service unreachable: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("feature service status %d: %w", resp.StatusCode, domain.ErrEmbeddingProviderError)
	}
	return nil
}

// ParseVector parses "0.1,0.2" or "[0.1, 0.2]". Blank input is an empty vector.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, errors.Join(domain.ErrEmbeddingProviderError, fmt.Errorf("element %d: %w", i, err))
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
