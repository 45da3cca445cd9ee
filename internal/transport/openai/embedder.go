// Package openai embeds text through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/metrics"
)

// Embedder vectorizes text with one provider model.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Config holds the provider settings of one vectorizer.
type Config struct {
	APIKey     string
	BaseURL    string // empty selects the OpenAI endpoint
	Model      string
	Dimensions int // requested and enforced when positive
	User       string
	Provider   string
	// RequestsPerSecond caps outgoing calls; zero means unlimited.
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// NewEmbedder creates an embedder.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     logger,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}
	return e
}

// Embed implements domain.Embedder.
// Provider failures wrap domain.ErrEmbeddingProviderError, HTTP 429 wraps
// domain.ErrRateLimited.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.throttle(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		err = parseAPIError(err)
		kind := "api_error"
		if errors.Is(err, domain.ErrRateLimited) {
			kind = "rate_limited"
		}
		return domain.EmbeddingResult{}, e.fail(kind, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return domain.EmbeddingResult{}, e.fail("empty_response",
			fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError))
	}
	vec := resp.Data[0].Embedding
	if e.dimensions > 0 && len(vec) != e.dimensions {
		return domain.EmbeddingResult{}, e.fail("dimension_mismatch",
			fmt.Errorf("model %s returned %d dimensions, want %d: %w",
				e.model, len(vec), e.dimensions, domain.ErrEmbeddingProviderError))
	}

	metrics.ProviderRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(time.Since(start).Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (e *Embedder) throttle(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	metrics.ProviderThrottleSeconds.WithLabelValues(e.provider).Observe(time.Since(start).Seconds())
	return nil
}

func (e *Embedder) fail(kind string, err error) error {
	metrics.ProviderRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(e.provider, string(e.model), kind).Inc()
	e.logger.Debug("Embedding request failed",
		zap.String("provider", e.provider),
		zap.String("model", string(e.model)),
		zap.String("kind", kind),
		zap.Error(err),
	)
	return err
}

// parseAPIError extracts a readable message from the provider reply.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, msg, sentinelFor(reqErr.HTTPStatusCode))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, sentinelFor(apiErr.HTTPStatusCode))
	}

	return fmt.Errorf("embedding request failed: %w", domain.ErrEmbeddingProviderError)
}

func sentinelFor(status int) error {
	if status == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	return domain.ErrEmbeddingProviderError
}

// extractDetail reads the "detail" field some compatible providers use instead of "error".
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
