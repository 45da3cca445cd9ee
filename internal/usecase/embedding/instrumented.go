// Package embedding decorates vectorizers with request logging.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

// DefaultSlowThreshold is the latency above which a successful request is logged at warn level.
const DefaultSlowThreshold = 2 * time.Second

// InstrumentedEmbedder logs every request of one vectorizer.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	vectorizer string
	model      string
	slow       time.Duration
	logger     *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. Cache hits pass through it too, so
// logged durations are the latency fields observe, not provider latency.
func NewInstrumentedEmbedder(inner domain.Embedder, vectorizer, model string, logger *zap.Logger) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:      inner,
		vectorizer: vectorizer,
		model:      model,
		slow:       DefaultSlowThreshold,
		logger:     logger.With(zap.String("vectorizer", vectorizer), zap.String("model", model)),
	}
}

// WithSlowThreshold overrides DefaultSlowThreshold.
func (p *InstrumentedEmbedder) WithSlowThreshold(d time.Duration) *InstrumentedEmbedder {
	p.slow = d
	return p
}

// Embed delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		fields := []zap.Field{
			zap.Duration("duration", duration),
			zap.Int("runes", utf8.RuneCountInString(text)),
			zap.Error(err),
		}
		switch {
		case errors.Is(err, context.Canceled):
			p.logger.Debug("Embedding request cancelled", fields...)
		case errors.Is(err, domain.ErrRateLimited):
			p.logger.Warn("Embedding request rate limited", fields...)
		default:
			p.logger.Error("Embedding request failed", fields...)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed with %s: %w", p.vectorizer, err)
	}

	fields := []zap.Field{
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	}
	if p.slow > 0 && duration > p.slow {
		p.logger.Warn("Slow embedding request", fields...)
	} else {
		p.logger.Debug("Embedding request completed", fields...)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
