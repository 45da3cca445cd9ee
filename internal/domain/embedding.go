package domain

import (
	"context"
	"fmt"
	"strings"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// TextPreparation describes how text is normalized before it reaches a provider.
type TextPreparation struct {
	// Instruction is prepended after normalization, e.g. "query: ".
	Instruction string
	// MaxRunes truncates the normalized text, not counting the instruction. 0 disables.
	MaxRunes int
}

// PreparedEmbedder collapses whitespace, truncates and prefixes text before embedding.
// Text that is blank after normalization is rejected without a provider call.
type PreparedEmbedder struct {
	inner Embedder
	prep  TextPreparation
}

// NewPreparedEmbedder wraps inner.
func NewPreparedEmbedder(inner Embedder, prep TextPreparation) *PreparedEmbedder {
	return &PreparedEmbedder{inner: inner, prep: prep}
}

// Prepare returns the text inner receives for text.
func (e *PreparedEmbedder) Prepare(text string) (string, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", fmt.Errorf("%w: blank text", ErrInvalidInput)
	}
	if e.prep.MaxRunes > 0 {
		if r := []rune(text); len(r) > e.prep.MaxRunes {
			text = strings.TrimRight(string(r[:e.prep.MaxRunes]), " ")
		}
	}
	return e.prep.Instruction + text, nil
}

// Embed prepares text and delegates to the inner embedder.
func (e *PreparedEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	prepared, err := e.Prepare(text)
	if err != nil {
		return EmbeddingResult{}, err
	}
	result, err := e.inner.Embed(ctx, prepared)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("prepared embed: %w", err)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *PreparedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
