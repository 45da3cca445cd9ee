package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result    EmbeddingResult
	err       error
	healthErr error
	got       string
	calls     int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.calls++
	s.got = text
	return s.result, s.err
}

func (s *stubEmbedder) HealthCheck(context.Context) error { return s.healthErr }

func TestPreparedEmbedder_Prepare(t *testing.T) {
	tests := []struct {
		name string
		prep TextPreparation
		in   string
		want string
	}{
		{"passthrough", TextPreparation{}, "a red car", "a red car"},
		{"collapses whitespace", TextPreparation{}, "  a\tred\n\ncar  ", "a red car"},
		{"instruction", TextPreparation{Instruction: "query: "}, "a red car", "query: a red car"},
		{"truncates runes", TextPreparation{MaxRunes: 5}, "größer als", "größe"},
		{"truncation drops trailing space", TextPreparation{MaxRunes: 6}, "a red car", "a red"},
		{"instruction not counted", TextPreparation{Instruction: "passage: ", MaxRunes: 3}, "abcdef", "passage: abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPreparedEmbedder(&stubEmbedder{}, tt.prep).Prepare(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Prepare(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPreparedEmbedder_Embed(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewPreparedEmbedder(inner, TextPreparation{Instruction: "query: "})

	result, err := emb.Embed(context.Background(), " a dog ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "query: a dog" {
		t.Errorf("inner received %q", inner.got)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3 dims, got %d", len(result.Embedding))
	}
}

func TestPreparedEmbedder_BlankTextSkipsProvider(t *testing.T) {
	inner := &stubEmbedder{}
	emb := NewPreparedEmbedder(inner, TextPreparation{Instruction: "query: "})

	_, err := emb.Embed(context.Background(), " \n\t ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("provider called %d times", inner.calls)
	}
}

func TestPreparedEmbedder_PropagatesError(t *testing.T) {
	inner := &stubEmbedder{err: ErrEmbeddingProviderError}
	emb := NewPreparedEmbedder(inner, TextPreparation{})

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestPreparedEmbedder_HealthCheck(t *testing.T) {
	inner := &stubEmbedder{healthErr: errors.New("down")}
	if err := NewPreparedEmbedder(inner, TextPreparation{}).HealthCheck(context.Background()); err == nil {
		t.Error("expected inner health error")
	}
}
