// Package embcache memoizes text embeddings. A bounded in-process LRU sits
// in front of the key-value store, and concurrent misses for the same text
// collapse into one provider call.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/v0idness/archipanion-ve/internal/db"
	"github.com/v0idness/archipanion-ve/internal/domain"
)

// Lookup outcomes reported on the counter passed to New.
const (
	ResultMemory = "memory"
	ResultStore  = "store"
	ResultShared = "shared"
	ResultMiss   = "miss"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config scopes cache entries. Namespace names the vectorizer so vectors of
// different models never collide. Entries <= 0 disables the in-process tier.
type Config struct {
	KeyPrefix string
	Namespace string
	TTL       time.Duration
	Entries   int
}

// Embedder wraps a domain.Embedder with the two cache tiers.
type Embedder struct {
	inner    domain.Embedder
	kv       kv
	local    *lru.Cache[string, []float32]
	flight   singleflight.Group
	keyspace string
	vecName  string
	ttl      time.Duration
	lookups  *prometheus.CounterVec
	logger   *zap.Logger
}

// New wraps inner. lookups, if set, is labelled by vectorizer and result.
func New(inner domain.Embedder, store kv, cfg Config, lookups *prometheus.CounterVec, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Embedder{
		inner:    inner,
		kv:       store,
		keyspace: cfg.KeyPrefix + "emb_cache:" + cfg.Namespace + ":",
		vecName:  cfg.Namespace,
		ttl:      cfg.TTL,
		lookups:  lookups,
		logger:   logger,
	}
	if cfg.Entries > 0 {
		// lru.New only fails for a non-positive size.
		e.local, _ = lru.New[string, []float32](cfg.Entries)
	}
	return e
}

// Embed serves text from memory, then the store, then the provider.
// Only the caller that actually reached the provider sees token counts.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := e.key(text)
	if e.local != nil {
		if vec, ok := e.local.Get(key); ok {
			e.count(ResultMemory)
			return domain.EmbeddingResult{Embedding: slices.Clone(vec)}, nil
		}
	}

	leader := false
	v, err, _ := e.flight.Do(key, func() (any, error) {
		leader = true
		if vec, ok := e.load(ctx, key); ok {
			e.count(ResultStore)
			e.remember(key, vec)
			return domain.EmbeddingResult{Embedding: vec}, nil
		}
		e.count(ResultMiss)
		res, err := e.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		e.save(ctx, key, res.Embedding)
		e.remember(key, res.Embedding)
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	res := v.(domain.EmbeddingResult)
	if !leader {
		e.count(ResultShared)
		return domain.EmbeddingResult{Embedding: slices.Clone(res.Embedding)}, nil
	}
	return res, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.keyspace + hex.EncodeToString(sum[:])
}

func (e *Embedder) count(result string) {
	if e.lookups != nil {
		e.lookups.WithLabelValues(e.vecName, result).Inc()
	}
}

func (e *Embedder) remember(key string, vec []float32) {
	if e.local != nil && len(vec) > 0 {
		e.local.Add(key, slices.Clone(vec))
	}
}

func (e *Embedder) load(ctx context.Context, key string) ([]float32, bool) {
	raw, err := e.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, false
	case err != nil:
		e.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case len(raw) == 0:
		return nil, false
	}
	vec, err := db.DecodeVector(string(raw))
	if err != nil {
		e.logger.Warn("Discarding corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (e *Embedder) save(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := e.kv.SetWithTTL(ctx, key, []byte(db.EncodeVector(vec)), e.ttl); err != nil {
		e.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}
