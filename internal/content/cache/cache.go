// Package cache backs content elements with temporary files.
//
// Each element is tracked by a handle that is released once the element becomes
// unreachable: a runtime cleanup queues the handle and a sweeper goroutine deletes
// its file. A handle is purged at most once. Close purges whatever is still live.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/metrics"
)

const (
	lockFileName         = ".lock"
	defaultSweepInterval = 100 * time.Millisecond
)

// Config configures a Cache.
type Config struct {
	// Dir holds the backing files. It is created if missing.
	Dir string
	// SweepInterval bounds how long the sweeper blocks when its queue is empty.
	SweepInterval time.Duration
	// Compress stores files zstd-compressed.
	Compress bool
}

// Cache is a content.Factory whose elements live in files under one directory.
type Cache struct {
	dir      string
	interval time.Duration
	lock     *flock.Flock
	logger   *zap.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder

	counter atomic.Uint64
	purged  atomic.Int64

	mu      sync.Mutex
	closed  bool
	live    map[*handle]struct{}
	pending []*handle

	notify  chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

// handle tracks one backing file independently of the element that owns it.
type handle struct {
	path string
	once sync.Once
}

// New opens the cache directory, takes an exclusive lock on it and starts the sweeper.
// Files left behind by a previous process are removed.
func New(cfg Config, logger *zap.Logger) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: cache dir is required", domain.ErrInvalidInput)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache dir %s is in use by another process", cfg.Dir)
	}

	c := &Cache{
		dir:      cfg.Dir,
		interval: cfg.SweepInterval,
		lock:     lock,
		logger:   logger,
		live:     make(map[*handle]struct{}),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if cfg.Compress {
		if c.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		if c.dec, err = zstd.NewReader(nil); err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
	}

	c.removeStale()
	go c.sweep()
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Live returns the number of tracked backing files.
func (c *Cache) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// Close stops the sweeper and purges every remaining file. Further allocations fail
// with domain.ErrCacheClosed. Close is idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	<-c.stopped

	c.mu.Lock()
	remaining := make([]*handle, 0, len(c.live)+len(c.pending))
	for h := range c.live {
		remaining = append(remaining, h)
	}
	remaining = append(remaining, c.pending...)
	c.pending = nil
	c.mu.Unlock()

	for _, h := range remaining {
		c.purge(h)
	}
	if c.enc != nil {
		_ = c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
	if err := c.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock cache dir: %w", err)
	}
	return nil
}

func (c *Cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Cache) nextPath() string {
	return filepath.Join(c.dir, strconv.FormatUint(c.counter.Add(1), 10))
}

// store writes data to a fresh file and starts tracking it.
func (c *Cache) store(data []byte) (*handle, error) {
	if c.isClosed() {
		return nil, domain.ErrCacheClosed
	}
	if c.enc != nil {
		data = c.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	}
	h := &handle{path: c.nextPath()}
	if err := os.WriteFile(h.path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write cache file: %w", err)
	}
	metrics.CacheBytesWritten.Add(float64(len(data)))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = os.Remove(h.path)
		return nil, domain.ErrCacheClosed
	}
	c.live[h] = struct{}{}
	c.mu.Unlock()
	metrics.CacheLiveFiles.Inc()
	return h, nil
}

// track arranges for h to be released once owner is unreachable.
// owner must not be reachable from h.
func track[T any](c *Cache, owner *T, h *handle) {
	runtime.AddCleanup(owner, c.release, h)
}

// release runs on the runtime cleanup goroutine and must not block.
func (c *Cache) release(h *handle) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.purge(h)
		return
	}
	c.pending = append(c.pending, h)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Cache) load(h *handle) ([]byte, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if c.dec != nil {
		if data, err = c.dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompress cache file: %w", err)
		}
	}
	return data, nil
}

func (c *Cache) sweep() {
	defer close(c.stopped)
	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.notify:
		case <-timer.C:
		}
		c.drain()
		timer.Reset(c.interval)
	}
}

func (c *Cache) drain() {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, h := range batch {
		c.purge(h)
	}
}

// purge deletes h's file at most once. Removal errors are logged; the handle is untracked regardless.
func (c *Cache) purge(h *handle) {
	h.once.Do(func() {
		status := "ok"
		if err := os.Remove(h.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			status = "error"
			c.logger.Error("Failed to purge cached content", zap.String("path", h.path), zap.Error(err))
		} else {
			c.logger.Debug("Purged cached content", zap.String("path", h.path))
		}

		c.mu.Lock()
		delete(c.live, h)
		c.mu.Unlock()

		c.purged.Add(1)
		metrics.CacheLiveFiles.Dec()
		metrics.CachePurgesTotal.WithLabelValues(status).Inc()
	})
}

func (c *Cache) removeStale() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("Failed to list cache dir", zap.String("dir", c.dir), zap.Error(err))
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || e.Name() == lockFileName {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			c.logger.Warn("Failed to remove stale cache file", zap.String("name", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("Removed stale cache files", zap.Int("count", removed))
	}
}
