// Package redisconn stores a schema in Redis hashes with one FT index per field.
package redisconn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/db"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
)

// store is the consumer interface for the schema backend (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) (int, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string) error
	SearchCount(ctx context.Context, index, query string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchFiltered(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

// Config tunes key layout and vector indexes.
type Config struct {
	KeyPrefix       string
	HNSWM           int
	HNSWEFConstruct int
}

// Connection implements metamodel.Connection over a shared store.
// The store belongs to the caller; Close leaves it open.
type Connection struct {
	store  store
	schema string
	prefix string
	vector db.VectorParams
	logger *zap.Logger
}

var _ metamodel.Connection = (*Connection)(nil)

// New creates a connection for schema.
func New(s store, schema string, cfg Config, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		store:  s,
		schema: schema,
		prefix: cfg.KeyPrefix + schema + ":",
		vector: db.VectorParams{
			Algorithm:   db.VectorHNSW,
			Distance:    db.DistanceCosine,
			M:           cfg.HNSWM,
			EFConstruct: cfg.HNSWEFConstruct,
		},
		logger: logger.With(zap.String("schema", schema)),
	}
}

// Description names the backend.
func (c *Connection) Description() string { return "redis://" + c.prefix }

// Close is a no-op.
func (c *Connection) Close() error { return nil }

func (c *Connection) RetrievableInitializer() metamodel.Initializer {
	return &markerInitializer{conn: c, key: c.prefix + "initialized"}
}

func (c *Connection) RetrievableReader() metamodel.RetrievableReader {
	return &retrievableStore{conn: c}
}

func (c *Connection) RetrievableWriter() metamodel.RetrievableWriter {
	return &retrievableStore{conn: c}
}

func (c *Connection) DescriptorInitializer(f *metamodel.Field) metamodel.Initializer {
	return &indexInitializer{desc: c.descriptors(f)}
}

func (c *Connection) DescriptorReader(f *metamodel.Field) metamodel.DescriptorReader {
	return c.descriptors(f)
}

func (c *Connection) DescriptorWriter(f *metamodel.Field) metamodel.DescriptorWriter {
	return c.descriptors(f)
}

func (c *Connection) descriptors(f *metamodel.Field) *descriptorStore {
	return &descriptorStore{conn: c, field: f}
}

// IndexName returns the FT index backing field.
func (c *Connection) IndexName(field string) string { return c.prefix + "idx:" + field }

func (c *Connection) retrievableKey(id string) string { return c.prefix + "r:" + id }

func (c *Connection) relationKey(object string) string { return c.prefix + "rel:" + object }

func (c *Connection) descriptorPrefix(field string) string { return c.prefix + "d:" + field + ":" }

// markerInitializer tracks retrievable storage with a single key.
// Retrievable hashes need no index.
type markerInitializer struct {
	conn *Connection
	key  string
}

func (i *markerInitializer) IsInitialized(ctx context.Context) bool {
	_, err := i.conn.store.Get(ctx, i.key)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		i.conn.logger.Warn("Failed to probe initialization marker", zap.Error(err))
	}
	return err == nil
}

func (i *markerInitializer) Initialize(ctx context.Context) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := i.conn.store.Set(ctx, i.key, []byte(stamp)); err != nil {
		return fmt.Errorf("set %s: %w", i.key, err)
	}
	return nil
}

// Deinitialize deletes every retrievable and relationship of the schema,
// then the marker.
func (i *markerInitializer) Deinitialize(ctx context.Context) error {
	for _, pattern := range []string{i.conn.prefix + "r:*", i.conn.prefix + "rel:*"} {
		if _, err := i.conn.deleteMatching(ctx, pattern); err != nil {
			return err
		}
	}
	if err := i.conn.store.Del(ctx, i.key); err != nil {
		return fmt.Errorf("del %s: %w", i.key, err)
	}
	return nil
}

type indexInitializer struct {
	desc *descriptorStore
}

func (i *indexInitializer) IsInitialized(ctx context.Context) bool {
	name := i.desc.conn.IndexName(i.desc.field.Name())
	ok, err := i.desc.conn.store.IndexExists(ctx, name)
	if err != nil {
		i.desc.conn.logger.Warn("Failed to probe index", zap.String("index", name), zap.Error(err))
		return false
	}
	return ok
}

// Initialize creates the field index. An existing index is left as is.
func (i *indexInitializer) Initialize(ctx context.Context) error {
	def, err := i.desc.indexDefinition()
	if err != nil {
		return err
	}
	if err := i.desc.conn.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	i.desc.conn.logger.Info("Created descriptor index",
		zap.String("index", def.Name), zap.String("field", i.desc.field.Name()))
	i.desc.conn.logger.Debug("Descriptor index definition", zap.Stringer("definition", def))
	return nil
}

// Deinitialize drops the field index and the descriptor hashes behind it.
func (i *indexInitializer) Deinitialize(ctx context.Context) error {
	conn := i.desc.conn
	field := i.desc.field.Name()
	name := conn.IndexName(field)
	if err := conn.store.DropIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	n, err := conn.deleteMatching(ctx, conn.descriptorPrefix(field)+"*")
	if err != nil {
		return err
	}
	conn.logger.Info("Dropped descriptor index",
		zap.String("index", name), zap.String("field", field), zap.Int("deleted", n))
	return nil
}

// deleteMatching removes every key matching pattern and returns how many it removed.
func (c *Connection) deleteMatching(ctx context.Context, pattern string) (int, error) {
	keys, err := c.store.Scan(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", pattern, err)
	}
	n, err := c.store.DelMulti(ctx, keys)
	if err != nil {
		return n, fmt.Errorf("delete %s: %w", pattern, err)
	}
	return n, nil
}
