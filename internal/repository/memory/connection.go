// Package memory is an in-process storage backend. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
)

const retrievableEntity = "retrievable"

// RejectFunc lets callers fail individual writes.
type RejectFunc func(d descriptor.Descriptor) error

type storedRetrievable struct {
	typ   string
	parts []uuid.UUID
}

type fieldStore struct {
	byID  map[uuid.UUID]descriptor.Descriptor
	order []uuid.UUID
}

// Connection implements metamodel.Connection in memory.
type Connection struct {
	schema string
	logger *zap.Logger

	mu           sync.RWMutex
	initialized  map[string]bool
	retrievables map[uuid.UUID]*storedRetrievable
	fields       map[string]*fieldStore
	reject       RejectFunc
}

var _ metamodel.Connection = (*Connection)(nil)

// New creates an empty connection for schema.
func New(schema string, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		schema:       schema,
		logger:       logger,
		initialized:  make(map[string]bool),
		retrievables: make(map[uuid.UUID]*storedRetrievable),
		fields:       make(map[string]*fieldStore),
	}
}

// SetRejectFunc installs a hook consulted before every descriptor write.
func (c *Connection) SetRejectFunc(fn RejectFunc) {
	c.mu.Lock()
	c.reject = fn
	c.mu.Unlock()
}

// Description names the backend.
func (c *Connection) Description() string { return "memory://" + c.schema }

// Close is a no-op.
func (c *Connection) Close() error { return nil }

func (c *Connection) RetrievableInitializer() metamodel.Initializer {
	return &initializer{conn: c, entity: retrievableEntity, clear: func() {
		c.retrievables = make(map[uuid.UUID]*storedRetrievable)
	}}
}

func (c *Connection) RetrievableReader() metamodel.RetrievableReader {
	return &retrievableStore{conn: c}
}

func (c *Connection) RetrievableWriter() metamodel.RetrievableWriter {
	return &retrievableStore{conn: c}
}

func (c *Connection) DescriptorInitializer(f *metamodel.Field) metamodel.Initializer {
	return &initializer{conn: c, entity: entityName(f), clear: func() {
		delete(c.fields, f.Name())
	}}
}

func (c *Connection) DescriptorReader(f *metamodel.Field) metamodel.DescriptorReader {
	return &descriptorStore{conn: c, field: f.Name()}
}

func (c *Connection) DescriptorWriter(f *metamodel.Field) metamodel.DescriptorWriter {
	return &descriptorStore{conn: c, field: f.Name()}
}

// DescriptorCount returns how many descriptors a field holds.
func (c *Connection) DescriptorCount(field string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if fs, ok := c.fields[field]; ok {
		return len(fs.order)
	}
	return 0
}

// RetrievableCount returns how many retrievables are stored.
func (c *Connection) RetrievableCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.retrievables)
}

func entityName(f *metamodel.Field) string { return "descriptor_" + f.Name() }

// fieldLocked returns the store for field, creating it. Callers hold mu for writing.
func (c *Connection) fieldLocked(field string) *fieldStore {
	fs, ok := c.fields[field]
	if !ok {
		fs = &fieldStore{byID: make(map[uuid.UUID]descriptor.Descriptor)}
		c.fields[field] = fs
	}
	return fs
}

type initializer struct {
	conn   *Connection
	entity string
	// clear drops the entity's data. Called with mu held.
	clear func()
}

func (i *initializer) IsInitialized(_ context.Context) bool {
	i.conn.mu.RLock()
	defer i.conn.mu.RUnlock()
	return i.conn.initialized[i.entity]
}

func (i *initializer) Initialize(_ context.Context) error {
	i.conn.mu.Lock()
	i.conn.initialized[i.entity] = true
	i.conn.mu.Unlock()
	return nil
}

func (i *initializer) Deinitialize(_ context.Context) error {
	i.conn.mu.Lock()
	defer i.conn.mu.Unlock()
	delete(i.conn.initialized, i.entity)
	i.clear()
	return nil
}
