package metamodel

import (
	"context"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
)

// Connection is a storage backend for one schema.
type Connection interface {
	Description() string

	RetrievableInitializer() Initializer
	RetrievableReader() RetrievableReader
	RetrievableWriter() RetrievableWriter

	DescriptorInitializer(f *Field) Initializer
	DescriptorReader(f *Field) DescriptorReader
	DescriptorWriter(f *Field) DescriptorWriter

	Close() error
}

// Initializer prepares backing storage for one entity.
type Initializer interface {
	IsInitialized(ctx context.Context) bool
	Initialize(ctx context.Context) error
}

// Deinitializer removes an entity's backing storage and all data in it.
// Initializers of backends that support teardown implement it.
type Deinitializer interface {
	Deinitialize(ctx context.Context) error
}

// Counter reports how many descriptors a field holds.
// Optional on DescriptorReader.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// DescriptorReader reads one field's descriptors.
type DescriptorReader interface {
	// GetBy returns the first descriptor whose column equals id.
	// column is descriptor.ColumnID or descriptor.ColumnRetrievableID.
	// A miss returns domain.ErrDescriptorNotFound.
	GetBy(ctx context.Context, id uuid.UUID, column string) (descriptor.Descriptor, error)
	Query(ctx context.Context, q query.Query) ([]retrievable.Retrieved, error)
}

// DescriptorWriter persists one field's descriptors.
// Failures are logged by the implementation and reported as false, never returned.
type DescriptorWriter interface {
	Add(ctx context.Context, d descriptor.Descriptor) bool
	// AddAll writes ds as one logical operation.
	AddAll(ctx context.Context, ds []descriptor.Descriptor) bool
	Update(ctx context.Context, d descriptor.Descriptor) bool
}

// RetrievableReader reads stored retrievables.
type RetrievableReader interface {
	// Get returns domain.ErrRetrievableNotFound on a miss.
	Get(ctx context.Context, id uuid.UUID) (retrievable.Retrieved, error)
	// GetAll returns the retrievables that exist, in ids order.
	GetAll(ctx context.Context, ids []uuid.UUID) ([]retrievable.Retrieved, error)
}

// RetrievableWriter persists retrievables and their relationships.
type RetrievableWriter interface {
	Add(ctx context.Context, r *retrievable.Ingested) bool
	Connect(ctx context.Context, rel retrievable.Relationship) bool
}
