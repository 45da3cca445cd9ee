// Package descriptor holds the typed feature records derived from retrievables.
package descriptor

import (
	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain/types"
)

// Column names shared by every descriptor entity.
const (
	ColumnID            = "id"
	ColumnRetrievableID = "retrievableId"
	ColumnVector        = "vector"
)

// FieldSchema describes one column of a descriptor payload.
type FieldSchema struct {
	Name       string
	Type       types.Type
	Dimensions int // Vector only
}

// FieldValue is one column value. A nil Value is null.
type FieldValue struct {
	Name  string
	Value types.Value
}

// Descriptor is a unit of derived information about a retrievable.
// Non-transient descriptors always carry a retrievable id.
type Descriptor interface {
	ID() uuid.UUID
	RetrievableID() (uuid.UUID, bool)
	Transient() bool
	Schema() []FieldSchema
	Values() []FieldValue
}

// header carries the identity shared by all descriptor kinds.
type header struct {
	id            uuid.UUID
	retrievableID uuid.UUID
	transient     bool
}

func (h header) ID() uuid.UUID { return h.id }

func (h header) RetrievableID() (uuid.UUID, bool) {
	return h.retrievableID, h.retrievableID != uuid.Nil
}

func (h header) Transient() bool { return h.transient }
