package descriptor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
)

// FloatVector is a fixed-length float32 feature vector.
type FloatVector struct {
	header
	vector []float32
}

// NewFloatVector creates a persistable vector descriptor owned by retrievableID.
func NewFloatVector(id, retrievableID uuid.UUID, vector []float32) (*FloatVector, error) {
	if retrievableID == uuid.Nil {
		return nil, fmt.Errorf("%w: persistable descriptor requires a retrievable id", domain.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}
	return &FloatVector{
		header: header{id: id, retrievableID: retrievableID},
		vector: vector,
	}, nil
}

// NewTransientFloatVector creates a query-time vector that is never persisted.
func NewTransientFloatVector(vector []float32) *FloatVector {
	return &FloatVector{
		header: header{id: uuid.New(), transient: true},
		vector: vector,
	}
}

// Vector returns the raw vector.
func (d *FloatVector) Vector() []float32 { return d.vector }

// Dimensions returns the vector length.
func (d *FloatVector) Dimensions() int { return len(d.vector) }

// Schema returns a single vector column.
func (d *FloatVector) Schema() []FieldSchema {
	return []FieldSchema{{Name: ColumnVector, Type: types.Vector, Dimensions: len(d.vector)}}
}

// Values returns the vector column.
func (d *FloatVector) Values() []FieldValue {
	return []FieldValue{{Name: ColumnVector, Value: types.VectorValue(d.vector)}}
}

// FloatVectorPrototype returns a zero vector of the given dimensionality.
func FloatVectorPrototype(dimensions int) *FloatVector {
	return NewTransientFloatVector(make([]float32, dimensions))
}
