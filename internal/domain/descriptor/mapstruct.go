package descriptor

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
)

// MapStruct is a structured descriptor whose columns are declared by a type map.
// Columns are reported in lexical order.
type MapStruct struct {
	header
	columnTypes  map[string]types.Type
	columnValues map[string]types.Value
	columns      []string
}

// NewMapStruct creates a persistable struct descriptor owned by retrievableID.
func NewMapStruct(
	id, retrievableID uuid.UUID, columnTypes map[string]types.Type, columnValues map[string]types.Value,
) (*MapStruct, error) {
	if retrievableID == uuid.Nil {
		return nil, fmt.Errorf("%w: persistable descriptor requires a retrievable id", domain.ErrInvalidInput)
	}
	return newMapStruct(header{id: id, retrievableID: retrievableID}, columnTypes, columnValues), nil
}

// NewTransientMapStruct creates a struct descriptor that is never persisted.
func NewTransientMapStruct(columnTypes map[string]types.Type, columnValues map[string]types.Value) *MapStruct {
	return newMapStruct(header{id: uuid.New(), transient: true}, columnTypes, columnValues)
}

// MapStructPrototype returns a transient struct with every column at its zero value.
func MapStructPrototype(columnTypes map[string]types.Type) *MapStruct {
	values := make(map[string]types.Value, len(columnTypes))
	for name, t := range columnTypes {
		values[name] = types.Zero(t)
	}
	return NewTransientMapStruct(columnTypes, values)
}

func newMapStruct(h header, columnTypes map[string]types.Type, columnValues map[string]types.Value) *MapStruct {
	ct := maps.Clone(columnTypes)
	if ct == nil {
		ct = map[string]types.Type{}
	}
	cv := maps.Clone(columnValues)
	if cv == nil {
		cv = map[string]types.Value{}
	}
	return &MapStruct{
		header:       h,
		columnTypes:  ct,
		columnValues: cv,
		columns:      slices.Sorted(maps.Keys(ct)),
	}
}

// Schema returns one entry per declared column.
func (d *MapStruct) Schema() []FieldSchema {
	out := make([]FieldSchema, 0, len(d.columns))
	for _, name := range d.columns {
		out = append(out, FieldSchema{Name: name, Type: d.columnTypes[name]})
	}
	return out
}

// Values returns one pair per declared column. Missing or mistyped values are nil.
func (d *MapStruct) Values() []FieldValue {
	out := make([]FieldValue, 0, len(d.columns))
	for _, name := range d.columns {
		out = append(out, FieldValue{Name: name, Value: d.Value(name)})
	}
	return out
}

// Value returns the column value if it is present and matches the declared type.
func (d *MapStruct) Value(name string) types.Value {
	t, ok := d.columnTypes[name]
	if !ok {
		return nil
	}
	v, ok := d.columnValues[name]
	if !ok || v == nil || v.Type() != t {
		return nil
	}
	return v
}

// ColumnType returns the declared type of a column.
func (d *MapStruct) ColumnType(name string) (types.Type, bool) {
	t, ok := d.columnTypes[name]
	return t, ok
}
