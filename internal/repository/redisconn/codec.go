package redisconn

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/db"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
)

// encodeDescriptor flattens d into hash fields. Null columns are omitted.
func encodeDescriptor(d descriptor.Descriptor) (map[string]string, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil descriptor", domain.ErrInvalidInput)
	}
	if d.Transient() {
		return nil, fmt.Errorf("%w: transient descriptor %s", domain.ErrInvalidInput, d.ID())
	}
	rid, ok := d.RetrievableID()
	if !ok {
		return nil, fmt.Errorf("%w: descriptor %s has no retrievable", domain.ErrInvalidInput, d.ID())
	}
	fields := map[string]string{
		descriptor.ColumnID:            d.ID().String(),
		descriptor.ColumnRetrievableID: rid.String(),
	}
	for _, fv := range d.Values() {
		switch v := fv.Value.(type) {
		case nil:
		case types.VectorValue:
			fields[fv.Name] = db.EncodeVector(v)
		case types.DateTimeValue:
			fields[fv.Name] = fmt.Sprintf("%d", time.Time(v).Unix())
		default:
			fields[fv.Name] = types.Format(v)
		}
	}
	return fields, nil
}

// decodeDescriptor rebuilds a descriptor shaped like proto from hash fields.
func decodeDescriptor(proto descriptor.Descriptor, fields map[string]string) (descriptor.Descriptor, error) {
	id, err := uuid.Parse(fields[descriptor.ColumnID])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", descriptor.ColumnID, err)
	}
	rid, err := uuid.Parse(fields[descriptor.ColumnRetrievableID])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", descriptor.ColumnRetrievableID, err)
	}

	switch proto.(type) {
	case *descriptor.FloatVector:
		vec, err := db.DecodeVector(fields[descriptor.ColumnVector])
		if err != nil {
			return nil, fmt.Errorf("decode vector: %w", err)
		}
		return descriptor.NewFloatVector(id, rid, vec)
	case *descriptor.MapStruct:
		columnTypes := make(map[string]types.Type)
		values := make(map[string]types.Value)
		for _, col := range proto.Schema() {
			columnTypes[col.Name] = col.Type
			raw, ok := fields[col.Name]
			if !ok {
				continue
			}
			v, err := decodeValue(col.Type, raw)
			if err != nil {
				return nil, fmt.Errorf("decode column %s: %w", col.Name, err)
			}
			values[col.Name] = v
		}
		return descriptor.NewMapStruct(id, rid, columnTypes, values)
	default:
		return nil, fmt.Errorf("%w: descriptor kind %T", domain.ErrUnsupportedOperation, proto)
	}
}

func decodeValue(t types.Type, raw string) (types.Value, error) {
	switch t {
	case types.DateTime:
		v, err := types.Parse(types.Long, raw)
		if err != nil {
			return nil, err
		}
		return types.DateTimeValue(time.Unix(int64(v.(types.LongValue)), 0).UTC()), nil
	case types.Vector:
		vec, err := db.DecodeVector(raw)
		if err != nil {
			return nil, err
		}
		return types.VectorValue(vec), nil
	default:
		return types.Parse(t, raw)
	}
}

// addIndexField maps a descriptor column onto an FT field.
func addIndexField(b *db.IndexBuilder, col descriptor.FieldSchema, params db.VectorParams) *db.IndexBuilder {
	switch {
	case col.Type == types.Vector:
		return b.Vector(col.Name, col.Dimensions, params)
	case col.Type.Numeric(), col.Type == types.DateTime:
		return b.Numeric(col.Name)
	default:
		return b.Tag(col.Name)
	}
}
