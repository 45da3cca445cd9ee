// Package types defines the closed set of value kinds a descriptor column can hold.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

// Type enumerates column value kinds.
type Type int

const (
	// String is a UTF-8 string.
	String Type = iota
	// Boolean is true/false.
	Boolean
	// Byte is a signed 8-bit integer.
	Byte
	// Short is a signed 16-bit integer.
	Short
	// Int is a signed 32-bit integer.
	Int
	// Long is a signed 64-bit integer.
	Long
	// Float is a 32-bit float.
	Float
	// Double is a 64-bit float.
	Double
	// DateTime is a point in time.
	DateTime
	// Vector is a fixed-length float32 vector.
	Vector
)

var typeNames = [...]string{
	String:   "STRING",
	Boolean:  "BOOLEAN",
	Byte:     "BYTE",
	Short:    "SHORT",
	Int:      "INT",
	Long:     "LONG",
	Float:    "FLOAT",
	Double:   "DOUBLE",
	DateTime: "DATETIME",
	Vector:   "VECTOR",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "UNKNOWN"
	}
	return typeNames[t]
}

// Numeric reports whether values of t compare as numbers.
func (t Type) Numeric() bool {
	switch t {
	case Byte, Short, Int, Long, Float, Double:
		return true
	default:
		return false
	}
}

// ParseType resolves a type by its upper-case name.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidInput, s)
}

// Value is a typed column value.
type Value interface {
	Type() Type
	isValue()
}

type (
	// StringValue holds a String.
	StringValue string
	// BooleanValue holds a Boolean.
	BooleanValue bool
	// ByteValue holds a Byte.
	ByteValue int8
	// ShortValue holds a Short.
	ShortValue int16
	// IntValue holds an Int.
	IntValue int32
	// LongValue holds a Long.
	LongValue int64
	// FloatValue holds a Float.
	FloatValue float32
	// DoubleValue holds a Double.
	DoubleValue float64
	// DateTimeValue holds a DateTime.
	DateTimeValue time.Time
	// VectorValue holds a Vector.
	VectorValue []float32
)

func (StringValue) Type() Type   { return String }
func (BooleanValue) Type() Type  { return Boolean }
func (ByteValue) Type() Type     { return Byte }
func (ShortValue) Type() Type    { return Short }
func (IntValue) Type() Type      { return Int }
func (LongValue) Type() Type     { return Long }
func (FloatValue) Type() Type    { return Float }
func (DoubleValue) Type() Type   { return Double }
func (DateTimeValue) Type() Type { return DateTime }
func (VectorValue) Type() Type   { return Vector }

func (StringValue) isValue()   {}
func (BooleanValue) isValue()  {}
func (ByteValue) isValue()     {}
func (ShortValue) isValue()    {}
func (IntValue) isValue()      {}
func (LongValue) isValue()     {}
func (FloatValue) isValue()    {}
func (DoubleValue) isValue()   {}
func (DateTimeValue) isValue() {}
func (VectorValue) isValue()   {}

// Parse converts raw into a value of type t.
// DateTime parsing is not supported and fails with domain.ErrNotImplemented.
func Parse(t Type, raw string) (Value, error) {
	switch t {
	case String:
		return StringValue(raw), nil
	case Boolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalid(t, raw, err)
		}
		return BooleanValue(b), nil
	case Byte:
		n, err := strconv.ParseInt(raw, 10, 8)
		if err != nil {
			return nil, invalid(t, raw, err)
		}
		return ByteValue(n), nil
	case Short:
		n, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			return nil, invalid(t, raw, err)
		}
		return ShortValue(n), nil
	case Int:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, invalid(t, raw, err)
		}
		return IntValue(n), nil
	case Long:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalid(t, raw, err)
		}
		return LongValue(n), nil
	case Float:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, invalid(t, raw, err)
		}
		return FloatValue(f), nil
	case Double:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalid(t, raw, err)
		}
		return DoubleValue(f), nil
	case DateTime:
		return nil, fmt.Errorf("parse %s value: %w", t, domain.ErrNotImplemented)
	case Vector:
		v, err := ParseVector(raw)
		if err != nil {
			return nil, invalid(t, raw, err)
		}
		return VectorValue(v), nil
	default:
		return nil, fmt.Errorf("%w: unknown type %d", domain.ErrInvalidInput, int(t))
	}
}

// ParseVector parses a comma-separated list of floats, optionally wrapped in brackets.
func ParseVector(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if strings.TrimSpace(raw) == "" {
		return []float32{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// Format renders v in the textual form accepted by Parse.
func Format(v Value) string {
	switch x := v.(type) {
	case StringValue:
		return string(x)
	case BooleanValue:
		return strconv.FormatBool(bool(x))
	case ByteValue:
		return strconv.FormatInt(int64(x), 10)
	case ShortValue:
		return strconv.FormatInt(int64(x), 10)
	case IntValue:
		return strconv.FormatInt(int64(x), 10)
	case LongValue:
		return strconv.FormatInt(int64(x), 10)
	case FloatValue:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case DoubleValue:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case DateTimeValue:
		return time.Time(x).Format(time.RFC3339Nano)
	case VectorValue:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// Float64 returns the numeric value of v, if it has one.
func Float64(v Value) (float64, bool) {
	switch x := v.(type) {
	case ByteValue:
		return float64(x), true
	case ShortValue:
		return float64(x), true
	case IntValue:
		return float64(x), true
	case LongValue:
		return float64(x), true
	case FloatValue:
		return float64(x), true
	case DoubleValue:
		return float64(x), true
	default:
		return 0, false
	}
}

// Zero returns the zero value of t.
func Zero(t Type) Value {
	switch t {
	case String:
		return StringValue("")
	case Boolean:
		return BooleanValue(false)
	case Byte:
		return ByteValue(0)
	case Short:
		return ShortValue(0)
	case Int:
		return IntValue(0)
	case Long:
		return LongValue(0)
	case Float:
		return FloatValue(0)
	case Double:
		return DoubleValue(0)
	case DateTime:
		return DateTimeValue(time.Time{})
	case Vector:
		return VectorValue(nil)
	default:
		return nil
	}
}

func invalid(t Type, raw string, err error) error {
	return fmt.Errorf("%w: %q is not a valid %s: %w", domain.ErrInvalidInput, raw, t, err)
}
