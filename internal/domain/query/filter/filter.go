// Package filter models boolean pre-filters that storage backends translate natively.
package filter

import (
	"fmt"
	"strings"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// And returns an expression requiring both e and c.
func (e Expression) And(c Condition) Expression {
	must := append(append([]Condition(nil), e.must...), c)
	return Expression{must: must, should: e.should, mustNot: e.mustNot}
}

// Condition is a single filter clause: a tag match, a tag pattern or a numeric range.
type Condition struct {
	key       string
	match     string
	pattern   string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewPattern creates a tag wildcard condition. pattern uses * for any run of
// characters and ? for exactly one.
func NewPattern(key, pattern string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if pattern == "" {
		return Condition{}, fmt.Errorf("pattern is required for key %q", key)
	}
	return Condition{key: key, pattern: pattern}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Pattern returns the wildcard pattern.
func (c Condition) Pattern() string { return c.pattern }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsPattern reports whether this is a wildcard condition.
func (c Condition) IsPattern() bool { return c.pattern != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// FromBoolean translates a single-column comparison into an Expression.
// String columns support equality and LIKE, boolean columns equality only,
// numeric columns every ordering operator.
func FromBoolean(q query.SimpleBooleanQuery) (Expression, error) {
	if q.Value == nil {
		return Expression{}, fmt.Errorf("%w: comparison value is required", domain.ErrInvalidInput)
	}
	if q.Comparison == query.LIKE {
		return like(q)
	}

	if f, ok := types.Float64(q.Value); ok {
		return numeric(q.Attribute, q.Comparison, f)
	}

	switch q.Value.Type() {
	case types.String, types.Boolean:
		cond, err := NewMatch(q.Attribute, types.Format(q.Value))
		if err != nil {
			return Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		switch q.Comparison {
		case query.EQ:
			return NewExpression([]Condition{cond}, nil, nil)
		case query.NEQ:
			return NewExpression(nil, nil, []Condition{cond})
		}
	}
	return Expression{}, fmt.Errorf("%w: %s on %s", domain.ErrUnsupportedOperation, q.Comparison, q.Value.Type())
}

func numeric(key string, op query.ComparisonOperator, v float64) (Expression, error) {
	var (
		r   Range
		err error
	)
	switch op {
	case query.EQ, query.NEQ:
		r, err = NewRangeFilter(nil, &v, nil, &v)
	case query.LT:
		r, err = NewRangeFilter(nil, nil, &v, nil)
	case query.GT:
		r, err = NewRangeFilter(&v, nil, nil, nil)
	case query.LEQ:
		r, err = NewRangeFilter(nil, nil, nil, &v)
	case query.GEQ:
		r, err = NewRangeFilter(nil, &v, nil, nil)
	default:
		return Expression{}, fmt.Errorf("%w: %s on numbers", domain.ErrUnsupportedOperation, op)
	}
	if err != nil {
		return Expression{}, err
	}
	cond, err := NewRange(key, r)
	if err != nil {
		return Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if op == query.NEQ {
		return NewExpression(nil, nil, []Condition{cond})
	}
	return NewExpression([]Condition{cond}, nil, nil)
}

// like maps SQL LIKE wildcards onto a tag pattern: % becomes * and _ becomes ?.
func like(q query.SimpleBooleanQuery) (Expression, error) {
	v, ok := q.Value.(types.StringValue)
	if !ok {
		return Expression{}, fmt.Errorf("%w: %s on %s", domain.ErrUnsupportedOperation, q.Comparison, q.Value.Type())
	}
	pattern := strings.Map(func(r rune) rune {
		switch r {
		case '%':
			return '*'
		case '_':
			return '?'
		}
		return r
	}, string(v))
	cond, err := NewPattern(q.Attribute, pattern)
	if err != nil {
		return Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return NewExpression([]Condition{cond}, nil, nil)
}
