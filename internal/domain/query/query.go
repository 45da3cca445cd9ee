// Package query defines the storage-level queries that retrievers issue.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
)

// DefaultLimit bounds result sets when no limit is configured.
const DefaultLimit = 1000

// Query is implemented by every storage query kind.
type Query interface {
	isQuery()
}

// ProximityQuery asks for the k nearest neighbours of a vector.
type ProximityQuery struct {
	Descriptor       *descriptor.FloatVector
	K                int
	ReturnDescriptor bool
}

// SimpleBooleanQuery compares one struct column against a constant.
type SimpleBooleanQuery struct {
	Attribute  string
	Comparison ComparisonOperator
	Value      types.Value
	Limit      int
}

func (ProximityQuery) isQuery()     {}
func (SimpleBooleanQuery) isQuery() {}

// ComparisonOperator is a binary predicate over column values.
type ComparisonOperator string

const (
	EQ   ComparisonOperator = "=="
	NEQ  ComparisonOperator = "!="
	LT   ComparisonOperator = "<"
	GT   ComparisonOperator = ">"
	LEQ  ComparisonOperator = "<="
	GEQ  ComparisonOperator = ">="
	LIKE ComparisonOperator = "~="
)

// ParseComparison resolves an operator from its symbol.
func ParseComparison(s string) (ComparisonOperator, error) {
	switch op := ComparisonOperator(strings.TrimSpace(s)); op {
	case EQ, NEQ, LT, GT, LEQ, GEQ, LIKE:
		return op, nil
	default:
		return "", fmt.Errorf("%w: unknown comparison operator %q", domain.ErrInvalidInput, s)
	}
}

// Match evaluates left op right. Null operands never match.
func (op ComparisonOperator) Match(left, right types.Value) (bool, error) {
	if left == nil || right == nil {
		return false, nil
	}
	if left.Type() != right.Type() {
		lf, lok := types.Float64(left)
		rf, rok := types.Float64(right)
		if !lok || !rok {
			return false, fmt.Errorf("%w: cannot compare %s with %s", domain.ErrInvalidInput, left.Type(), right.Type())
		}
		return op.compareFloat(lf, rf)
	}

	switch l := left.(type) {
	case types.StringValue:
		return op.compareString(string(l), string(right.(types.StringValue)))
	case types.BooleanValue:
		r := right.(types.BooleanValue)
		switch op {
		case EQ:
			return l == r, nil
		case NEQ:
			return l != r, nil
		default:
			return false, fmt.Errorf("%w: %s on BOOLEAN", domain.ErrUnsupportedOperation, op)
		}
	default:
		lf, lok := types.Float64(left)
		rf, rok := types.Float64(right)
		if !lok || !rok {
			return false, fmt.Errorf("%w: %s on %s", domain.ErrUnsupportedOperation, op, left.Type())
		}
		return op.compareFloat(lf, rf)
	}
}

func (op ComparisonOperator) compareFloat(l, r float64) (bool, error) {
	switch op {
	case EQ:
		return l == r, nil
	case NEQ:
		return l != r, nil
	case LT:
		return l < r, nil
	case GT:
		return l > r, nil
	case LEQ:
		return l <= r, nil
	case GEQ:
		return l >= r, nil
	default:
		return false, fmt.Errorf("%w: %s on numbers", domain.ErrUnsupportedOperation, op)
	}
}

func (op ComparisonOperator) compareString(l, r string) (bool, error) {
	switch op {
	case EQ:
		return l == r, nil
	case NEQ:
		return l != r, nil
	case LT:
		return l < r, nil
	case GT:
		return l > r, nil
	case LEQ:
		return l <= r, nil
	case GEQ:
		return l >= r, nil
	case LIKE:
		re, err := likePattern(r)
		if err != nil {
			return false, err
		}
		return re.MatchString(l), nil
	default:
		return false, fmt.Errorf("%w: %s on strings", domain.ErrUnsupportedOperation, op)
	}
}

// likePattern translates SQL LIKE wildcards (% and _) into an anchored regexp.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: like pattern %q: %w", domain.ErrInvalidInput, pattern, err)
	}
	return re, nil
}
