package db

import (
	"fmt"
	"strconv"
	"strings"
)

// TagSeparator splits TAG field values. A value containing it is indexed
// as several tags, so exact matches on such a value do not hit.
const TagSeparator = "|"

// CreateArgs returns the FT.CREATE arguments for idx, without the command name.
func (idx *IndexDefinition) CreateArgs() ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	args := []string{idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		fa, err := idx.Fields[i].createArgs()
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

// String renders the FT.CREATE command the definition produces.
func (idx *IndexDefinition) String() string {
	args, err := idx.CreateArgs()
	if err != nil {
		return fmt.Sprintf("FT.CREATE %s <%v>", idx.Name, err)
	}
	return "FT.CREATE " + strings.Join(args, " ")
}

func (f *IndexField) createArgs() ([]string, error) {
	switch f.Type {
	case IndexFieldNumeric:
		return []string{f.Name, "NUMERIC"}, nil
	case IndexFieldTag:
		return []string{f.Name, "TAG", "SEPARATOR", TagSeparator, "CASESENSITIVE"}, nil
	case IndexFieldVector:
		return append([]string{f.Name}, f.vectorArgs()...), nil
	default:
		return nil, fmt.Errorf("%w: field %s has unknown type %d", ErrInvalidIndex, f.Name, f.Type)
	}
}

func (f *IndexField) vectorArgs() []string {
	p := f.VectorParams
	algo := p.Algorithm
	if algo == "" {
		algo = VectorFlat
	}
	distance := p.Distance
	if distance == "" {
		distance = DistanceCosine
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if algo == VectorHNSW {
		if p.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(p.M))
		}
		if p.EFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(p.EFConstruct))
		}
	}
	return append([]string{"VECTOR", string(algo), strconv.Itoa(len(attrs))}, attrs...)
}
