package db

import "fmt"

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	// DistanceL2 is Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
	// DistanceIP is inner product distance.
	DistanceIP DistanceMetric = "IP"
	// DistanceCosine is cosine distance.
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the indexing algorithm for vector fields in FT.CREATE.
type VectorAlgorithm string

const (
	// VectorHNSW uses the HNSW algorithm.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat uses the FLAT (brute-force) algorithm.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is a tag field.
	IndexFieldTag
	// IndexFieldVector is a vector field.
	IndexFieldVector
)

// VectorParams tunes a vector field. Zero values fall back to server defaults.
type VectorParams struct {
	Algorithm   VectorAlgorithm
	Distance    DistanceMetric
	M           int // HNSW max edges per node
	EFConstruct int // HNSW build-time candidate list size
}

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name string
	Type IndexFieldType

	// VECTOR options
	VectorDim    int
	VectorParams VectorParams
}

// IndexDefinition is a complete FT index definition over hashes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate reports a malformed definition as ErrInvalidIndex.
func (idx *IndexDefinition) Validate() error {
	switch {
	case idx.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidIndex)
	case !IsValidIdentifier(idx.Name):
		return fmt.Errorf("%w: name %q contains invalid characters", ErrInvalidIndex, idx.Name)
	case len(idx.Fields) == 0:
		return fmt.Errorf("%w: %s needs at least one field", ErrInvalidIndex, idx.Name)
	}
	seen := make(map[string]struct{}, len(idx.Fields))
	for i, f := range idx.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field %d has no name", ErrInvalidIndex, i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate field %s", ErrInvalidIndex, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return fmt.Errorf("%w: vector field %s requires a positive DIM", ErrInvalidIndex, f.Name)
		}
	}
	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
