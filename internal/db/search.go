package db

import "github.com/v0idness/archipanion-ve/internal/domain/query/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName     string
	VectorField   string // defaults to "vector"
	Filters       filter.Expression
	Vector        []float32
	K             int
	ReturnFields  []string
	IncludeVector bool
	RawScores     bool // return __vector_score as-is instead of converting cosine distance
}

// FilterQuery is the input for a boolean pre-filter search without scoring.
type FilterQuery struct {
	IndexName    string
	Filters      filter.Expression
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
