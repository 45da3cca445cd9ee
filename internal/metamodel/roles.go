package metamodel

import (
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Extractor derives descriptors for each ingested retrievable and passes it on.
type Extractor interface {
	operator.Operator[*retrievable.Ingested]
	Field() *Field
	Input() operator.Operator[*retrievable.Ingested]
	Persisting() bool
}

// Retriever produces scored candidates for one field.
type Retriever interface {
	operator.Operator[retrievable.Retrieved]
	Field() *Field
}

// Transformer post-processes a single upstream result stream.
type Transformer interface {
	operator.Operator[retrievable.Retrieved]
	Input() operator.Operator[retrievable.Retrieved]
}

// Aggregator merges several upstream result streams.
type Aggregator interface {
	operator.Operator[retrievable.Retrieved]
	Inputs() []operator.Operator[retrievable.Retrieved]
}

// TransformerFactory builds a transformer over input.
type TransformerFactory func(
	input operator.Operator[retrievable.Retrieved], schema *Schema, properties map[string]string,
) (Transformer, error)

// AggregatorFactory builds an aggregator over inputs.
type AggregatorFactory func(
	inputs []operator.Operator[retrievable.Retrieved], schema *Schema, properties map[string]string,
) (Aggregator, error)

// AnalyserFactory creates an analyser instance from field parameters.
type AnalyserFactory func(parameters map[string]string) (Analyser, error)
