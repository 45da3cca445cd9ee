package retrieve

import "github.com/v0idness/archipanion-ve/internal/metamodel"

// NewTransformerRegistry returns a registry holding every built-in transformer.
func NewTransformerRegistry() *metamodel.Registry[metamodel.TransformerFactory] {
	r := metamodel.NewRegistry[metamodel.TransformerFactory]("transformer")
	_ = r.Register(NameLimit, NewLimit)
	_ = r.Register(NameScoreThreshold, NewScoreThreshold)
	_ = r.Register(NameFieldLookup, NewFieldLookup)
	return r
}

// NewAggregatorRegistry returns a registry holding every built-in aggregator.
func NewAggregatorRegistry() *metamodel.Registry[metamodel.AggregatorFactory] {
	r := metamodel.NewRegistry[metamodel.AggregatorFactory]("aggregator")
	_ = r.Register(NameRRF, NewRRF)
	_ = r.Register(NameWeightedScoreFusion, NewWeightedScoreFusion)
	return r
}
