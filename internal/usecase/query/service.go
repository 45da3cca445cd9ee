// Package query answers information needs against a named schema.
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/query/execution"
	"github.com/v0idness/archipanion-ve/internal/query/model"
)

// Schemas resolves schema names.
type Schemas interface {
	Names() []string
	Schema(name string) (*metamodel.Schema, error)
}

// Service holds one runner per schema.
type Service struct {
	runners map[string]*execution.Runner
}

// New creates a runner for every schema in schemas.
func New(
	schemas Schemas,
	transformers *metamodel.Registry[metamodel.TransformerFactory],
	aggregators *metamodel.Registry[metamodel.AggregatorFactory],
	factory content.Factory,
	logger *zap.Logger,
) (*Service, error) {
	runners := make(map[string]*execution.Runner)
	for _, name := range schemas.Names() {
		s, err := schemas.Schema(name)
		if err != nil {
			return nil, err
		}
		runners[name] = execution.NewRunner(s, transformers, aggregators, factory, logger)
	}
	return &Service{runners: runners}, nil
}

// Query compiles desc against the named schema and returns its results.
func (s *Service) Query(
	ctx context.Context, schema string, desc *model.InformationNeedDescription,
) ([]execution.Result, error) {
	r, ok := s.runners[schema]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSchemaNotFound, schema)
	}
	results, err := r.Run(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", schema, err)
	}
	return results, nil
}
