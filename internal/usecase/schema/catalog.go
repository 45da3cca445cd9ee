package schema

import (
	"fmt"
	"slices"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/ingest"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
)

type entry struct {
	schema    *metamodel.Schema
	pipelines map[string]*ingest.Pipeline
}

// Catalog holds the configured schemas and their pipelines. It is filled once
// at startup and read concurrently afterwards.
type Catalog struct {
	entries map[string]*entry
	names   []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]*entry)}
}

// Add registers s with its pipelines.
func (c *Catalog) Add(s *metamodel.Schema, pipelines ...*ingest.Pipeline) error {
	if _, ok := c.entries[s.Name()]; ok {
		return fmt.Errorf("%w: duplicate schema %q", domain.ErrInvalidInput, s.Name())
	}
	e := &entry{schema: s, pipelines: make(map[string]*ingest.Pipeline, len(pipelines))}
	for _, p := range pipelines {
		if p.Schema() != s {
			return fmt.Errorf("%w: pipeline %q belongs to another schema", domain.ErrInvalidInput, p.Name())
		}
		if _, ok := e.pipelines[p.Name()]; ok {
			return fmt.Errorf("%w: duplicate pipeline %q in schema %q", domain.ErrInvalidInput, p.Name(), s.Name())
		}
		e.pipelines[p.Name()] = p
	}
	c.entries[s.Name()] = e
	c.names = append(c.names, s.Name())
	slices.Sort(c.names)
	return nil
}

// Names lists schema names in lexical order.
func (c *Catalog) Names() []string { return slices.Clone(c.names) }

// Schema returns the named schema.
func (c *Catalog) Schema(name string) (*metamodel.Schema, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSchemaNotFound, name)
	}
	return e.schema, nil
}

// Pipeline returns a pipeline of the named schema.
func (c *Catalog) Pipeline(schema, name string) (*ingest.Pipeline, error) {
	e, ok := c.entries[schema]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSchemaNotFound, schema)
	}
	p, ok := e.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrPipelineNotFound, schema, name)
	}
	return p, nil
}

// Pipelines lists the pipeline names of a schema in lexical order.
func (c *Catalog) Pipelines(schema string) []string {
	e, ok := c.entries[schema]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(e.pipelines))
	for name := range e.pipelines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close closes every schema connection.
func (c *Catalog) Close() error {
	var firstErr error
	for _, name := range c.names {
		if err := c.entries[name].schema.Connection().Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
	}
	return firstErr
}
