// Package parsing compiles query descriptions into operator graphs.
package parsing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
	"github.com/v0idness/archipanion-ve/internal/query/model"
	"github.com/v0idness/archipanion-ve/internal/retrieve"
)

// Compiler turns descriptions into operator graphs for one schema.
type Compiler struct {
	schema       *metamodel.Schema
	transformers *metamodel.Registry[metamodel.TransformerFactory]
	aggregators  *metamodel.Registry[metamodel.AggregatorFactory]
	factory      content.Factory
	logger       *zap.Logger
}

// NewCompiler creates a compiler. Query content is allocated through factory.
func NewCompiler(
	schema *metamodel.Schema,
	transformers *metamodel.Registry[metamodel.TransformerFactory],
	aggregators *metamodel.Registry[metamodel.AggregatorFactory],
	factory content.Factory,
	logger *zap.Logger,
) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		schema:       schema,
		transformers: transformers,
		aggregators:  aggregators,
		factory:      factory,
		logger:       logger,
	}
}

// Plan is a compiled query graph.
type Plan struct {
	// Output is the operator bound to the description's output name.
	Output operator.Operator[retrievable.Retrieved]
	// Operators holds every materialized operation by name.
	Operators map[string]operator.Operator[retrievable.Retrieved]
	// Order lists operation names in materialization order; dependencies come first.
	Order []string
}

// Compile returns the output operator of desc.
func (c *Compiler) Compile(ctx context.Context, desc *model.InformationNeedDescription) (operator.Operator[retrievable.Retrieved], error) {
	p, err := c.Plan(ctx, desc)
	if err != nil {
		return nil, err
	}
	return p.Output, nil
}

// Plan materializes every operation of desc. Dependencies are resolved on first reference,
// so declaration order does not matter. Any failure aborts the whole compilation.
func (c *Compiler) Plan(ctx context.Context, desc *model.InformationNeedDescription) (*Plan, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil description", domain.ErrInvalidDescription)
	}
	if _, ok := desc.Operations[desc.Output]; !ok {
		return nil, domain.NewCompileError(desc.Output,
			fmt.Errorf("%w: output %q is not defined", domain.ErrOperationNotFound, desc.Output))
	}

	comp := &compilation{
		Compiler: c,
		ctx:      ctx,
		desc:     desc,
		qctx:     metamodel.NewQueryContext(desc.Context.Global, desc.Context.Local),
		built:    make(map[string]operator.Operator[retrievable.Retrieved], len(desc.Operations)),
		visiting: make(map[string]bool),
		elements: make(map[string]content.Element),
	}
	for _, name := range slices.Sorted(maps.Keys(desc.Operations)) {
		if _, err := comp.resolve(name); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Compiled query",
		zap.String("schema", c.schema.Name()),
		zap.String("output", desc.Output),
		zap.Strings("order", comp.order))
	return &Plan{Output: comp.built[desc.Output], Operators: comp.built, Order: comp.order}, nil
}

// compilation is the state of one Plan call.
type compilation struct {
	*Compiler
	ctx      context.Context
	desc     *model.InformationNeedDescription
	qctx     *metamodel.QueryContext
	built    map[string]operator.Operator[retrievable.Retrieved]
	visiting map[string]bool
	order    []string
	elements map[string]content.Element
}

func (c *compilation) resolve(name string) (operator.Operator[retrievable.Retrieved], error) {
	if op, ok := c.built[name]; ok {
		return op, nil
	}
	if c.visiting[name] {
		return nil, domain.NewCompileError(name, fmt.Errorf("%w: %q depends on itself", domain.ErrCycle, name))
	}
	spec, ok := c.desc.Operations[name]
	if !ok {
		return nil, domain.NewCompileError(name, fmt.Errorf("%w: %q", domain.ErrOperationNotFound, name))
	}

	c.visiting[name] = true
	defer delete(c.visiting, name)

	var (
		op  operator.Operator[retrievable.Retrieved]
		err error
	)
	switch spec := spec.(type) {
	case model.RetrieverOperation:
		op, err = c.retriever(name, spec)
	case model.TransformerOperation:
		op, err = c.transformer(name, spec)
	case model.AggregatorOperation:
		op, err = c.aggregator(name, spec)
	default:
		err = fmt.Errorf("%w: operation type %T", domain.ErrInvalidDescription, spec)
	}
	if err != nil {
		var ce *domain.CompileError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, domain.NewCompileError(name, err)
	}

	c.built[name] = op
	c.order = append(c.order, name)
	return op, nil
}

func (c *compilation) retriever(name string, spec model.RetrieverOperation) (operator.Operator[retrievable.Retrieved], error) {
	input, ok := c.desc.Inputs[spec.Input]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInputNotFound, spec.Input)
	}

	if spec.Field == "" {
		id, ok := input.(model.IDInput)
		if !ok {
			return nil, fmt.Errorf("%w: direct lookup needs an %s input, got %s",
				domain.ErrInvalidInput, model.InputID, input.InputType())
		}
		return retrieve.NewLookup(c.schema.Connection().RetrievableReader(), id.ID), nil
	}

	field, err := c.schema.Field(spec.Field)
	if err != nil {
		return nil, err
	}
	qctx := c.qctx.Scope(name)

	switch in := input.(type) {
	case model.IDInput:
		return c.retrieverByID(field, in.ID, qctx)
	case model.VectorInput:
		if len(in.Data) == 0 {
			return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
		}
		return field.RetrieverForDescriptors([]descriptor.Descriptor{descriptor.NewTransientFloatVector(in.Data)}, qctx)
	case model.BooleanInput:
		q, err := c.booleanQuery(field, in)
		if err != nil {
			return nil, err
		}
		return field.RetrieverForQuery(q, qctx)
	default:
		elem, err := c.contentFor(spec.Input, input)
		if err != nil {
			return nil, err
		}
		return field.RetrieverForContent([]content.Element{elem}, qctx)
	}
}

func (c *compilation) retrieverByID(field *metamodel.Field, id uuid.UUID, qctx *metamodel.QueryContext) (metamodel.Retriever, error) {
	d, err := field.Reader().GetBy(c.ctx, id, descriptor.ColumnRetrievableID)
	if err != nil {
		if errors.Is(err, domain.ErrDescriptorNotFound) {
			return nil, fmt.Errorf("%w: no descriptor for retrievable %s in field %s",
				domain.ErrDescriptorNotFound, id, field.Name())
		}
		return nil, fmt.Errorf("read descriptor of %s: %w", id, err)
	}
	return field.RetrieverForDescriptors([]descriptor.Descriptor{d}, qctx)
}

// booleanQuery types the literal by the column's declared type in the analyser's prototype.
func (c *compilation) booleanQuery(field *metamodel.Field, in model.BooleanInput) (query.SimpleBooleanQuery, error) {
	proto, err := field.Prototype()
	if err != nil {
		return query.SimpleBooleanQuery{}, err
	}
	idx := slices.IndexFunc(proto.Schema(), func(s descriptor.FieldSchema) bool { return s.Name == in.Attribute })
	if idx < 0 {
		return query.SimpleBooleanQuery{}, fmt.Errorf("%w: field %s has no sub-field %q",
			domain.ErrFieldNotFound, field.Name(), in.Attribute)
	}
	op, err := query.ParseComparison(in.Comparison)
	if err != nil {
		return query.SimpleBooleanQuery{}, err
	}
	value, err := types.Parse(proto.Schema()[idx].Type, in.Value)
	if err != nil {
		return query.SimpleBooleanQuery{}, fmt.Errorf("sub-field %q: %w", in.Attribute, err)
	}
	return query.SimpleBooleanQuery{Attribute: in.Attribute, Comparison: op, Value: value}, nil
}

// contentFor converts an input to content once per input name.
func (c *compilation) contentFor(inputName string, input model.Input) (content.Element, error) {
	if elem, ok := c.elements[inputName]; ok {
		return elem, nil
	}
	var (
		elem content.Element
		err  error
	)
	switch in := input.(type) {
	case model.TextInput:
		elem, err = c.factory.NewText(in.Data)
	case model.ImageInput:
		elem, err = content.DecodeDataURL(in.Data, c.factory)
	default:
		err = fmt.Errorf("%w: input %q of type %s has no content form",
			domain.ErrUnsupportedOperation, inputName, input.InputType())
	}
	if err != nil {
		return nil, err
	}
	c.elements[inputName] = elem
	return elem, nil
}

func (c *compilation) transformer(name string, spec model.TransformerOperation) (operator.Operator[retrievable.Retrieved], error) {
	input, err := c.resolve(spec.Input)
	if err != nil {
		return nil, err
	}
	factory, err := c.transformers.Lookup(spec.TransformerName)
	if err != nil {
		return nil, err
	}
	return factory(input, c.schema, c.properties(name, spec.Properties))
}

func (c *compilation) aggregator(name string, spec model.AggregatorOperation) (operator.Operator[retrievable.Retrieved], error) {
	if len(spec.Inputs) == 0 {
		return nil, fmt.Errorf("%w: aggregator %s", domain.ErrEmptyInputs, spec.AggregatorName)
	}
	inputs := make([]operator.Operator[retrievable.Retrieved], 0, len(spec.Inputs))
	for _, in := range spec.Inputs {
		op, err := c.resolve(in)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, op)
	}
	factory, err := c.aggregators.Lookup(spec.AggregatorName)
	if err != nil {
		return nil, err
	}
	return factory(inputs, c.schema, c.properties(name, spec.Properties))
}

// properties layers the operation's own properties over its context-local ones,
// and those over the global context.
func (c *compilation) properties(name string, own map[string]string) map[string]string {
	props := maps.Clone(c.desc.Context.Global)
	if props == nil {
		props = make(map[string]string, len(own))
	}
	maps.Copy(props, c.desc.Context.Local[name])
	maps.Copy(props, own)
	return props
}
