package archipanion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/query/model"
)

// QueryBuilder assembles an information need description: named inputs,
// named operations over them and the operation whose output is returned.
type QueryBuilder struct {
	client *Client
	schema string
	desc   model.InformationNeedDescription
	err    error
}

// Query starts a query against schema.
func (c *Client) Query(schema string) *QueryBuilder {
	return &QueryBuilder{
		client: c,
		schema: schema,
		desc: model.InformationNeedDescription{
			Inputs:     make(map[string]model.Input),
			Operations: make(map[string]model.Operation),
		},
	}
}

func (b *QueryBuilder) input(name string, in model.Input) *QueryBuilder {
	if _, ok := b.desc.Inputs[name]; ok && b.err == nil {
		b.err = fmt.Errorf("archipanion: duplicate input %q", name)
	}
	b.desc.Inputs[name] = in
	return b
}

func (b *QueryBuilder) operation(name string, op model.Operation) *QueryBuilder {
	if _, ok := b.desc.Operations[name]; ok && b.err == nil {
		b.err = fmt.Errorf("archipanion: duplicate operation %q", name)
	}
	b.desc.Operations[name] = op
	return b
}

// Vector adds a raw query vector input.
func (b *QueryBuilder) Vector(name string, v []float32) *QueryBuilder {
	return b.input(name, model.VectorInput{Data: v})
}

// Text adds a text input.
func (b *QueryBuilder) Text(name, text string) *QueryBuilder {
	return b.input(name, model.TextInput{Data: text})
}

// Image adds an image input given as a data URL.
func (b *QueryBuilder) Image(name, dataURL string) *QueryBuilder {
	return b.input(name, model.ImageInput{Data: dataURL})
}

// ID adds an input referencing a stored retrievable.
func (b *QueryBuilder) ID(name string, id uuid.UUID) *QueryBuilder {
	return b.input(name, model.IDInput{ID: id})
}

// Where adds a boolean input comparing a struct attribute with a literal.
// Comparisons are ==, !=, <, >, <=, >= and ~= (like).
func (b *QueryBuilder) Where(name, attribute, comparison, value string) *QueryBuilder {
	return b.input(name, model.BooleanInput{Attribute: attribute, Comparison: comparison, Value: value})
}

// Retrieve adds a retriever of field fed by input.
func (b *QueryBuilder) Retrieve(name, field, input string) *QueryBuilder {
	return b.operation(name, model.RetrieverOperation{Field: field, Input: input})
}

// Lookup adds a direct lookup of the retrievables named by an ID input.
func (b *QueryBuilder) Lookup(name, input string) *QueryBuilder {
	return b.operation(name, model.RetrieverOperation{Input: input})
}

// Transform adds a named transformer over one operation.
func (b *QueryBuilder) Transform(name, transformer, input string, props map[string]string) *QueryBuilder {
	return b.operation(name, model.TransformerOperation{TransformerName: transformer, Input: input, Properties: props})
}

// Aggregate adds a named aggregator over several operations.
func (b *QueryBuilder) Aggregate(name, aggregator string, props map[string]string, inputs ...string) *QueryBuilder {
	return b.operation(name, model.AggregatorOperation{AggregatorName: aggregator, Inputs: inputs, Properties: props})
}

// Property sets a query-wide property such as "limit".
func (b *QueryBuilder) Property(key, value string) *QueryBuilder {
	if b.desc.Context.Global == nil {
		b.desc.Context.Global = make(map[string]string)
	}
	b.desc.Context.Global[key] = value
	return b
}

// OperationProperty overrides a property for one operation.
func (b *QueryBuilder) OperationProperty(operation, key, value string) *QueryBuilder {
	if b.desc.Context.Local == nil {
		b.desc.Context.Local = make(map[string]map[string]string)
	}
	if b.desc.Context.Local[operation] == nil {
		b.desc.Context.Local[operation] = make(map[string]string)
	}
	b.desc.Context.Local[operation][key] = value
	return b
}

// Output names the operation whose results are returned.
func (b *QueryBuilder) Output(name string) *QueryBuilder {
	b.desc.Output = name
	return b
}

// Description returns the assembled description.
func (b *QueryBuilder) Description() (*model.InformationNeedDescription, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.desc.Output == "" {
		return nil, errors.New("archipanion: query has no output")
	}
	return &b.desc, nil
}

// Do sends the query and returns the ranked results.
func (b *QueryBuilder) Do(ctx context.Context) (results []Result, err error) {
	start := time.Now()
	defer func() { b.client.obs.observe("query", start, err) }()

	desc, err := b.Description()
	if err != nil {
		return nil, err
	}
	var resp struct {
		Retrievables []Result `json:"retrievables"`
	}
	if err = b.client.do(ctx, http.MethodPost, "/api/"+url.PathEscape(b.schema)+"/query", desc, &resp); err != nil {
		return nil, err
	}
	return resp.Retrievables, nil
}
