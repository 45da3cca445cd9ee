// Package model is the serializable query description: named inputs, named operations
// and the name of the operation whose output is the query result.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

// InputType tags an input payload.
type InputType string

// Input kinds.
const (
	InputVector  InputType = "VECTOR"
	InputText    InputType = "TEXT"
	InputID      InputType = "ID"
	InputImage   InputType = "IMAGE"
	InputBoolean InputType = "BOOLEAN"
)

// Input is a named query payload.
type Input interface {
	InputType() InputType
}

// VectorInput is a raw query vector.
type VectorInput struct {
	Data []float32 `json:"data"`
}

// TextInput is query text.
type TextInput struct {
	Data string `json:"data"`
}

// IDInput references a stored retrievable.
type IDInput struct {
	ID uuid.UUID `json:"id"`
}

// ImageInput is an image data URL.
type ImageInput struct {
	Data string `json:"data"`
}

// BooleanInput compares a struct column against a literal.
type BooleanInput struct {
	Attribute  string `json:"attribute"`
	Comparison string `json:"comparison"`
	Value      string `json:"value"`
}

func (VectorInput) InputType() InputType  { return InputVector }
func (TextInput) InputType() InputType    { return InputText }
func (IDInput) InputType() InputType      { return InputID }
func (ImageInput) InputType() InputType   { return InputImage }
func (BooleanInput) InputType() InputType { return InputBoolean }

// OperationType tags an operation.
type OperationType string

// Operation kinds.
const (
	OperationRetriever   OperationType = "RETRIEVER"
	OperationTransformer OperationType = "TRANSFORMER"
	OperationAggregator  OperationType = "AGGREGATOR"
)

// Operation is a named node of the query graph.
type Operation interface {
	OperationType() OperationType
	// Dependencies lists referenced operation names.
	Dependencies() []string
}

// RetrieverOperation retrieves candidates for one field. An empty Field means a direct id lookup.
type RetrieverOperation struct {
	Field string `json:"field"`
	Input string `json:"input"`
}

// TransformerOperation post-processes one upstream operation.
type TransformerOperation struct {
	TransformerName string            `json:"transformerName"`
	Input           string            `json:"input"`
	Properties      map[string]string `json:"properties,omitempty"`
}

// AggregatorOperation merges several upstream operations.
type AggregatorOperation struct {
	AggregatorName string            `json:"aggregatorName"`
	Inputs         []string          `json:"inputs"`
	Properties     map[string]string `json:"properties,omitempty"`
}

func (RetrieverOperation) OperationType() OperationType   { return OperationRetriever }
func (TransformerOperation) OperationType() OperationType { return OperationTransformer }
func (AggregatorOperation) OperationType() OperationType  { return OperationAggregator }

func (RetrieverOperation) Dependencies() []string     { return nil }
func (o TransformerOperation) Dependencies() []string { return []string{o.Input} }
func (o AggregatorOperation) Dependencies() []string  { return o.Inputs }

// Context carries query-wide properties and per-operation overrides.
type Context struct {
	Global map[string]string            `json:"global,omitempty"`
	Local  map[string]map[string]string `json:"local,omitempty"`
}

// InformationNeedDescription is a complete query.
type InformationNeedDescription struct {
	Inputs     map[string]Input
	Operations map[string]Operation
	Context    Context
	Output     string
}

// Parse decodes a description. Malformed documents wrap domain.ErrInvalidDescription.
func Parse(data []byte) (*InformationNeedDescription, error) {
	var d InformationNeedDescription
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidDescription, err)
	}
	return &d, nil
}

type wireDescription struct {
	Inputs     map[string]json.RawMessage `json:"inputs"`
	Operations map[string]json.RawMessage `json:"operations"`
	Context    Context                    `json:"context"`
	Output     string                     `json:"output"`
}

type typeTag struct {
	Type string `json:"type"`
}

// UnmarshalJSON dispatches inputs and operations on their "type" tag.
func (d *InformationNeedDescription) UnmarshalJSON(data []byte) error {
	var w wireDescription
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.Inputs = make(map[string]Input, len(w.Inputs))
	for name, raw := range w.Inputs {
		in, err := decodeInput(raw)
		if err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
		d.Inputs[name] = in
	}
	d.Operations = make(map[string]Operation, len(w.Operations))
	for name, raw := range w.Operations {
		op, err := decodeOperation(raw)
		if err != nil {
			return fmt.Errorf("operation %q: %w", name, err)
		}
		d.Operations[name] = op
	}
	d.Context = w.Context
	d.Output = w.Output
	return nil
}

// MarshalJSON writes every input and operation with its "type" tag.
func (d InformationNeedDescription) MarshalJSON() ([]byte, error) {
	w := wireDescription{
		Inputs:     make(map[string]json.RawMessage, len(d.Inputs)),
		Operations: make(map[string]json.RawMessage, len(d.Operations)),
		Context:    d.Context,
		Output:     d.Output,
	}
	for name, in := range d.Inputs {
		raw, err := tagged(string(in.InputType()), in)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		w.Inputs[name] = raw
	}
	for name, op := range d.Operations {
		raw, err := tagged(string(op.OperationType()), op)
		if err != nil {
			return nil, fmt.Errorf("operation %q: %w", name, err)
		}
		w.Operations[name] = raw
	}
	return json.Marshal(w)
}

func decodeInput(raw json.RawMessage) (Input, error) {
	var tag typeTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}
	switch InputType(tag.Type) {
	case InputVector:
		return decodeAs[VectorInput](raw)
	case InputText:
		return decodeAs[TextInput](raw)
	case InputID:
		return decodeAs[IDInput](raw)
	case InputImage:
		return decodeAs[ImageInput](raw)
	case InputBoolean:
		return decodeAs[BooleanInput](raw)
	default:
		return nil, fmt.Errorf("unknown input type %q", tag.Type)
	}
}

func decodeOperation(raw json.RawMessage) (Operation, error) {
	var tag typeTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}
	switch OperationType(tag.Type) {
	case OperationRetriever:
		return decodeAs[RetrieverOperation](raw)
	case OperationTransformer:
		return decodeAs[TransformerOperation](raw)
	case OperationAggregator:
		return decodeAs[AggregatorOperation](raw)
	default:
		return nil, fmt.Errorf("unknown operation type %q", tag.Type)
	}
}

func decodeAs[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// tagged marshals v and prepends a "type" member.
func tagged(typ string, v any) (json.RawMessage, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(typeTag{Type: typ})
	if err != nil {
		return nil, err
	}
	body = bytes.TrimPrefix(body, []byte("{"))
	head = bytes.TrimSuffix(head, []byte("}"))
	if len(body) > 1 {
		head = append(head, ',')
	}
	return append(head, body...), nil
}
