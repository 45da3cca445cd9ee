package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

const example = `{
  "inputs": {
    "q1": {"type": "VECTOR", "data": [0.1, 0.2]},
    "q2": {"type": "TEXT", "data": "a dog"},
    "q3": {"type": "ID", "id": "6f1c1f1e-0000-4000-8000-000000000001"},
    "q4": {"type": "IMAGE", "data": "data:image/png;base64,AAAA"},
    "q5": {"type": "BOOLEAN", "attribute": "size", "comparison": ">", "value": "10"}
  },
  "operations": {
    "a1": {"type": "AGGREGATOR", "aggregatorName": "RRF", "inputs": ["r1", "t1"]},
    "t1": {"type": "TRANSFORMER", "transformerName": "Limit", "input": "r1", "properties": {"limit": "10"}},
    "r1": {"type": "RETRIEVER", "field": "clip", "input": "q1"}
  },
  "context": {"global": {"limit": "100"}, "local": {"r1": {"limit": "20"}}},
  "output": "a1"
}`

func TestParse_Example(t *testing.T) {
	d, err := Parse([]byte(example))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Output != "a1" || len(d.Inputs) != 5 || len(d.Operations) != 3 {
		t.Fatalf("unexpected description %+v", d)
	}

	v, ok := d.Inputs["q1"].(VectorInput)
	if !ok || len(v.Data) != 2 || v.Data[1] != 0.2 {
		t.Errorf("q1 = %#v", d.Inputs["q1"])
	}
	id, ok := d.Inputs["q3"].(IDInput)
	if !ok || id.ID != uuid.MustParse("6f1c1f1e-0000-4000-8000-000000000001") {
		t.Errorf("q3 = %#v", d.Inputs["q3"])
	}
	b, ok := d.Inputs["q5"].(BooleanInput)
	if !ok || b.Attribute != "size" || b.Comparison != ">" || b.Value != "10" {
		t.Errorf("q5 = %#v", d.Inputs["q5"])
	}

	agg, ok := d.Operations["a1"].(AggregatorOperation)
	if !ok || agg.AggregatorName != "RRF" || len(agg.Dependencies()) != 2 {
		t.Errorf("a1 = %#v", d.Operations["a1"])
	}
	tr, ok := d.Operations["t1"].(TransformerOperation)
	if !ok || tr.Properties["limit"] != "10" || tr.Dependencies()[0] != "r1" {
		t.Errorf("t1 = %#v", d.Operations["t1"])
	}
	if d.Context.Local["r1"]["limit"] != "20" || d.Context.Global["limit"] != "100" {
		t.Errorf("context = %#v", d.Context)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":           `{`,
		"unknown input":      `{"inputs": {"q": {"type": "AUDIO"}}, "output": "x"}`,
		"unknown operation":  `{"operations": {"o": {"type": "JOIN"}}, "output": "o"}`,
		"bad id":             `{"inputs": {"q": {"type": "ID", "id": "nope"}}}`,
		"vector not numbers": `{"inputs": {"q": {"type": "VECTOR", "data": ["a"]}}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, domain.ErrInvalidDescription) {
				t.Fatalf("expected ErrInvalidDescription, got %v", err)
			}
		})
	}
}

func TestMarshal_KeepsTypeTags(t *testing.T) {
	d, err := Parse([]byte(example))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again, err := Parse(data)
	if err != nil {
		t.Fatalf("re-Parse: %v\n%s", err, data)
	}
	if _, ok := again.Operations["r1"].(RetrieverOperation); !ok {
		t.Errorf("r1 lost its type: %#v", again.Operations["r1"])
	}
	if _, ok := again.Inputs["q4"].(ImageInput); !ok {
		t.Errorf("q4 lost its type: %#v", again.Inputs["q4"])
	}
}
