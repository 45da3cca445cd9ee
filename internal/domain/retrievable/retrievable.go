// Package retrievable defines the unit of indexing and retrieval.
package retrievable

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
)

// PredicatePartOf links a segment to the retrievable it was cut from.
const PredicatePartOf = "partOf"

// Retrievable type labels.
const (
	TypeSource  = "SOURCE"
	TypeSegment = "SEGMENT"
)

// Relationship is a directed edge subject -predicate-> object.
type Relationship struct {
	Subject   uuid.UUID
	Predicate string
	Object    uuid.UUID
}

// Source describes where an ingested retrievable came from.
type Source struct {
	Name      string
	URI       string
	Size      int64
	MediaType content.Type
}

// Ingested is a retrievable travelling through an ingestion pipeline.
// Stages may run on different goroutines over its lifetime, so mutation goes through methods.
type Ingested struct {
	id     uuid.UUID
	typ    string
	source *Source

	mu            sync.Mutex
	content       []content.Element
	descriptors   []descriptor.Descriptor
	relationships []Relationship
}

// NewIngested creates an ingested retrievable with a fresh id.
func NewIngested(typ string, source *Source, elems ...content.Element) *Ingested {
	return &Ingested{id: uuid.New(), typ: typ, source: source, content: elems}
}

// ID returns the retrievable id.
func (r *Ingested) ID() uuid.UUID { return r.id }

// Type returns the retrievable type label.
func (r *Ingested) Type() string { return r.typ }

// Source returns the originating source, if any.
func (r *Ingested) Source() (*Source, bool) { return r.source, r.source != nil }

// Content returns a snapshot of the attached content elements.
func (r *Ingested) Content() []content.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.content)
}

// ContentOf returns the attached elements of type t.
func (r *Ingested) ContentOf(t content.Type) []content.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []content.Element
	for _, c := range r.content {
		if c.Type() == t {
			out = append(out, c)
		}
	}
	return out
}

// AddContent attaches content elements.
func (r *Ingested) AddContent(elems ...content.Element) {
	r.mu.Lock()
	r.content = append(r.content, elems...)
	r.mu.Unlock()
}

// ClearContent drops the attached content so its backing can be released.
func (r *Ingested) ClearContent() {
	r.mu.Lock()
	r.content = nil
	r.mu.Unlock()
}

// Descriptors returns a snapshot of the attached descriptors.
func (r *Ingested) Descriptors() []descriptor.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.descriptors)
}

// AddDescriptor attaches a descriptor.
func (r *Ingested) AddDescriptor(d descriptor.Descriptor) {
	r.mu.Lock()
	r.descriptors = append(r.descriptors, d)
	r.mu.Unlock()
}

// Relationships returns a snapshot of the outgoing relationships.
func (r *Ingested) Relationships() []Relationship {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.relationships)
}

// Relate adds an edge from this retrievable to object.
func (r *Ingested) Relate(predicate string, object uuid.UUID) {
	r.mu.Lock()
	r.relationships = append(r.relationships, Relationship{Subject: r.id, Predicate: predicate, Object: object})
	r.mu.Unlock()
}

// Retrieved is a query result: a stored retrievable with an optional score.
type Retrieved struct {
	ID          uuid.UUID
	Type        string
	Score       float64
	Scored      bool
	Descriptors []descriptor.Descriptor
	Parts       []uuid.UUID
}

// WithScore returns a copy of r carrying score.
func (r Retrieved) WithScore(score float64) Retrieved {
	r.Score = score
	r.Scored = true
	return r
}

// WithDescriptor returns a copy of r with d appended.
func (r Retrieved) WithDescriptor(d descriptor.Descriptor) Retrieved {
	r.Descriptors = append(slices.Clone(r.Descriptors), d)
	return r
}
