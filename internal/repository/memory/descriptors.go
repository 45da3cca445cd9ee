package memory

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
)

type descriptorStore struct {
	conn  *Connection
	field string
}

func (s *descriptorStore) GetBy(_ context.Context, id uuid.UUID, column string) (descriptor.Descriptor, error) {
	s.conn.mu.RLock()
	defer s.conn.mu.RUnlock()
	fs, ok := s.conn.fields[s.field]
	if !ok {
		return nil, fmt.Errorf("%w: field %s", domain.ErrDescriptorNotFound, s.field)
	}
	switch column {
	case descriptor.ColumnID:
		if d, ok := fs.byID[id]; ok {
			return d, nil
		}
	case descriptor.ColumnRetrievableID:
		for _, did := range fs.order {
			d := fs.byID[did]
			if rid, ok := d.RetrievableID(); ok && rid == id {
				return d, nil
			}
		}
	default:
		return nil, fmt.Errorf("%w: cannot look up by column %q", domain.ErrUnsupportedOperation, column)
	}
	return nil, fmt.Errorf("%w: %s=%s in field %s", domain.ErrDescriptorNotFound, column, id, s.field)
}

// Count returns the number of stored descriptors.
func (s *descriptorStore) Count(_ context.Context) (int, error) {
	return s.conn.DescriptorCount(s.field), nil
}

func (s *descriptorStore) Query(_ context.Context, q query.Query) ([]retrievable.Retrieved, error) {
	switch q := q.(type) {
	case query.ProximityQuery:
		return s.nearest(q)
	case query.SimpleBooleanQuery:
		return s.compare(q)
	default:
		return nil, fmt.Errorf("%w: query %T", domain.ErrUnsupportedOperation, q)
	}
}

func (s *descriptorStore) nearest(q query.ProximityQuery) ([]retrievable.Retrieved, error) {
	if q.Descriptor == nil {
		return nil, fmt.Errorf("%w: proximity query without vector", domain.ErrInvalidInput)
	}
	k := q.K
	if k <= 0 {
		k = query.DefaultLimit
	}
	s.conn.mu.RLock()
	defer s.conn.mu.RUnlock()

	best := make(map[uuid.UUID]retrievable.Retrieved)
	for _, d := range s.conn.descriptorsLocked(s.field) {
		v, ok := d.(*descriptor.FloatVector)
		if !ok || v.Dimensions() != q.Descriptor.Dimensions() {
			continue
		}
		rid, ok := d.RetrievableID()
		if !ok {
			continue
		}
		score := Cosine(q.Descriptor.Vector(), v.Vector())
		if prev, seen := best[rid]; seen && prev.Score >= score {
			continue
		}
		r := s.conn.retrievedLocked(rid).WithScore(score)
		if q.ReturnDescriptor {
			r = r.WithDescriptor(d)
		}
		best[rid] = r
	}

	results := make([]retrievable.Retrieved, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	slices.SortFunc(results, func(a, b retrievable.Retrieved) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *descriptorStore) compare(q query.SimpleBooleanQuery) ([]retrievable.Retrieved, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = query.DefaultLimit
	}
	s.conn.mu.RLock()
	defer s.conn.mu.RUnlock()

	var results []retrievable.Retrieved
	seen := make(map[uuid.UUID]bool)
	for _, d := range s.conn.descriptorsLocked(s.field) {
		st, ok := d.(*descriptor.MapStruct)
		if !ok {
			continue
		}
		match, err := q.Comparison.Match(st.Value(q.Attribute), q.Value)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", q.Attribute, err)
		}
		rid, ok := d.RetrievableID()
		if !match || !ok || seen[rid] {
			continue
		}
		seen[rid] = true
		results = append(results, s.conn.retrievedLocked(rid).WithDescriptor(d))
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (s *descriptorStore) Add(ctx context.Context, d descriptor.Descriptor) bool {
	return s.AddAll(ctx, []descriptor.Descriptor{d})
}

// AddAll writes every descriptor or none of them.
func (s *descriptorStore) AddAll(_ context.Context, ds []descriptor.Descriptor) bool {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	for _, d := range ds {
		if err := s.conn.checkLocked(d); err != nil {
			s.conn.logger.Error("Failed to persist descriptors",
				zap.String("field", s.field), zap.Int("count", len(ds)), zap.Error(err))
			return false
		}
	}
	fs := s.conn.fieldLocked(s.field)
	for _, d := range ds {
		if _, exists := fs.byID[d.ID()]; !exists {
			fs.order = append(fs.order, d.ID())
		}
		fs.byID[d.ID()] = d
	}
	return true
}

// Update replaces an existing descriptor.
func (s *descriptorStore) Update(_ context.Context, d descriptor.Descriptor) bool {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if err := s.conn.checkLocked(d); err != nil {
		s.conn.logger.Error("Failed to update descriptor", zap.String("field", s.field), zap.Error(err))
		return false
	}
	fs, ok := s.conn.fields[s.field]
	if !ok {
		return false
	}
	if _, ok := fs.byID[d.ID()]; !ok {
		s.conn.logger.Warn("Descriptor to update not found",
			zap.String("field", s.field), zap.String("descriptor_id", d.ID().String()))
		return false
	}
	fs.byID[d.ID()] = d
	return true
}

func (c *Connection) checkLocked(d descriptor.Descriptor) error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", domain.ErrInvalidInput)
	}
	if d.Transient() {
		return fmt.Errorf("%w: transient descriptor %s", domain.ErrInvalidInput, d.ID())
	}
	if c.reject != nil {
		return c.reject(d)
	}
	return nil
}

func (c *Connection) descriptorsLocked(field string) []descriptor.Descriptor {
	fs, ok := c.fields[field]
	if !ok {
		return nil
	}
	out := make([]descriptor.Descriptor, 0, len(fs.order))
	for _, id := range fs.order {
		out = append(out, fs.byID[id])
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
