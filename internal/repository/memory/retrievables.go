package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
)

type retrievableStore struct {
	conn *Connection
}

func (s *retrievableStore) Get(_ context.Context, id uuid.UUID) (retrievable.Retrieved, error) {
	s.conn.mu.RLock()
	defer s.conn.mu.RUnlock()
	if _, ok := s.conn.retrievables[id]; !ok {
		return retrievable.Retrieved{}, fmt.Errorf("%w: %s", domain.ErrRetrievableNotFound, id)
	}
	return s.conn.retrievedLocked(id), nil
}

func (s *retrievableStore) GetAll(_ context.Context, ids []uuid.UUID) ([]retrievable.Retrieved, error) {
	s.conn.mu.RLock()
	defer s.conn.mu.RUnlock()
	out := make([]retrievable.Retrieved, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.conn.retrievables[id]; ok {
			out = append(out, s.conn.retrievedLocked(id))
		}
	}
	return out, nil
}

func (s *retrievableStore) Add(_ context.Context, r *retrievable.Ingested) bool {
	if r == nil {
		return false
	}
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if _, ok := s.conn.retrievables[r.ID()]; !ok {
		s.conn.retrievables[r.ID()] = &storedRetrievable{typ: r.Type()}
	}
	return true
}

// Connect records subject as a part of object. Both must exist.
func (s *retrievableStore) Connect(_ context.Context, rel retrievable.Relationship) bool {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	obj, ok := s.conn.retrievables[rel.Object]
	if _, subjOK := s.conn.retrievables[rel.Subject]; !ok || !subjOK {
		s.conn.logger.Warn("Cannot relate unknown retrievables",
			zap.String("subject", rel.Subject.String()), zap.String("object", rel.Object.String()))
		return false
	}
	if rel.Predicate == retrievable.PredicatePartOf && !slices.Contains(obj.parts, rel.Subject) {
		obj.parts = append(obj.parts, rel.Subject)
	}
	return true
}

// retrievedLocked builds a result for id; unknown ids yield a bare result.
func (c *Connection) retrievedLocked(id uuid.UUID) retrievable.Retrieved {
	r := retrievable.Retrieved{ID: id}
	if st, ok := c.retrievables[id]; ok {
		r.Type = st.typ
		r.Parts = slices.Clone(st.parts)
	}
	return r
}
