package redisconn

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
)

const fieldType = "type"

type storedRetrievable struct {
	typ   string
	parts []uuid.UUID
}

type retrievableStore struct {
	conn *Connection
}

func (s *retrievableStore) Get(ctx context.Context, id uuid.UUID) (retrievable.Retrieved, error) {
	stored, err := s.conn.loadRetrievables(ctx, []uuid.UUID{id})
	if err != nil {
		return retrievable.Retrieved{}, err
	}
	st, ok := stored[id]
	if !ok {
		return retrievable.Retrieved{}, fmt.Errorf("%w: %s", domain.ErrRetrievableNotFound, id)
	}
	return retrievable.Retrieved{ID: id, Type: st.typ, Parts: st.parts}, nil
}

func (s *retrievableStore) GetAll(ctx context.Context, ids []uuid.UUID) ([]retrievable.Retrieved, error) {
	stored, err := s.conn.loadRetrievables(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]retrievable.Retrieved, 0, len(ids))
	for _, id := range ids {
		if st, ok := stored[id]; ok {
			out = append(out, retrievable.Retrieved{ID: id, Type: st.typ, Parts: slices.Clone(st.parts)})
		}
	}
	return out, nil
}

func (s *retrievableStore) Add(ctx context.Context, r *retrievable.Ingested) bool {
	if r == nil {
		return false
	}
	key := s.conn.retrievableKey(r.ID().String())
	if err := s.conn.store.HSet(ctx, key, map[string]string{fieldType: r.Type()}); err != nil {
		s.conn.logger.Error("Failed to persist retrievable",
			zap.String("retrievable_id", r.ID().String()), zap.Error(err))
		return false
	}
	return true
}

// Connect records rel on its object. Both ends must exist.
func (s *retrievableStore) Connect(ctx context.Context, rel retrievable.Relationship) bool {
	for _, id := range []uuid.UUID{rel.Subject, rel.Object} {
		ok, err := s.conn.store.Exists(ctx, s.conn.retrievableKey(id.String()))
		if err != nil {
			s.conn.logger.Error("Failed to check retrievable", zap.String("retrievable_id", id.String()), zap.Error(err))
			return false
		}
		if !ok {
			s.conn.logger.Warn("Cannot relate unknown retrievables",
				zap.String("subject", rel.Subject.String()), zap.String("object", rel.Object.String()))
			return false
		}
	}
	key := s.conn.relationKey(rel.Object.String())
	if err := s.conn.store.HSet(ctx, key, map[string]string{rel.Subject.String(): rel.Predicate}); err != nil {
		s.conn.logger.Error("Failed to persist relationship", zap.String("object", rel.Object.String()), zap.Error(err))
		return false
	}
	return true
}

// loadRetrievables fetches stored retrievables and their parts in two round trips.
func (c *Connection) loadRetrievables(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]storedRetrievable, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]storedRetrievable{}, nil
	}
	keys := make([]string, len(ids))
	relKeys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.retrievableKey(id.String())
		relKeys[i] = c.relationKey(id.String())
	}
	hashes, err := c.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load retrievables: %w", err)
	}
	relations, err := c.store.HGetAllMulti(ctx, relKeys)
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}

	out := make(map[uuid.UUID]storedRetrievable, len(ids))
	for i, id := range ids {
		if i >= len(hashes) || len(hashes[i]) == 0 {
			continue
		}
		st := storedRetrievable{typ: hashes[i][fieldType]}
		if i < len(relations) {
			st.parts = partsOf(relations[i])
		}
		out[id] = st
	}
	return out, nil
}

// partsOf returns the partOf subjects of a relation hash in a stable order.
func partsOf(rel map[string]string) []uuid.UUID {
	var parts []uuid.UUID
	for subject, predicate := range rel {
		if predicate != retrievable.PredicatePartOf {
			continue
		}
		id, err := uuid.Parse(subject)
		if err != nil {
			continue
		}
		parts = append(parts, id)
	}
	slices.SortFunc(parts, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return parts
}
