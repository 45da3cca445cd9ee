package redisconn

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/db"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/query/filter"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
)

type descriptorStore struct {
	conn  *Connection
	field *metamodel.Field
}

func (s *descriptorStore) key(id uuid.UUID) string {
	return s.conn.descriptorPrefix(s.field.Name()) + id.String()
}

func (s *descriptorStore) indexName() string { return s.conn.IndexName(s.field.Name()) }

// Count returns the number of documents in the field index.
func (s *descriptorStore) Count(ctx context.Context) (int, error) {
	n, err := s.conn.store.SearchCount(ctx, s.indexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.indexName(), err)
	}
	return n, nil
}

// indexDefinition derives the FT schema from the field prototype.
func (s *descriptorStore) indexDefinition() (*db.IndexDefinition, error) {
	proto, err := s.field.Prototype()
	if err != nil {
		return nil, fmt.Errorf("prototype for %s: %w", s.field.Name(), err)
	}
	b := db.NewIndex(s.indexName()).
		Prefix(s.conn.descriptorPrefix(s.field.Name())).
		Tag(descriptor.ColumnID).
		Tag(descriptor.ColumnRetrievableID)
	for _, col := range proto.Schema() {
		b = addIndexField(b, col, s.conn.vector)
	}
	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: index for %s: %w", domain.ErrInvalidInput, s.field.Name(), err)
	}
	return def, nil
}

func (s *descriptorStore) GetBy(ctx context.Context, id uuid.UUID, column string) (descriptor.Descriptor, error) {
	proto, err := s.field.Prototype()
	if err != nil {
		return nil, err
	}
	switch column {
	case descriptor.ColumnID:
		fields, err := s.conn.store.HGetAll(ctx, s.key(id))
		if err != nil {
			return nil, fmt.Errorf("hgetall %s: %w", s.key(id), err)
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: %s=%s in field %s", domain.ErrDescriptorNotFound, column, id, s.field.Name())
		}
		return decodeDescriptor(proto, fields)
	case descriptor.ColumnRetrievableID:
		cond, err := filter.NewMatch(descriptor.ColumnRetrievableID, id.String())
		if err != nil {
			return nil, err
		}
		expr, err := filter.NewExpression([]filter.Condition{cond}, nil, nil)
		if err != nil {
			return nil, err
		}
		res, err := s.conn.store.SearchFiltered(ctx, &db.FilterQuery{
			IndexName: s.indexName(),
			Filters:   expr,
			Limit:     1,
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", s.indexName(), err)
		}
		if len(res.Entries) == 0 {
			return nil, fmt.Errorf("%w: %s=%s in field %s", domain.ErrDescriptorNotFound, column, id, s.field.Name())
		}
		return decodeDescriptor(proto, res.Entries[0].Fields)
	default:
		return nil, fmt.Errorf("%w: cannot look up by column %q", domain.ErrUnsupportedOperation, column)
	}
}

func (s *descriptorStore) Query(ctx context.Context, q query.Query) ([]retrievable.Retrieved, error) {
	switch q := q.(type) {
	case query.ProximityQuery:
		return s.nearest(ctx, q)
	case query.SimpleBooleanQuery:
		return s.compare(ctx, q)
	default:
		return nil, fmt.Errorf("%w: query %T", domain.ErrUnsupportedOperation, q)
	}
}

func (s *descriptorStore) nearest(ctx context.Context, q query.ProximityQuery) ([]retrievable.Retrieved, error) {
	if q.Descriptor == nil || q.Descriptor.Dimensions() == 0 {
		return nil, fmt.Errorf("%w: proximity query without vector", domain.ErrInvalidInput)
	}
	k := q.K
	if k <= 0 {
		k = query.DefaultLimit
	}
	res, err := s.conn.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:     s.indexName(),
		VectorField:   descriptor.ColumnVector,
		Vector:        q.Descriptor.Vector(),
		K:             k,
		ReturnFields:  []string{descriptor.ColumnID, descriptor.ColumnRetrievableID},
		IncludeVector: q.ReturnDescriptor,
	})
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", s.indexName(), err)
	}
	// entries arrive best first; the first hit per retrievable wins
	return s.collect(ctx, res.Entries, true, q.ReturnDescriptor, k)
}

func (s *descriptorStore) compare(ctx context.Context, q query.SimpleBooleanQuery) ([]retrievable.Retrieved, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = query.DefaultLimit
	}
	expr, err := filter.FromBoolean(q)
	if err != nil {
		return nil, err
	}
	res, err := s.conn.store.SearchFiltered(ctx, &db.FilterQuery{
		IndexName: s.indexName(),
		Filters:   expr,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.indexName(), err)
	}
	return s.collect(ctx, res.Entries, false, true, limit)
}

// collect turns search hits into retrievables, one per retrievable id, and attaches type and parts.
func (s *descriptorStore) collect(
	ctx context.Context, entries []db.SearchEntry, scored, withDescriptor bool, limit int,
) ([]retrievable.Retrieved, error) {
	var proto descriptor.Descriptor
	if withDescriptor {
		p, err := s.field.Prototype()
		if err != nil {
			return nil, err
		}
		proto = p
	}

	seen := make(map[uuid.UUID]bool)
	var (
		ids     []uuid.UUID
		results []retrievable.Retrieved
	)
	for _, e := range entries {
		rid, err := uuid.Parse(e.Fields[descriptor.ColumnRetrievableID])
		if err != nil {
			s.conn.logger.Warn("Skipping descriptor without retrievable",
				zap.String("key", e.Key), zap.Error(err))
			continue
		}
		if seen[rid] {
			continue
		}
		seen[rid] = true
		r := retrievable.Retrieved{ID: rid}
		if scored {
			r = r.WithScore(e.Score)
		}
		if withDescriptor {
			d, err := decodeDescriptor(proto, e.Fields)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Key, err)
			}
			r = r.WithDescriptor(d)
		}
		ids = append(ids, rid)
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	if len(results) == 0 {
		return nil, nil
	}

	stored, err := s.conn.loadRetrievables(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if st, ok := stored[results[i].ID]; ok {
			results[i].Type = st.typ
			results[i].Parts = st.parts
		}
	}
	return results, nil
}

func (s *descriptorStore) Add(ctx context.Context, d descriptor.Descriptor) bool {
	return s.AddAll(ctx, []descriptor.Descriptor{d})
}

// AddAll writes every descriptor in one transaction.
func (s *descriptorStore) AddAll(ctx context.Context, ds []descriptor.Descriptor) bool {
	items := make([]db.HashSetItem, 0, len(ds))
	for _, d := range ds {
		fields, err := encodeDescriptor(d)
		if err != nil {
			s.conn.logger.Error("Failed to persist descriptors",
				zap.String("field", s.field.Name()), zap.Int("count", len(ds)), zap.Error(err))
			return false
		}
		items = append(items, db.HashSetItem{Key: s.key(d.ID()), Fields: fields})
	}
	if err := s.conn.store.HSetMulti(ctx, items); err != nil {
		s.conn.logger.Error("Failed to persist descriptors",
			zap.String("field", s.field.Name()), zap.Int("count", len(ds)), zap.Error(err))
		return false
	}
	return true
}

// Update replaces an existing descriptor.
func (s *descriptorStore) Update(ctx context.Context, d descriptor.Descriptor) bool {
	fields, err := encodeDescriptor(d)
	if err != nil {
		s.conn.logger.Error("Failed to update descriptor", zap.String("field", s.field.Name()), zap.Error(err))
		return false
	}
	key := s.key(d.ID())
	exists, err := s.conn.store.Exists(ctx, key)
	if err != nil {
		s.conn.logger.Error("Failed to update descriptor", zap.String("field", s.field.Name()), zap.Error(err))
		return false
	}
	if !exists {
		s.conn.logger.Warn("Descriptor to update not found",
			zap.String("field", s.field.Name()), zap.String("descriptor_id", d.ID().String()))
		return false
	}
	if err := s.conn.store.HSet(ctx, key, fields); err != nil {
		s.conn.logger.Error("Failed to update descriptor", zap.String("field", s.field.Name()), zap.Error(err))
		return false
	}
	return true
}
