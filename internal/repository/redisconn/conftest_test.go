package redisconn

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/v0idness/archipanion-ve/internal/analyser/averagecolor"
	"github.com/v0idness/archipanion-ve/internal/analyser/filemetadata"
	"github.com/v0idness/archipanion-ve/internal/db"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/query/filter"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/repository/memory"
)

// fakeStore keeps hashes in memory and answers searches by scanning them.
type fakeStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	kv      map[string][]byte
	indexes map[string]*db.IndexDefinition

	hsetMultiErr error
	searchErr    error
	knnQueries   []db.KNNQuery
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes:  make(map[string]map[string]string),
		kv:      make(map[string][]byte),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (f *fakeStore) HSet(_ context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hsetLocked(key, fields)
	return nil
}

func (f *fakeStore) hsetLocked(key string, fields map[string]string) {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hsetMultiErr != nil {
		return f.hsetMultiErr
	}
	for _, it := range items {
		f.hsetLocked(it.Key, it.Fields)
	}
	return nil
}

func (f *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i], _ = f.HGetAll(ctx, k)
	}
	return out, nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.hashes[key]
	return ok, nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

func (f *fakeStore) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes, key)
	delete(f.kv, key)
	return nil
}

func (f *fakeStore) DelMulti(_ context.Context, keys []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, key := range keys {
		_, inHashes := f.hashes[key]
		_, inKV := f.kv[key]
		if inHashes || inKV {
			n++
		}
		delete(f.hashes, key)
		delete(f.kv, key)
	}
	return n, nil
}

// Scan supports trailing-wildcard patterns only.
func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range f.hashes {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	for key := range f.kv {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (f *fakeStore) DropIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(f.indexes, name)
	return nil
}

func (f *fakeStore) SearchCount(_ context.Context, index, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return 0, f.searchErr
	}
	return len(f.indexedKeysLocked(index)), nil
}

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexes[name]
	return ok, nil
}

func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.knnQueries = append(f.knnQueries, *q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var entries []db.SearchEntry
	for _, key := range f.indexedKeysLocked(q.IndexName) {
		h := f.hashes[key]
		vec, err := db.DecodeVector(h[q.VectorField])
		if err != nil || len(vec) != len(q.Vector) || !matches(q.Filters, h) {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  max(0, memory.Cosine(q.Vector, vec)),
			Fields: project(h, q.ReturnFields, q.IncludeVector, q.VectorField),
		})
	}
	slices.SortStableFunc(entries, func(a, b db.SearchEntry) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func (f *fakeStore) SearchFiltered(_ context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var entries []db.SearchEntry
	for _, key := range f.indexedKeysLocked(q.IndexName) {
		h := f.hashes[key]
		if !matches(q.Filters, h) {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: project(h, q.ReturnFields, false, "")})
	}
	total := len(entries)
	if q.Offset < len(entries) {
		entries = entries[q.Offset:]
	} else {
		entries = nil
	}
	if len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// indexedKeysLocked returns the keys covered by an index in sorted order.
func (f *fakeStore) indexedKeysLocked(index string) []string {
	def, ok := f.indexes[index]
	if !ok {
		return nil
	}
	var keys []string
	for key := range f.hashes {
		for _, p := range def.Prefixes {
			if strings.HasPrefix(key, p) {
				keys = append(keys, key)
				break
			}
		}
	}
	slices.Sort(keys)
	return keys
}

func (f *fakeStore) hashCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for key := range f.hashes {
		if strings.HasPrefix(key, prefix) {
			n++
		}
	}
	return n
}

func project(h map[string]string, fields []string, includeVector bool, vectorField string) map[string]string {
	out := make(map[string]string)
	if len(fields) == 0 {
		for k, v := range h {
			out[k] = v
		}
		return out
	}
	for _, name := range fields {
		if v, ok := h[name]; ok {
			out[name] = v
		}
	}
	if includeVector {
		out[vectorField] = h[vectorField]
	}
	return out
}

func matches(expr filter.Expression, h map[string]string) bool {
	for _, c := range expr.Must() {
		if !holds(c, h) {
			return false
		}
	}
	for _, c := range expr.MustNot() {
		if holds(c, h) {
			return false
		}
	}
	if should := expr.Should(); len(should) > 0 {
		return slices.ContainsFunc(should, func(c filter.Condition) bool { return holds(c, h) })
	}
	return true
}

func holds(c filter.Condition, h map[string]string) bool {
	raw, ok := h[c.Key()]
	if !ok {
		return false
	}
	if c.IsMatch() {
		return raw == c.Match()
	}
	if c.IsPattern() {
		like := strings.NewReplacer("*", "%", "?", "_").Replace(c.Pattern())
		ok, err := query.LIKE.Match(types.StringValue(raw), types.StringValue(like))
		return err == nil && ok
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	r := c.Range()
	switch {
	case r.GT() != nil && v <= *r.GT(),
		r.GTE() != nil && v < *r.GTE(),
		r.LT() != nil && v >= *r.LT(),
		r.LTE() != nil && v > *r.LTE():
		return false
	}
	return true
}

type fixture struct {
	store  *fakeStore
	conn   *Connection
	schema *metamodel.Schema
	color  *metamodel.Field
	file   *metamodel.Field
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := newFakeStore()
	conn := New(fs, "test", Config{KeyPrefix: "archipanion:", HNSWM: 16, HNSWEFConstruct: 200}, nil)
	s := metamodel.NewSchema("test", conn)
	color, err := s.AddField("color", averagecolor.New(), nil)
	if err != nil {
		t.Fatalf("AddField color: %v", err)
	}
	file, err := s.AddField("file", filemetadata.New(), nil)
	if err != nil {
		t.Fatalf("AddField file: %v", err)
	}
	ctx := context.Background()
	for _, f := range []*metamodel.Field{color, file} {
		if err := f.Initializer().Initialize(ctx); err != nil {
			t.Fatalf("Initialize %s: %v", f.Name(), err)
		}
	}
	return &fixture{store: fs, conn: conn, schema: s, color: color, file: file}
}

func (fx *fixture) addRetrievable(t *testing.T, typ string) *retrievable.Ingested {
	t.Helper()
	r := retrievable.NewIngested(typ, nil)
	if !fx.conn.RetrievableWriter().Add(context.Background(), r) {
		t.Fatal("Add retrievable failed")
	}
	return r
}

func vec(t *testing.T, rid uuid.UUID, v ...float32) *descriptor.FloatVector {
	t.Helper()
	d, err := descriptor.NewFloatVector(uuid.New(), rid, v)
	if err != nil {
		t.Fatalf("NewFloatVector: %v", err)
	}
	return d
}

func fileMeta(t *testing.T, rid uuid.UUID, path string, size int64) *descriptor.MapStruct {
	t.Helper()
	d, err := descriptor.NewMapStruct(uuid.New(), rid,
		map[string]types.Type{
			filemetadata.ColumnPath:      types.String,
			filemetadata.ColumnSize:      types.Long,
			filemetadata.ColumnExtension: types.String,
		},
		map[string]types.Value{
			filemetadata.ColumnPath:      types.StringValue(path),
			filemetadata.ColumnSize:      types.LongValue(size),
			filemetadata.ColumnExtension: types.StringValue(path[strings.LastIndex(path, ".")+1:]),
		})
	if err != nil {
		t.Fatalf("NewMapStruct: %v", err)
	}
	return d
}
