package redisconn

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/v0idness/archipanion-ve/internal/analyser/averagecolor"
	"github.com/v0idness/archipanion-ve/internal/analyser/filemetadata"
	"github.com/v0idness/archipanion-ve/internal/db"
	"github.com/v0idness/archipanion-ve/internal/db/redis"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/domain/descriptor"
	"github.com/v0idness/archipanion-ve/internal/domain/query"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/domain/types"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
)

func TestInitialize_FieldIndexes(t *testing.T) {
	fx := newFixture(t)

	color := fx.store.indexes[fx.conn.IndexName("color")]
	if color == nil {
		t.Fatal("color index not created")
	}
	if !slices.Equal(color.Prefixes, []string{"archipanion:test:d:color:"}) {
		t.Errorf("prefixes = %v", color.Prefixes)
	}
	var vectorField *db.IndexField
	for i := range color.Fields {
		if color.Fields[i].Name == descriptor.ColumnVector {
			vectorField = &color.Fields[i]
		}
	}
	if vectorField == nil {
		t.Fatal("vector field missing")
	}
	if vectorField.VectorDim != 3 || vectorField.VectorParams.Algorithm != db.VectorHNSW ||
		vectorField.VectorParams.M != 16 || vectorField.VectorParams.EFConstruct != 200 {
		t.Errorf("vector field = %+v", vectorField)
	}

	file := fx.store.indexes[fx.conn.IndexName("file")]
	kinds := map[string]db.IndexFieldType{}
	for _, f := range file.Fields {
		kinds[f.Name] = f.Type
	}
	want := map[string]db.IndexFieldType{
		descriptor.ColumnID:            db.IndexFieldTag,
		descriptor.ColumnRetrievableID: db.IndexFieldTag,
		filemetadata.ColumnPath:        db.IndexFieldTag,
		filemetadata.ColumnExtension:   db.IndexFieldTag,
		filemetadata.ColumnSize:        db.IndexFieldNumeric,
	}
	for name, typ := range want {
		if kinds[name] != typ {
			t.Errorf("field %s type = %v, want %v", name, kinds[name], typ)
		}
	}

	ctx := context.Background()
	if !fx.color.Initializer().IsInitialized(ctx) {
		t.Error("color should be initialized")
	}
	if err := fx.color.Initializer().Initialize(ctx); err != nil {
		t.Errorf("second Initialize: %v", err)
	}
}

func TestRetrievableInitializer_Marker(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	init := fx.conn.RetrievableInitializer()

	if init.IsInitialized(ctx) {
		t.Fatal("fresh schema should not be initialized")
	}
	if err := init.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !init.IsInitialized(ctx) {
		t.Error("expected initialized")
	}
}

func TestDescriptors_WriteAndRead(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.addRetrievable(t, retrievable.TypeSource)

	d := vec(t, r.ID(), 0.5, 0.25, 1)
	if !fx.color.Writer().Add(ctx, d) {
		t.Fatal("Add failed")
	}

	got, err := fx.color.Reader().GetBy(ctx, d.ID(), descriptor.ColumnID)
	if err != nil {
		t.Fatalf("GetBy id: %v", err)
	}
	fv, ok := got.(*descriptor.FloatVector)
	if !ok || !slices.Equal(fv.Vector(), d.Vector()) {
		t.Errorf("GetBy id = %+v", got)
	}
	if rid, _ := got.RetrievableID(); rid != r.ID() {
		t.Errorf("retrievable id = %s, want %s", rid, r.ID())
	}

	got, err = fx.color.Reader().GetBy(ctx, r.ID(), descriptor.ColumnRetrievableID)
	if err != nil {
		t.Fatalf("GetBy retrievableId: %v", err)
	}
	if got.ID() != d.ID() {
		t.Errorf("GetBy retrievableId = %s, want %s", got.ID(), d.ID())
	}

	_, err = fx.color.Reader().GetBy(ctx, uuid.New(), descriptor.ColumnID)
	if !errors.Is(err, domain.ErrDescriptorNotFound) {
		t.Errorf("expected ErrDescriptorNotFound, got %v", err)
	}
	_, err = fx.color.Reader().GetBy(ctx, d.ID(), descriptor.ColumnVector)
	if !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestDescriptors_MapStructRoundTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.addRetrievable(t, retrievable.TypeSource)
	d := fileMeta(t, r.ID(), "/data/a.png", 42)
	if !fx.file.Writer().Add(ctx, d) {
		t.Fatal("Add failed")
	}

	got, err := fx.file.Reader().GetBy(ctx, d.ID(), descriptor.ColumnID)
	if err != nil {
		t.Fatalf("GetBy: %v", err)
	}
	st := got.(*descriptor.MapStruct)
	if st.Value(filemetadata.ColumnPath) != types.StringValue("/data/a.png") {
		t.Errorf("path = %v", st.Value(filemetadata.ColumnPath))
	}
	if st.Value(filemetadata.ColumnSize) != types.LongValue(42) {
		t.Errorf("size = %v", st.Value(filemetadata.ColumnSize))
	}
}

func TestDescriptors_AddAllIsAtomic(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.addRetrievable(t, retrievable.TypeSource)

	batch := []descriptor.Descriptor{
		vec(t, r.ID(), 1, 0, 0),
		descriptor.NewTransientFloatVector([]float32{0, 1, 0}),
	}
	if fx.color.Writer().AddAll(ctx, batch) {
		t.Fatal("AddAll with a transient descriptor should fail")
	}
	if n := fx.store.hashCount("archipanion:test:d:color:"); n != 0 {
		t.Errorf("stored %d descriptors, want 0", n)
	}

	fx.store.hsetMultiErr = errors.New("exec aborted")
	if fx.color.Writer().AddAll(ctx, []descriptor.Descriptor{vec(t, r.ID(), 1, 0, 0)}) {
		t.Error("AddAll should report store failure")
	}
}

func TestDescriptors_Update(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.addRetrievable(t, retrievable.TypeSource)
	d := vec(t, r.ID(), 1, 0, 0)

	if fx.color.Writer().Update(ctx, d) {
		t.Fatal("Update of a missing descriptor should fail")
	}
	if !fx.color.Writer().Add(ctx, d) {
		t.Fatal("Add failed")
	}
	changed, err := descriptor.NewFloatVector(d.ID(), r.ID(), []float32{0, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !fx.color.Writer().Update(ctx, changed) {
		t.Fatal("Update failed")
	}
	got, err := fx.color.Reader().GetBy(ctx, d.ID(), descriptor.ColumnID)
	if err != nil {
		t.Fatal(err)
	}
	if v := got.(*descriptor.FloatVector).Vector(); !slices.Equal(v, []float32{0, 0, 1}) {
		t.Errorf("vector = %v", v)
	}
}

func TestQuery_Proximity(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	red := fx.addRetrievable(t, retrievable.TypeSource)
	blue := fx.addRetrievable(t, retrievable.TypeSource)
	seg := fx.addRetrievable(t, retrievable.TypeSegment)

	if !fx.conn.RetrievableWriter().Connect(ctx, retrievable.Relationship{
		Subject: seg.ID(), Predicate: retrievable.PredicatePartOf, Object: red.ID(),
	}) {
		t.Fatal("Connect failed")
	}
	ok := fx.color.Writer().AddAll(ctx, []descriptor.Descriptor{
		vec(t, red.ID(), 1, 0, 0),
		vec(t, red.ID(), 0.9, 0.1, 0),
		vec(t, blue.ID(), 0, 0, 1),
	})
	if !ok {
		t.Fatal("AddAll failed")
	}

	res, err := fx.color.Reader().Query(ctx, query.ProximityQuery{
		Descriptor:       descriptor.NewTransientFloatVector([]float32{1, 0, 0}),
		K:                10,
		ReturnDescriptor: true,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results, want 2", len(res))
	}
	if res[0].ID != red.ID() || res[1].ID != blue.ID() {
		t.Errorf("order = %s, %s", res[0].ID, res[1].ID)
	}
	if !res[0].Scored || res[0].Score < 0.99 {
		t.Errorf("red score = %v scored=%v", res[0].Score, res[0].Scored)
	}
	if res[0].Type != retrievable.TypeSource || !slices.Equal(res[0].Parts, []uuid.UUID{seg.ID()}) {
		t.Errorf("red = %+v", res[0])
	}
	if len(res[0].Descriptors) != 1 {
		t.Errorf("expected the matching descriptor, got %d", len(res[0].Descriptors))
	}

	q := fx.store.knnQueries[len(fx.store.knnQueries)-1]
	if q.VectorField != descriptor.ColumnVector || !q.IncludeVector || q.K != 10 {
		t.Errorf("knn query = %+v", q)
	}
}

func TestQuery_ProximityRequiresVector(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.color.Reader().Query(context.Background(), query.ProximityQuery{K: 3})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestQuery_Boolean(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	small := fx.addRetrievable(t, retrievable.TypeSource)
	large := fx.addRetrievable(t, retrievable.TypeSource)
	ok := fx.file.Writer().AddAll(ctx, []descriptor.Descriptor{
		fileMeta(t, small.ID(), "/data/a.png", 10),
		fileMeta(t, large.ID(), "/data/b.jpg", 20),
	})
	if !ok {
		t.Fatal("AddAll failed")
	}

	tests := []struct {
		name string
		q    query.SimpleBooleanQuery
		want []uuid.UUID
	}{
		{
			name: "numeric greater",
			q:    query.SimpleBooleanQuery{Attribute: filemetadata.ColumnSize, Comparison: query.GT, Value: types.LongValue(15)},
			want: []uuid.UUID{large.ID()},
		},
		{
			name: "string equality",
			q: query.SimpleBooleanQuery{
				Attribute: filemetadata.ColumnPath, Comparison: query.EQ, Value: types.StringValue("/data/a.png"),
			},
			want: []uuid.UUID{small.ID()},
		},
		{
			name: "limit",
			q: query.SimpleBooleanQuery{
				Attribute: filemetadata.ColumnSize, Comparison: query.GEQ, Value: types.LongValue(0), Limit: 1,
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := fx.file.Reader().Query(ctx, tt.q)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if tt.q.Limit > 0 {
				if len(res) != tt.q.Limit {
					t.Errorf("got %d results, want %d", len(res), tt.q.Limit)
				}
				return
			}
			ids := make([]uuid.UUID, len(res))
			for i, r := range res {
				ids[i] = r.ID
				if r.Scored {
					t.Errorf("boolean result %s should be unscored", r.ID)
				}
				if len(r.Descriptors) != 1 {
					t.Errorf("boolean result %s should carry its descriptor", r.ID)
				}
			}
			if !slices.Equal(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestQuery_BooleanLike(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	png := fx.addRetrievable(t, retrievable.TypeSource)
	jpg := fx.addRetrievable(t, retrievable.TypeSource)
	if !fx.file.Writer().AddAll(ctx, []descriptor.Descriptor{
		fileMeta(t, png.ID(), "/data/a.png", 10),
		fileMeta(t, jpg.ID(), "/data/b.jpg", 20),
	}) {
		t.Fatal("AddAll failed")
	}

	res, err := fx.file.Reader().Query(ctx, query.SimpleBooleanQuery{
		Attribute: filemetadata.ColumnPath, Comparison: query.LIKE, Value: types.StringValue("%.png"),
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res) != 1 || res[0].ID != png.ID() {
		t.Errorf("results = %+v", res)
	}

	_, err = fx.file.Reader().Query(ctx, query.SimpleBooleanQuery{
		Attribute: filemetadata.ColumnSize, Comparison: query.LIKE, Value: types.LongValue(10),
	})
	if !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation for LIKE on numbers, got %v", err)
	}
}

func TestQuery_SearchError(t *testing.T) {
	fx := newFixture(t)
	fx.store.searchErr = errors.New("connection reset")
	_, err := fx.color.Reader().Query(context.Background(), query.ProximityQuery{
		Descriptor: descriptor.NewTransientFloatVector([]float32{1, 0, 0}),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRetrievables_GetAndGetAll(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.addRetrievable(t, retrievable.TypeSource)
	b := fx.addRetrievable(t, retrievable.TypeSegment)

	got, err := fx.conn.RetrievableReader().Get(ctx, b.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != retrievable.TypeSegment {
		t.Errorf("type = %q", got.Type)
	}

	_, err = fx.conn.RetrievableReader().Get(ctx, uuid.New())
	if !errors.Is(err, domain.ErrRetrievableNotFound) {
		t.Errorf("expected ErrRetrievableNotFound, got %v", err)
	}

	all, err := fx.conn.RetrievableReader().GetAll(ctx, []uuid.UUID{b.ID(), uuid.New(), a.ID()})
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 2 || all[0].ID != b.ID() || all[1].ID != a.ID() {
		t.Errorf("GetAll = %+v", all)
	}
}

func TestRetrievables_ConnectUnknown(t *testing.T) {
	fx := newFixture(t)
	a := fx.addRetrievable(t, retrievable.TypeSource)
	ok := fx.conn.RetrievableWriter().Connect(context.Background(), retrievable.Relationship{
		Subject: uuid.New(), Predicate: retrievable.PredicatePartOf, Object: a.ID(),
	})
	if ok {
		t.Error("Connect with an unknown subject should fail")
	}
}

func TestInitialize_RedisStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var sent []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		DoAndReturn(func(_ context.Context, cmd rueidis.Completed) rueidis.RedisResult {
			sent = cmd.Commands()
			return mock.Result(mock.RedisString("OK"))
		})
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	store := redis.NewStoreForTest(c)
	conn := New(store, "demo", Config{KeyPrefix: "arch:", HNSWM: 8}, nil)
	s := metamodel.NewSchema("demo", conn)
	f, err := s.AddField("color", averagecolor.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := f.Initializer().Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := f.Initializer().Initialize(ctx); err != nil {
		t.Fatalf("Initialize on an existing index: %v", err)
	}

	for _, want := range []string{"arch:demo:idx:color", "arch:demo:d:color:", "HNSW", "M", "8"} {
		if !slices.Contains(sent, want) {
			t.Errorf("FT.CREATE %v lacks %q", sent, want)
		}
	}
	if slices.Contains(sent, "EF_CONSTRUCTION") {
		t.Errorf("unset EF_CONSTRUCTION should be omitted: %v", sent)
	}
}

func TestDescriptors_CountAndDeinitialize(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.addRetrievable(t, retrievable.TypeSource)
	if !fx.color.Writer().AddAll(ctx, []descriptor.Descriptor{vec(t, r.ID(), 1, 0, 0), vec(t, r.ID(), 0, 1, 0)}) {
		t.Fatal("AddAll failed")
	}

	n, err := fx.color.Reader().(metamodel.Counter).Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v; want 2", n, err)
	}

	init := fx.color.Initializer().(metamodel.Deinitializer)
	if err := init.Deinitialize(ctx); err != nil {
		t.Fatalf("Deinitialize: %v", err)
	}
	if fx.color.Initializer().IsInitialized(ctx) {
		t.Error("index still present")
	}
	if n := fx.store.hashCount("archipanion:test:d:color:"); n != 0 {
		t.Errorf("%d descriptor hashes left", n)
	}
	if fx.store.hashCount("archipanion:test:r:") != 1 {
		t.Error("field teardown must keep retrievables")
	}
	if err := init.Deinitialize(ctx); err != nil {
		t.Errorf("second Deinitialize: %v", err)
	}
}

func TestRetrievableInitializer_Deinitialize(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	init := fx.conn.RetrievableInitializer()
	if err := init.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	a := fx.addRetrievable(t, retrievable.TypeSource)
	b := fx.addRetrievable(t, retrievable.TypeSegment)
	if !fx.conn.RetrievableWriter().Connect(ctx, retrievable.Relationship{
		Subject: b.ID(), Predicate: retrievable.PredicatePartOf, Object: a.ID(),
	}) {
		t.Fatal("Connect failed")
	}

	if err := init.(metamodel.Deinitializer).Deinitialize(ctx); err != nil {
		t.Fatalf("Deinitialize: %v", err)
	}
	if init.IsInitialized(ctx) {
		t.Error("marker still set")
	}
	if _, err := fx.conn.RetrievableReader().Get(ctx, a.ID()); !errors.Is(err, domain.ErrRetrievableNotFound) {
		t.Errorf("expected ErrRetrievableNotFound, got %v", err)
	}
	for _, prefix := range []string{"archipanion:test:r:", "archipanion:test:rel:"} {
		if n := fx.store.hashCount(prefix); n != 0 {
			t.Errorf("%d keys left under %s", n, prefix)
		}
	}
}

func TestDeinitialize_RedisStoreUnknownIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "arch:demo:idx:color")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SCAN" })).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(mock.RedisString("arch:demo:d:color:1"), mock.RedisString("arch:demo:d:color:2")),
		)))
	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("DEL", "arch:demo:d:color:1", "arch:demo:d:color:2")).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(2))})

	conn := New(redis.NewStoreForTest(c), "demo", Config{KeyPrefix: "arch:"}, nil)
	s := metamodel.NewSchema("demo", conn)
	f, err := s.AddField("color", averagecolor.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Initializer().(metamodel.Deinitializer).Deinitialize(context.Background()); err != nil {
		t.Fatalf("Deinitialize: %v", err)
	}
}
