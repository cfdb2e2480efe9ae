package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// fakeCollections implements collectionsAPI for tests.
type fakeCollections struct {
	listCalls   int
	createCalls int
	existing    []string
	statuses    []qdrant.CollectionStatus // consumed one per Get call; last repeats
	getCalls    int
	createErr   error
}

func (f *fakeCollections) List(context.Context, *qdrant.ListCollectionsRequest, ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error) {
	f.listCalls++
	cols := make([]*qdrant.CollectionDescription, len(f.existing))
	for i, name := range f.existing {
		cols[i] = &qdrant.CollectionDescription{Name: name}
	}
	return &qdrant.ListCollectionsResponse{Collections: cols}, nil
}

func (f *fakeCollections) Create(_ context.Context, in *qdrant.CreateCollection, _ ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.existing = append(f.existing, in.GetCollectionName())
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Get(context.Context, *qdrant.GetCollectionInfoRequest, ...grpc.CallOption) (*qdrant.GetCollectionInfoResponse, error) {
	idx := f.getCalls
	f.getCalls++
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return &qdrant.GetCollectionInfoResponse{
		Result: &qdrant.CollectionInfo{Status: f.statuses[idx]},
	}, nil
}

// fakePoints implements pointsAPI for tests.
type fakePoints struct {
	upserts   []*qdrant.UpsertPoints
	searchFn  func(*qdrant.SearchPoints) (*qdrant.SearchResponse, error)
	upsertErr error
}

func (f *fakePoints) Upsert(_ context.Context, in *qdrant.UpsertPoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserts = append(f.upserts, in)
	return &qdrant.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, in *qdrant.SearchPoints, _ ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	if f.searchFn != nil {
		return f.searchFn(in)
	}
	return &qdrant.SearchResponse{}, nil
}

func newTestStore(cols *fakeCollections, pts *fakePoints, readyTimeout time.Duration) *QdrantStore {
	return &QdrantStore{
		collections:  cols,
		points:       pts,
		collection:   "documents",
		dimension:    1536,
		readyTimeout: readyTimeout,
		pollInterval: time.Millisecond,
	}
}

func TestEnsureReady_CreatesMissingCollection(t *testing.T) {
	cols := &fakeCollections{statuses: []qdrant.CollectionStatus{qdrant.CollectionStatus_Green}}
	s := newTestStore(cols, &fakePoints{}, time.Second)

	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}
	if cols.createCalls != 1 {
		t.Errorf("create called %d times, want 1", cols.createCalls)
	}
}

func TestEnsureReady_SkipsCreateWhenPresent(t *testing.T) {
	cols := &fakeCollections{
		existing: []string{"documents"},
		statuses: []qdrant.CollectionStatus{qdrant.CollectionStatus_Green},
	}
	s := newTestStore(cols, &fakePoints{}, time.Second)

	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}
	if cols.createCalls != 0 {
		t.Errorf("create called %d times, want 0", cols.createCalls)
	}
}

func TestEnsureReady_WaitsForGreen(t *testing.T) {
	cols := &fakeCollections{
		statuses: []qdrant.CollectionStatus{
			qdrant.CollectionStatus_Yellow,
			qdrant.CollectionStatus_Yellow,
			qdrant.CollectionStatus_Green,
		},
	}
	s := newTestStore(cols, &fakePoints{}, time.Second)

	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}
	if cols.getCalls < 3 {
		t.Errorf("status polled %d times, want at least 3", cols.getCalls)
	}
}

func TestEnsureReady_TimesOut(t *testing.T) {
	cols := &fakeCollections{statuses: []qdrant.CollectionStatus{qdrant.CollectionStatus_Yellow}}
	s := newTestStore(cols, &fakePoints{}, 5*time.Millisecond)

	err := s.EnsureReady(context.Background())
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Errorf("error = %v, want ErrProvisioningFailed", err)
	}
}

func TestEnsureReady_RunsOnce(t *testing.T) {
	cols := &fakeCollections{statuses: []qdrant.CollectionStatus{qdrant.CollectionStatus_Green}}
	s := newTestStore(cols, &fakePoints{}, time.Second)

	for i := 0; i < 3; i++ {
		if err := s.EnsureReady(context.Background()); err != nil {
			t.Fatalf("EnsureReady call %d failed: %v", i, err)
		}
	}
	if cols.listCalls != 1 {
		t.Errorf("provisioning ran %d times, want 1", cols.listCalls)
	}
}

func TestEnsureReady_FailureIsSticky(t *testing.T) {
	cols := &fakeCollections{
		createErr: errors.New("quota exceeded"),
		statuses:  []qdrant.CollectionStatus{qdrant.CollectionStatus_Green},
	}
	s := newTestStore(cols, &fakePoints{}, time.Second)

	err1 := s.EnsureReady(context.Background())
	err2 := s.EnsureReady(context.Background())
	if !errors.Is(err1, ErrProvisioningFailed) || !errors.Is(err2, ErrProvisioningFailed) {
		t.Errorf("errors = %v, %v; want ErrProvisioningFailed from both calls", err1, err2)
	}
	if cols.createCalls != 1 {
		t.Errorf("create called %d times, want 1 (no re-provisioning)", cols.createCalls)
	}
}

func TestUpsert_DeterministicPointID(t *testing.T) {
	pts := &fakePoints{}
	s := newTestStore(&fakeCollections{}, pts, time.Second)

	rec := Record{ID: "report.pdf", Text: "hello", Embedding: []float32{1, 0}}
	if err := s.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	if len(pts.upserts) != 2 {
		t.Fatalf("got %d upserts, want 2", len(pts.upserts))
	}
	id1 := pts.upserts[0].GetPoints()[0].GetId().GetUuid()
	id2 := pts.upserts[1].GetPoints()[0].GetId().GetUuid()
	if id1 == "" || id1 != id2 {
		t.Errorf("point ids %q and %q, want identical non-empty UUIDs", id1, id2)
	}

	payload := pts.upserts[0].GetPoints()[0].GetPayload()
	if payload["chunk_id"].GetStringValue() != "report.pdf" {
		t.Errorf("payload chunk_id = %q, want %q", payload["chunk_id"].GetStringValue(), "report.pdf")
	}
	if payload["text"].GetStringValue() != "hello" {
		t.Errorf("payload text = %q, want %q", payload["text"].GetStringValue(), "hello")
	}
}

func TestUpsert_WriteError(t *testing.T) {
	pts := &fakePoints{upsertErr: errors.New("unavailable")}
	s := newTestStore(&fakeCollections{}, pts, time.Second)

	err := s.Upsert(context.Background(), Record{ID: "a", Embedding: []float32{1}})
	if !errors.Is(err, ErrWrite) {
		t.Errorf("error = %v, want ErrWrite", err)
	}
}

func TestQuery_MapsPayload(t *testing.T) {
	pts := &fakePoints{
		searchFn: func(in *qdrant.SearchPoints) (*qdrant.SearchResponse, error) {
			if in.GetLimit() != 5 {
				t.Errorf("limit = %d, want 5", in.GetLimit())
			}
			return &qdrant.SearchResponse{
				Result: []*qdrant.ScoredPoint{
					{
						Score: 0.92,
						Payload: map[string]*qdrant.Value{
							"chunk_id": {Kind: &qdrant.Value_StringValue{StringValue: "report.pdf"}},
							"text":     {Kind: &qdrant.Value_StringValue{StringValue: "the text"}},
						},
					},
				},
			}, nil
		},
	}
	s := newTestStore(&fakeCollections{}, pts, time.Second)

	matches, err := s.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].ID != "report.pdf" || matches[0].Text != "the text" {
		t.Errorf("match = %+v, want id report.pdf with text", matches[0])
	}
	if matches[0].Score != 0.92 {
		t.Errorf("score = %v, want 0.92", matches[0].Score)
	}
}

func TestQuery_QueryError(t *testing.T) {
	pts := &fakePoints{
		searchFn: func(*qdrant.SearchPoints) (*qdrant.SearchResponse, error) {
			return nil, errors.New("connection refused")
		},
	}
	s := newTestStore(&fakeCollections{}, pts, time.Second)

	_, err := s.Query(context.Background(), []float32{1}, 5)
	if !errors.Is(err, ErrQuery) {
		t.Errorf("error = %v, want ErrQuery", err)
	}
}
