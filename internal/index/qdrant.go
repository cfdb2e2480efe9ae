package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// DefaultReadyTimeout bounds how long provisioning waits for the
	// collection to report green before giving up.
	DefaultReadyTimeout = 30 * time.Second

	defaultPollInterval = 500 * time.Millisecond
)

// pointNamespace seeds the deterministic UUIDs used as Qdrant point ids.
// Qdrant only accepts integers or UUIDs as point ids, so the chunk id is
// hashed into a UUIDv5 and kept verbatim in the payload. The mapping is
// stable: re-upserting the same chunk id overwrites the same point.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// collectionsAPI is the subset of the Qdrant collections service the store
// uses. Narrowed from the generated client so tests can fake it.
type collectionsAPI interface {
	List(ctx context.Context, in *qdrant.ListCollectionsRequest, opts ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error)
	Create(ctx context.Context, in *qdrant.CreateCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error)
	Get(ctx context.Context, in *qdrant.GetCollectionInfoRequest, opts ...grpc.CallOption) (*qdrant.GetCollectionInfoResponse, error)
}

// pointsAPI is the subset of the Qdrant points service the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
	Search(ctx context.Context, in *qdrant.SearchPoints, opts ...grpc.CallOption) (*qdrant.SearchResponse, error)
}

// QdrantStore is a Store backed by a single named Qdrant collection with
// cosine similarity.
type QdrantStore struct {
	conn         *grpc.ClientConn
	collections  collectionsAPI
	points       pointsAPI
	collection   string
	dimension    int
	readyTimeout time.Duration
	pollInterval time.Duration

	readyOnce sync.Once
	readyErr  error
}

// NewQdrantStore connects to a Qdrant instance at addr (host:port, gRPC) and
// returns a store for the named collection. The collection is not touched
// until EnsureReady.
func NewQdrantStore(addr, collection string, dimension int, readyTimeout time.Duration) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s: %w", addr, err)
	}

	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}

	return &QdrantStore{
		conn:         conn,
		collections:  qdrant.NewCollectionsClient(conn),
		points:       qdrant.NewPointsClient(conn),
		collection:   collection,
		dimension:    dimension,
		readyTimeout: readyTimeout,
		pollInterval: defaultPollInterval,
	}, nil
}

// EnsureReady creates the collection if absent (cosine metric, configured
// dimension) and polls until it reports green, up to the ready timeout.
// Provisioning runs at most once per process; concurrent callers block on
// the same in-flight attempt and share its result.
func (s *QdrantStore) EnsureReady(ctx context.Context) error {
	s.readyOnce.Do(func() {
		s.readyErr = s.provision(ctx)
	})
	return s.readyErr
}

func (s *QdrantStore) provision(ctx context.Context) error {
	list, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: listing collections: %v", ErrProvisioningFailed, err)
	}

	exists := false
	for _, col := range list.GetCollections() {
		if col.GetName() == s.collection {
			exists = true
			break
		}
	}

	if !exists {
		req := &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(s.dimension),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		}
		if _, err := s.collections.Create(ctx, req); err != nil {
			return fmt.Errorf("%w: creating collection %q: %v", ErrProvisioningFailed, s.collection, err)
		}
	}

	return s.waitReady(ctx)
}

// waitReady polls the collection status until green or the timeout elapses.
func (s *QdrantStore) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(s.readyTimeout)
	for {
		info, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
			CollectionName: s.collection,
		})
		if err == nil && info.GetResult().GetStatus() == qdrant.CollectionStatus_Green {
			return nil
		}

		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("%w: collection %q not ready after %s: %v", ErrProvisioningFailed, s.collection, s.readyTimeout, err)
			}
			return fmt.Errorf("%w: collection %q not ready after %s (status %s)", ErrProvisioningFailed, s.collection, s.readyTimeout, info.GetResult().GetStatus())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrProvisioningFailed, ctx.Err())
		case <-time.After(s.pollInterval):
		}
	}
}

// Upsert writes one record, overwriting any existing point with the same
// chunk id.
func (s *QdrantStore) Upsert(ctx context.Context, rec Record) error {
	point := &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID(rec.ID)},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: rec.Embedding},
			},
		},
		Payload: map[string]*qdrant.Value{
			"chunk_id": {Kind: &qdrant.Value_StringValue{StringValue: rec.ID}},
			"text":     {Kind: &qdrant.Value_StringValue{StringValue: rec.Text}},
		},
	}

	req := &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	}
	if _, err := s.points.Upsert(ctx, req); err != nil {
		return fmt.Errorf("%w: upserting %s: %v", ErrWrite, rec.ID, err)
	}
	return nil
}

// Query returns up to topK nearest neighbors by cosine similarity, with the
// chunk id and stored text read back from the payload.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	req := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Include{
				Include: &qdrant.PayloadIncludeSelector{
					Fields: []string{"chunk_id", "text"},
				},
			},
		},
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	matches := make([]Match, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		m := Match{Score: point.GetScore()}
		if v, ok := point.GetPayload()["chunk_id"]; ok {
			m.ID = v.GetStringValue()
		}
		if v, ok := point.GetPayload()["text"]; ok {
			m.Text = v.GetStringValue()
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Close tears down the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

// pointID maps a chunk id to its deterministic Qdrant point UUID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Compile-time check that QdrantStore implements Store.
var _ Store = (*QdrantStore)(nil)
