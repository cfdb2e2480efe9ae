// Package index owns the lifecycle of the vector index: idempotent
// provisioning, upserts, and nearest-neighbor queries. Two backends implement
// the same Store contract: a Qdrant collection reached over gRPC (the
// default) and a local SQLite table with brute-force cosine similarity.
package index

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProvisioningFailed is returned when the index cannot be created or
	// does not become queryable within the ready timeout. Fatal at startup:
	// no ingestion or retrieval can proceed without a ready index.
	ErrProvisioningFailed = errors.New("index provisioning failed")

	// ErrWrite is returned when an upsert fails upstream.
	ErrWrite = errors.New("index write failed")

	// ErrQuery is returned when a similarity query fails upstream.
	ErrQuery = errors.New("index query failed")
)

// Record is the persisted representation of a chunk: its id, the full text
// (kept as retrievable metadata), and the embedding vector.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// Match is one nearest-neighbor query result, with cosine similarity score
// in [-1, 1] and the stored text attached.
type Match struct {
	ID    string
	Score float32
	Text  string
}

// Store is the vector index contract shared by ingestion and retrieval.
//
// EnsureReady must run to completion exactly once per process before any
// Upsert or Query is accepted; implementations guard it with a one-shot
// barrier so concurrent early callers wait on the same in-flight
// provisioning instead of racing to create the index twice.
//
// Upsert is idempotent: writing a record whose id already exists overwrites
// the previous record (last write wins). Query returns up to topK matches
// ordered by descending score.
type Store interface {
	EnsureReady(ctx context.Context) error
	Upsert(ctx context.Context, rec Record) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Close() error
}
