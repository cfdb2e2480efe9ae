package index

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a local SQLite file with brute-force
// cosine similarity search. It keeps the whole pipeline runnable without a
// Qdrant instance; queries scan every stored vector, which is fine up to a
// few tens of thousands of chunks.
type SQLiteStore struct {
	dataDir string

	readyOnce sync.Once
	readyErr  error
	db        *sql.DB
}

// NewSQLiteStore returns a store that will keep its database in dataDir.
// Pass ":memory:" for an in-memory database (used by tests). Nothing is
// opened until EnsureReady.
func NewSQLiteStore(dataDir string) *SQLiteStore {
	return &SQLiteStore{dataDir: dataDir}
}

// EnsureReady opens (or creates) the database and the chunks table. Runs at
// most once per process; concurrent callers share the in-flight attempt.
func (s *SQLiteStore) EnsureReady(ctx context.Context) error {
	s.readyOnce.Do(func() {
		s.readyErr = s.open(ctx)
	})
	return s.readyErr
}

func (s *SQLiteStore) open(ctx context.Context) error {
	var dsn string
	if s.dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
			return fmt.Errorf("%w: creating data directory: %v", ErrProvisioningFailed, err)
		}
		dsn = filepath.Join(s.dataDir, "askdoc.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("%w: opening database: %v", ErrProvisioningFailed, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: pinging database: %v", ErrProvisioningFailed, err)
	}

	// Single connection avoids "database is locked" errors; the busy
	// timeout makes concurrent access wait briefly instead of failing.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("%w: setting busy timeout: %v", ErrProvisioningFailed, err)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return fmt.Errorf("%w: creating chunks table: %v", ErrProvisioningFailed, err)
	}

	s.db = db
	return nil
}

// Upsert writes one record, overwriting any existing row with the same id.
func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, text, embedding, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding,
			created_at = excluded.created_at`,
		rec.ID, rec.Text, encodeFloat32s(rec.Embedding), createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: upserting %s: %v", ErrWrite, rec.ID, err)
	}
	return nil
}

// idScore holds id and score during the scan phase of Query. Text is fetched
// only for the top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// Query scans every stored embedding, scores it against the query vector by
// cosine similarity, and returns the top-K matches in descending order.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning vectors: %v", ErrQuery, err)
	}
	defer rows.Close()

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &idScoreHeap{}
	heap.Init(h)

	var buf []float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ErrQuery, err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding embedding for %s: %v", ErrQuery, id, err)
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrQuery, err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Pop in ascending order, fill the result back to front for descending.
	matches := make([]Match, h.Len())
	for i := len(matches) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		matches[i] = Match{ID: item.ID, Score: item.Score}
	}

	for i := range matches {
		if err := s.db.QueryRowContext(ctx, `SELECT text FROM chunks WHERE id = ?`, matches[i].ID).Scan(&matches[i].Text); err != nil {
			return nil, fmt.Errorf("%w: fetching text for %s: %v", ErrQuery, matches[i].ID, err)
		}
	}

	return matches, nil
}

// Close closes the underlying database, if it was opened.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// idScoreHeap is a min-heap by score, so the root is always the weakest of
// the current top-K candidates.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int            { return len(h) }
func (h idScoreHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x interface{}) { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// norm returns the L2 norm of v.
func norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes the cosine similarity between a and b given a's
// precomputed norm. Mismatched lengths or a zero-norm b score 0.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	bNorm := norm(b)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * float64(bNorm)))
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
