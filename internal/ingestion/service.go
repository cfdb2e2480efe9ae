// Package ingestion turns extracted document text into a stored vector
// record: resolve an id, embed the text, upsert into the index. One record
// per document; re-ingesting the same id overwrites.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/askdoc/askdoc/internal/chunk"
	"github.com/askdoc/askdoc/internal/index"
)

// ErrEmptyDocument is returned when the text is empty after trimming.
// Rejected before any embedding or index call.
var ErrEmptyDocument = errors.New("empty document")

// previewLen bounds the text preview returned for UI confirmation.
const previewLen = 100

// Embedder generates an embedding vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Upserter writes records into the vector index.
type Upserter interface {
	Upsert(ctx context.Context, rec index.Record) error
}

// Receipt confirms a successful ingestion: the chunk id to use for later
// questions and a bounded preview of the stored text.
type Receipt struct {
	ID      string
	Preview string
}

// Service implements the ingestion pipeline.
type Service struct {
	embedder Embedder
	store    Upserter
}

// NewService creates a Service backed by the given embedder and index.
func NewService(embedder Embedder, store Upserter) *Service {
	return &Service{embedder: embedder, store: store}
}

// Ingest embeds text and upserts it as a single record. explicitID, when
// non-empty, becomes the chunk id; otherwise a time-based id is generated.
// The operation is atomic from the caller's perspective: if embedding fails,
// nothing is written. Embedding and index failures propagate unchanged.
func (s *Service) Ingest(ctx context.Context, text, explicitID string) (Receipt, error) {
	if strings.TrimSpace(text) == "" {
		return Receipt{}, ErrEmptyDocument
	}

	id := explicitID
	if id == "" {
		id = chunk.TimeID()
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return Receipt{}, fmt.Errorf("embedding document %s: %w", id, err)
	}

	rec := index.Record{
		ID:        id,
		Text:      text,
		Embedding: vec,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		return Receipt{}, fmt.Errorf("storing document %s: %w", id, err)
	}

	return Receipt{ID: id, Preview: preview(text)}, nil
}

// preview returns the first previewLen runes of text.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen])
}
