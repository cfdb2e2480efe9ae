// Package retrieval resolves the stored context for a question: embed the
// question, query the index for nearest neighbors, then pick which chunk (if
// any) grounds the answer.
//
// The resolution policy is two-tier. An exact match on the requested chunk
// id always wins, regardless of score, so the answer stays grounded in the
// intended document even when an unrelated document scores higher. Failing
// that, the single highest-scoring match is used if it clears MinScore — a
// deliberate cross-document leniency: the system answers from some document
// when nothing matches the requested one closely. Below the threshold the
// question resolves to no context at all, which is a miss, not an error.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/askdoc/askdoc/internal/index"
)

const (
	// DefaultTopK is how many nearest neighbors are pulled per question.
	DefaultTopK = 5

	// DefaultMinScore is the minimum cosine similarity a match must reach
	// for the cross-document fallback to use it as context.
	DefaultMinScore float32 = 0.5
)

// ErrEmptyQuestion is returned for an empty or missing question, before any
// embedding or index call is made.
var ErrEmptyQuestion = errors.New("empty question")

// Embedder generates an embedding vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher queries the vector index for nearest neighbors.
type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]index.Match, error)
}

// Result is the outcome of one retrieval. Matches carries the full neighbor
// list for diagnostics. When Grounded is true, Context holds the chunk text
// selected to ground the answer; when false the retrieval is a miss and
// Context is empty.
type Result struct {
	Matches  []index.Match
	Context  string
	Grounded bool
}

// Engine embeds questions and resolves context against the vector index.
type Engine struct {
	embedder Embedder
	store    Searcher
	topK     int
	minScore float32
}

// NewEngine creates an Engine. Non-positive topK and minScore fall back to
// the defaults.
func NewEngine(embedder Embedder, store Searcher, topK int, minScore float32) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Engine{
		embedder: embedder,
		store:    store,
		topK:     topK,
		minScore: minScore,
	}
}

// Retrieve embeds question, queries the top-K nearest neighbors, and applies
// the resolution policy against targetID. Embedding and query failures
// propagate unchanged; a miss is reported via Result.Grounded, not an error.
func (e *Engine) Retrieve(ctx context.Context, question, targetID string) (Result, error) {
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}

	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := e.store.Query(ctx, vec, e.topK)
	if err != nil {
		return Result{}, fmt.Errorf("querying index: %w", err)
	}

	res := Result{Matches: matches}

	// Tier one: exact id match wins regardless of score.
	for _, m := range matches {
		if m.ID == targetID {
			res.Context = m.Text
			res.Grounded = true
			return res, nil
		}
	}

	// Tier two: best match, if confident enough.
	if len(matches) > 0 && matches[0].Score >= e.minScore {
		res.Context = matches[0].Text
		res.Grounded = true
	}

	return res, nil
}
