// Package api exposes the document question-answering pipeline over HTTP
// and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/askdoc/askdoc/internal/ingestion"
	"github.com/askdoc/askdoc/internal/llm"
	"github.com/askdoc/askdoc/internal/retrieval"
)

const maxEmbedBodySize = 10 << 20 // 10MB

// Ingestor embeds a document and writes it to the index.
type Ingestor interface {
	Ingest(ctx context.Context, text, explicitID string) (ingestion.Receipt, error)
}

// Retriever resolves the context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question, targetID string) (retrieval.Result, error)
}

// Answerer generates an answer from a question and its resolved context.
type Answerer interface {
	Synthesize(ctx context.Context, question, docContext string) (string, error)
}

// Deps carries the services the HTTP layer delegates to.
type Deps struct {
	Ingestor  Ingestor
	Retriever Retriever
	Answerer  Answerer
	Logger    *slog.Logger
}

// NewHandler builds the HTTP router.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/embeddings", handleEmbeddings(deps))
	r.Post("/ask", handleAsk(deps))
	r.Get("/health", handleHealth)

	return r
}

type embeddingsRequest struct {
	Text    string `json:"text"`
	ChunkID string `json:"chunkId"`
}

type askRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"documentID"`
}

type contextSource struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

func handleEmbeddings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxEmbedBodySize)
		defer r.Body.Close()

		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		receipt, err := deps.Ingestor.Ingest(r.Context(), req.Text, req.ChunkID)
		switch {
		case errors.Is(err, ingestion.ErrEmptyDocument), errors.Is(err, llm.ErrEmptyInput):
			httpError(w, http.StatusBadRequest, "text is required")
			return
		case err != nil:
			deps.Logger.Error("ingest failed", "id", req.ChunkID, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to process document")
			return
		}

		deps.Logger.Info("document ingested", "id", receipt.ID)
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"id":      receipt.ID,
			"text":    receipt.Preview,
		})
	}
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxEmbedBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "question is required")
			return
		}
		if req.DocumentID == "" {
			httpError(w, http.StatusBadRequest, "documentID is required")
			return
		}

		result, err := deps.Retriever.Retrieve(r.Context(), req.Question, req.DocumentID)
		if err != nil {
			if errors.Is(err, retrieval.ErrEmptyQuestion) {
				httpError(w, http.StatusBadRequest, "question is required")
				return
			}
			deps.Logger.Error("retrieval failed", "documentID", req.DocumentID, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to answer question")
			return
		}

		sources := make([]contextSource, 0, len(result.Matches))
		for _, m := range result.Matches {
			sources = append(sources, contextSource{ID: m.ID, Text: m.Text, Score: m.Score})
		}

		if !result.Grounded {
			deps.Logger.Info("no relevant context", "documentID", req.DocumentID)
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":    "No relevant context found",
				"question": req.Question,
			})
			return
		}

		answer, err := deps.Answerer.Synthesize(r.Context(), req.Question, result.Context)
		if err != nil {
			deps.Logger.Error("synthesis failed", "documentID", req.DocumentID, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to answer question")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"question":       req.Question,
			"answer":         answer,
			"contextSources": sources,
		})
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}
