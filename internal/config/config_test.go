package config

import (
	"strings"
	"testing"
	"time"

	"github.com/askdoc/askdoc/internal/llm"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadWith(envMap(map[string]string{
		"OPENAI_API_KEY": "sk-test",
	}))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.OpenAI.EmbedModel != llm.DefaultEmbedModel {
		t.Errorf("OpenAI.EmbedModel = %q, want %q", cfg.OpenAI.EmbedModel, llm.DefaultEmbedModel)
	}
	if cfg.OpenAI.Dimension != llm.DefaultDimension {
		t.Errorf("OpenAI.Dimension = %d, want %d", cfg.OpenAI.Dimension, llm.DefaultDimension)
	}
	if cfg.Index.Backend != "sqlite" {
		t.Errorf("Index.Backend = %q, want sqlite", cfg.Index.Backend)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("Retrieval.TopK = %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore != 0.5 {
		t.Errorf("Retrieval.MinScore = %v, want 0.5", cfg.Retrieval.MinScore)
	}
	if cfg.Answer.Temperature != 0.3 {
		t.Errorf("Answer.Temperature = %v, want 0.3", cfg.Answer.Temperature)
	}
	if cfg.Answer.MaxTokens != 500 {
		t.Errorf("Answer.MaxTokens = %d, want 500", cfg.Answer.MaxTokens)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := loadWith(envMap(map[string]string{
		"OPENAI_API_KEY":             "sk-test",
		"ASKDOC_PORT":                "8080",
		"ASKDOC_INDEX_BACKEND":       "qdrant",
		"ASKDOC_QDRANT_ADDR":         "qdrant.internal:6334",
		"ASKDOC_INDEX_READY_TIMEOUT": "10s",
		"ASKDOC_TOP_K":               "3",
		"ASKDOC_MIN_SCORE":           "0.72",
		"ASKDOC_TEMPERATURE":         "0.7",
		"ASKDOC_CHAT_MODEL":          "gpt-4o-mini",
	}))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Index.Backend != "qdrant" {
		t.Errorf("Index.Backend = %q, want qdrant", cfg.Index.Backend)
	}
	if cfg.Index.QdrantAddr != "qdrant.internal:6334" {
		t.Errorf("Index.QdrantAddr = %q", cfg.Index.QdrantAddr)
	}
	if cfg.Index.ReadyTimeout != 10*time.Second {
		t.Errorf("Index.ReadyTimeout = %v, want 10s", cfg.Index.ReadyTimeout)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("Retrieval.TopK = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore != 0.72 {
		t.Errorf("Retrieval.MinScore = %v, want 0.72", cfg.Retrieval.MinScore)
	}
	if cfg.Answer.Temperature != 0.7 {
		t.Errorf("Answer.Temperature = %v, want 0.7", cfg.Answer.Temperature)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o-mini" {
		t.Errorf("OpenAI.ChatModel = %q, want gpt-4o-mini", cfg.OpenAI.ChatModel)
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	_, err := loadWith(envMap(map[string]string{}))
	if err == nil {
		t.Fatal("want error for missing API key")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error %q does not mention OPENAI_API_KEY", err)
	}
}

func TestLoadUnknownBackend(t *testing.T) {
	_, err := loadWith(envMap(map[string]string{
		"OPENAI_API_KEY":       "sk-test",
		"ASKDOC_INDEX_BACKEND": "pinecone",
	}))
	if err == nil {
		t.Fatal("want error for unknown backend")
	}
}

func TestLoadBadIntFallsBack(t *testing.T) {
	cfg, err := loadWith(envMap(map[string]string{
		"OPENAI_API_KEY": "sk-test",
		"ASKDOC_PORT":    "not-a-number",
	}))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want default 4000", cfg.Server.Port)
	}
}
