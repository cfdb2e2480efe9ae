// Package config assembles runtime configuration from an optional .env
// file plus environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/askdoc/askdoc/internal/index"
	"github.com/askdoc/askdoc/internal/llm"
	"github.com/askdoc/askdoc/internal/retrieval"
)

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Index     IndexConfig
	Retrieval RetrievalConfig
	Answer    AnswerConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
	Dimension  int
}

// IndexConfig selects and tunes the vector index backend: "qdrant" for a
// remote collection, "sqlite" for a local file.
type IndexConfig struct {
	Backend      string
	Name         string
	QdrantAddr   string
	ReadyTimeout time.Duration
}

type RetrievalConfig struct {
	TopK     int
	MinScore float32
}

type AnswerConfig struct {
	Temperature float64
	MaxTokens   int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		OpenAI: OpenAIConfig{
			EmbedModel: llm.DefaultEmbedModel,
			ChatModel:  llm.DefaultChatModel,
			Dimension:  llm.DefaultDimension,
		},
		Index: IndexConfig{
			Backend:      "sqlite",
			Name:         "documents",
			QdrantAddr:   "localhost:6334",
			ReadyTimeout: index.DefaultReadyTimeout,
		},
		Retrieval: RetrievalConfig{
			TopK:     retrieval.DefaultTopK,
			MinScore: retrieval.DefaultMinScore,
		},
		Answer: AnswerConfig{
			Temperature: 0.3,
			MaxTokens:   500,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "askdoc")
}

// Load reads configuration from a .env file in the working directory (if
// present) and the environment. ASKDOC_* variables override defaults; the
// OpenAI key is read from OPENAI_API_KEY and is required.
func Load() (Config, error) {
	// Missing .env is fine; env vars alone are a valid setup.
	_ = godotenv.Load()
	return loadWith(os.Getenv)
}

func loadWith(getenv func(string) string) (Config, error) {
	cfg := defaults()

	setStr(getenv, "OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	setStr(getenv, "ASKDOC_OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	setStr(getenv, "ASKDOC_EMBED_MODEL", &cfg.OpenAI.EmbedModel)
	setStr(getenv, "ASKDOC_CHAT_MODEL", &cfg.OpenAI.ChatModel)
	setInt(getenv, "ASKDOC_EMBED_DIMENSION", &cfg.OpenAI.Dimension)

	setInt(getenv, "ASKDOC_PORT", &cfg.Server.Port)

	setStr(getenv, "ASKDOC_INDEX_BACKEND", &cfg.Index.Backend)
	setStr(getenv, "ASKDOC_INDEX_NAME", &cfg.Index.Name)
	setStr(getenv, "ASKDOC_QDRANT_ADDR", &cfg.Index.QdrantAddr)
	setDuration(getenv, "ASKDOC_INDEX_READY_TIMEOUT", &cfg.Index.ReadyTimeout)

	setInt(getenv, "ASKDOC_TOP_K", &cfg.Retrieval.TopK)
	setFloat32(getenv, "ASKDOC_MIN_SCORE", &cfg.Retrieval.MinScore)

	setFloat64(getenv, "ASKDOC_TEMPERATURE", &cfg.Answer.Temperature)
	setInt(getenv, "ASKDOC_MAX_TOKENS", &cfg.Answer.MaxTokens)

	setStr(getenv, "ASKDOC_DATA_DIR", &cfg.Storage.DataDir)
	setStr(getenv, "ASKDOC_LOG_LEVEL", &cfg.Log.Level)

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set it via OPENAI_API_KEY or a .env file")
	}

	switch cfg.Index.Backend {
	case "qdrant", "sqlite":
	default:
		return Config{}, fmt.Errorf("unknown index backend %q (want qdrant or sqlite)", cfg.Index.Backend)
	}

	return cfg, nil
}

func setStr(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setInt(getenv func(string) string, key string, dst *int) {
	raw := getenv(key)
	if raw == "" {
		return
	}
	if i, err := strconv.Atoi(raw); err == nil {
		*dst = i
	} else {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", key, raw, err)
	}
}

func setFloat32(getenv func(string) string, key string, dst *float32) {
	raw := getenv(key)
	if raw == "" {
		return
	}
	if f, err := strconv.ParseFloat(raw, 32); err == nil {
		*dst = float32(f)
	} else {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", key, raw, err)
	}
}

func setFloat64(getenv func(string) string, key string, dst *float64) {
	raw := getenv(key)
	if raw == "" {
		return
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*dst = f
	} else {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", key, raw, err)
	}
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) {
	raw := getenv(key)
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	} else {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", key, raw, err)
	}
}
