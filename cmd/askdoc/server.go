package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/openai/openai-go/v3/option"
	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc/internal/answer"
	"github.com/askdoc/askdoc/internal/api"
	"github.com/askdoc/askdoc/internal/config"
	"github.com/askdoc/askdoc/internal/index"
	"github.com/askdoc/askdoc/internal/ingestion"
	"github.com/askdoc/askdoc/internal/llm"
	"github.com/askdoc/askdoc/internal/retrieval"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the askdoc server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "askdoc version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []option.RequestOption
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	client := llm.New(cfg.OpenAI.APIKey, cfg.OpenAI.EmbedModel, cfg.OpenAI.ChatModel, cfg.OpenAI.Dimension, opts...)

	var store index.Store
	switch cfg.Index.Backend {
	case "qdrant":
		store, err = index.NewQdrantStore(cfg.Index.QdrantAddr, cfg.Index.Name, cfg.OpenAI.Dimension, cfg.Index.ReadyTimeout)
		if err != nil {
			return fmt.Errorf("connecting to qdrant: %w", err)
		}
	case "sqlite":
		store = index.NewSQLiteStore(cfg.Storage.DataDir)
	default:
		return fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing index", "error", err)
		}
	}()

	if err := store.EnsureReady(ctx); err != nil {
		return fmt.Errorf("provisioning index: %w", err)
	}
	slog.Info("index ready", "backend", cfg.Index.Backend, "name", cfg.Index.Name)

	ingestor := ingestion.NewService(client, store)
	retriever := retrieval.NewEngine(client, store, cfg.Retrieval.TopK, cfg.Retrieval.MinScore)
	answerer := answer.NewSynthesizer(client, cfg.Answer.Temperature, cfg.Answer.MaxTokens)

	deps := api.Deps{
		Ingestor:  ingestor,
		Retriever: retriever,
		Answerer:  answerer,
		Logger:    logger,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "askdoc listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
