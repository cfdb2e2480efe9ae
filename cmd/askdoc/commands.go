package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/askdoc/askdoc/internal/chunk"
	"github.com/askdoc/askdoc/internal/config"
	"github.com/askdoc/askdoc/internal/conversation"
	"github.com/askdoc/askdoc/internal/extract"
)

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Extract text from files and store them for question answering",
	Long: `Extract text from files and store them for question answering.

The document id is derived from the filename: lowercased, with whitespace
runs replaced by hyphens. Use that id with ask and chat.

Examples:
  askdoc upload cv.pdf
  askdoc upload notes.txt "Project Plan.pdf"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(4)
		for _, path := range args {
			g.Go(func() error {
				text, err := extract.Text(path)
				if err != nil {
					return err
				}

				id := chunk.ResolveID(filepath.Base(path))
				result, err := client.uploadText(ctx, text, id)
				if err != nil {
					return fmt.Errorf("uploading %s: %w", path, err)
				}

				printSuccess("Uploaded %s as %s", path, result.ID)
				return nil
			})
		}
		return g.Wait()
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question answered from an uploaded document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, _ := cmd.Flags().GetString("doc")
		if doc == "" {
			return fmt.Errorf("--doc is required")
		}
		showSources, _ := cmd.Flags().GetBool("sources")
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		result, err := client.ask(cmd.Context(), question, doc)
		if err != nil {
			if errors.Is(err, conversation.ErrNoRelevantContext) {
				printWarning("No relevant context found for that question.")
				return nil
			}
			return err
		}

		fmt.Println(result.Answer)

		if showSources {
			for _, src := range result.ContextSources {
				text := src.Text
				if len(text) > 120 {
					text = text[:120] + "..."
				}
				fmt.Printf("\n%s [score: %.3f]\n  %s\n", colorize(colorBold, src.ID), src.Score, text)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("doc", "", "id of the document to answer from")
	askCmd.Flags().Bool("sources", false, "show the context sources behind the answer")
}

// --- chat ---

type remoteAsker struct {
	client *apiClient
}

func (a *remoteAsker) Ask(ctx context.Context, question, documentID string) (string, error) {
	result, err := a.client.ask(ctx, question, documentID)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question-and-answer session over a document",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, _ := cmd.Flags().GetString("doc")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		conv := conversation.New(&remoteAsker{client: client})
		conv.SetDocument(doc)

		if doc == "" {
			printWarning("No document selected; upload one and restart with --doc.")
		} else {
			fmt.Printf("Chatting with %s. Type a question, or 'exit' to quit.\n", colorize(colorBold, doc))
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}
			if question == "exit" || question == "quit" {
				return nil
			}

			if _, err := conv.Submit(cmd.Context(), question); err != nil {
				printError("%v", err)
				continue
			}

			msgs := conv.Messages()
			fmt.Println(msgs[len(msgs)-1].Text)
			if alert := conv.Alert(); alert != "" {
				printWarning("%s", alert)
				conv.DismissAlert()
			}
		}
	},
}

func init() {
	chatCmd.Flags().String("doc", "", "id of the document to chat about")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show askdoc system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
		client := &http.Client{Timeout: 2 * time.Second}

		resp, err := client.Get(serverURL + "/health")
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				printStatus("Server", "running on port %d", cfg.Server.Port)
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}

		printStatus("Index", "%s (%s)", cfg.Index.Backend, cfg.Index.Name)
		if cfg.Index.Backend == "qdrant" {
			printStatus("Qdrant", "%s", cfg.Index.QdrantAddr)
		} else {
			printStatus("Data dir", "%s", cfg.Storage.DataDir)
		}
		printStatus("Embed model", "%s", cfg.OpenAI.EmbedModel)
		printStatus("Chat model", "%s", cfg.OpenAI.ChatModel)
		return nil
	},
}
