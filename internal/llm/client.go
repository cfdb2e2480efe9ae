// Package llm wraps the OpenAI API for embedding generation and
// context-constrained chat completion. The client is stateless and performs
// no retries: every call either returns a value or a terminal error that the
// caller decides how to surface.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultEmbedModel matches the dimensionality the vector index is
	// provisioned with (1536 dims).
	DefaultEmbedModel = "text-embedding-3-small"

	// DefaultChatModel is the completion model used for answer synthesis.
	DefaultChatModel = "gpt-3.5-turbo"

	// DefaultDimension is the embedding vector length.
	DefaultDimension = 1536

	defaultTimeout = 60 * time.Second
)

// Client calls the OpenAI embeddings and chat completions endpoints.
type Client struct {
	client     openai.Client
	embedModel string
	chatModel  string
	dimension  int
	timeout    time.Duration
}

// New creates a Client with the given API key and models. Empty model names
// and a zero dimension fall back to the defaults. Extra request options are
// passed through to the underlying OpenAI client (tests use this to point at
// a local server).
func New(apiKey, embedModel, chatModel string, dimension int, opts ...option.RequestOption) *Client {
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &Client{
		client:     openai.NewClient(clientOpts...),
		embedModel: embedModel,
		chatModel:  chatModel,
		dimension:  dimension,
		timeout:    defaultTimeout,
	}
}

// Dimension returns the embedding vector length this client produces.
func (c *Client) Dimension() int {
	return c.dimension
}

// Embed returns the embedding vector for text. Empty or whitespace-only
// input fails with ErrEmptyInput before any network call.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmbeddingUnavailable)
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Complete sends a system instruction plus a user message to the chat model
// and returns the generated text. maxTokens bounds the output; temperature
// controls randomness.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", ErrGenerationUnavailable)
	}

	return completion.Choices[0].Message.Content, nil
}
