package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/askdoc/askdoc/internal/config"
	"github.com/askdoc/askdoc/internal/conversation"
)

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable — is askdoc serve running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable — is askdoc serve running? (%w)", err)
	}
	return resp, nil
}

type uploadResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Text    string `json:"text"`
}

// uploadText embeds and stores a document through the server.
func (c *apiClient) uploadText(ctx context.Context, text, id string) (uploadResult, error) {
	resp, err := c.post(ctx, "/embeddings", map[string]string{"text": text, "chunkId": id})
	if err != nil {
		return uploadResult{}, err
	}

	var result uploadResult
	if err := decodeJSON(resp, &result); err != nil {
		return uploadResult{}, err
	}
	return result, nil
}

type askResult struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	ContextSources []struct {
		ID    string  `json:"id"`
		Text  string  `json:"text"`
		Score float32 `json:"score"`
	} `json:"contextSources"`
}

// ask answers a question against a document. A 404 from the server means
// retrieval found nothing relevant and maps to ErrNoRelevantContext.
func (c *apiClient) ask(ctx context.Context, question, documentID string) (askResult, error) {
	resp, err := c.post(ctx, "/ask", map[string]string{"question": question, "documentID": documentID})
	if err != nil {
		return askResult{}, err
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return askResult{}, conversation.ErrNoRelevantContext
	}

	var result askResult
	if err := decodeJSON(resp, &result); err != nil {
		return askResult{}, err
	}
	return result, nil
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
