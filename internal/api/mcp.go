package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing the pipeline as tools, so a
// client can upload documents and ask questions over stdio.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"askdoc",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("askdoc — upload documents and ask questions answered from their content."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("upload_text",
			mcp.WithDescription("Embed a document's text and store it for question answering."),
			mcp.WithString("text", mcp.Description("The document text to store"), mcp.Required()),
			mcp.WithString("chunk_id", mcp.Description("Optional stable id for the document (defaults to a timestamp)")),
		),
		mcpUploadText(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_document",
			mcp.WithDescription("Answer a question from a previously uploaded document."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("document_id", mcp.Description("Id of the document to answer from"), mcp.Required()),
		),
		mcpAskDocument(deps),
	)

	return s
}

func mcpUploadText(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		chunkID := req.GetString("chunk_id", "")

		receipt, err := deps.Ingestor.Ingest(ctx, text, chunkID)
		if err != nil {
			return mcpError(fmt.Sprintf("upload failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored document %s", receipt.ID)), nil
	}
}

func mcpAskDocument(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		documentID, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}

		result, err := deps.Retriever.Retrieve(ctx, question, documentID)
		if err != nil {
			return mcpError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}
		if !result.Grounded {
			return mcpError("No relevant context found"), nil
		}

		answer, err := deps.Answerer.Synthesize(ctx, question, result.Context)
		if err != nil {
			return mcpError(fmt.Sprintf("answering failed: %v", err)), nil
		}

		sources := make([]contextSource, 0, len(result.Matches))
		for _, m := range result.Matches {
			sources = append(sources, contextSource{ID: m.ID, Text: m.Text, Score: m.Score})
		}
		b, err := json.Marshal(map[string]any{
			"question":       question,
			"answer":         answer,
			"contextSources": sources,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
