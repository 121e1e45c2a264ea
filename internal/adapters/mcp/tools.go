// Package mcpadapter exposes complaint search and question answering as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

const (
	ToolSearch = "search_complaints"
	ToolAsk    = "ask_complaints"

	maxTopK = 50
)

// Tools serves MCP tool calls. Searcher and Query are nil while no index is loaded.
type Tools struct {
	Searcher    ports.ComplaintSearcher
	Query       ports.ComplaintQueryService
	LoadErr     error
	DefaultTopK int
}

// NewServer builds an MCP server with both tools registered.
func NewServer(version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer("complaint-analyst", version, server.WithToolCapabilities(false))
	tools.Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool(ToolSearch,
		mcp.WithDescription("Find consumer complaint excerpts semantically similar to a query, best match first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language search text.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of excerpts to return.")),
		mcp.WithString("product", mcp.Description("Optional product scope, e.g. \"Credit card\"."), mcp.Enum(domain.ProductOptions...)),
	), t.handleSearch)

	s.AddTool(mcp.NewTool(ToolAsk,
		mcp.WithDescription("Answer a question about customer complaints, citing the excerpts used as evidence."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question about complaint trends or issues.")),
		mcp.WithString("product", mcp.Description("Optional product scope."), mcp.Enum(domain.ProductOptions...)),
	), t.handleAsk)
}

func (t *Tools) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ready(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	topK := request.GetInt("top_k", t.defaultTopK())
	if topK <= 0 || topK > maxTopK {
		return mcp.NewToolResultError(fmt.Sprintf("top_k must be between 1 and %d", maxTopK)), nil
	}
	filter := domain.NormalizeProductFilter(request.GetString("product", ""))

	results, err := t.Searcher.Search(ctx, query, topK, filter)
	if err != nil {
		return toolError(ToolSearch, err)
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return jsonResult(map[string]any{"results": results, "count": len(results)})
}

func (t *Tools) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ready(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}

	answer, err := t.Query.Query(ctx, question, request.GetString("product", ""))
	if err != nil {
		return toolError(ToolAsk, err)
	}
	if answer.SourceDocuments == nil {
		answer.SourceDocuments = []domain.SearchResult{}
	}
	return jsonResult(answer)
}

func (t *Tools) ready() error {
	if t.LoadErr != nil {
		return domain.WrapError(domain.ErrSystemNotReady, "load index", t.LoadErr)
	}
	if t.Searcher == nil || t.Query == nil {
		return domain.WrapError(domain.ErrSystemNotReady, "load index", errors.New("no index loaded"))
	}
	return nil
}

func (t *Tools) defaultTopK() int {
	if t.DefaultTopK > 0 {
		return t.DefaultTopK
	}
	return 5
}

// toolError reports caller and availability problems as tool results; anything
// else is an internal failure returned to the MCP runtime.
func toolError(tool string, err error) (*mcp.CallToolResult, error) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrSystemNotReady),
		domain.IsKind(err, domain.ErrTemporary):
		return mcp.NewToolResultError(err.Error()), nil
	default:
		slog.Error("mcp_tool_failed", "tool", tool, "error", err)
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
