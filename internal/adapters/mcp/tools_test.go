package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

type searcherFake struct {
	gotTopK   int
	gotFilter string
	results   []domain.SearchResult
	err       error
}

func (f *searcherFake) Search(_ context.Context, _ string, topK int, filter string) ([]domain.SearchResult, error) {
	f.gotTopK = topK
	f.gotFilter = filter
	return f.results, f.err
}

type queryFake struct {
	answer *domain.Answer
	err    error
}

func (f *queryFake) Query(context.Context, string, string) (*domain.Answer, error) {
	return f.answer, f.err
}

func (f *queryFake) QueryStream(context.Context, string, string) (*domain.AnswerStream, error) {
	return nil, errors.New("not used")
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("expected tool result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestSearchToolAppliesDefaultsAndFilter(t *testing.T) {
	searcher := &searcherFake{results: []domain.SearchResult{{ChunkID: "1_0", Product: "Credit card", Score: 0.5}}}
	tools := &Tools{Searcher: searcher, Query: &queryFake{}, DefaultTopK: 4}

	result, err := tools.handleSearch(context.Background(), callRequest(ToolSearch, map[string]any{
		"query":   "annual fee",
		"product": "All Products",
	}))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if searcher.gotTopK != 4 || searcher.gotFilter != "" {
		t.Fatalf("unexpected search args: %d %q", searcher.gotTopK, searcher.gotFilter)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("expected count 1, got %d", body.Count)
	}
}

func TestSearchToolRejectsMissingQuery(t *testing.T) {
	tools := &Tools{Searcher: &searcherFake{}, Query: &queryFake{}}
	result, err := tools.handleSearch(context.Background(), callRequest(ToolSearch, map[string]any{}))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestSearchToolAcceptsBlankQuery(t *testing.T) {
	searcher := &searcherFake{}
	tools := &Tools{Searcher: searcher, Query: &queryFake{}, DefaultTopK: 2}
	result, err := tools.handleSearch(context.Background(), callRequest(ToolSearch, map[string]any{"query": ""}))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if searcher.gotTopK != 2 {
		t.Fatalf("expected blank query to reach the searcher, got top k %d", searcher.gotTopK)
	}
}

func TestAskToolReturnsAnswer(t *testing.T) {
	tools := &Tools{Searcher: &searcherFake{}, Query: &queryFake{answer: &domain.Answer{
		Answer:          domain.NoEvidenceMessage,
		SynthesisStatus: domain.SynthesisNoEvidence,
	}}}

	result, err := tools.handleAsk(context.Background(), callRequest(ToolAsk, map[string]any{"question": "why?"}))
	if err != nil {
		t.Fatalf("handleAsk() error = %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, `"synthesis_status": "no_evidence"`) || !strings.Contains(text, `"source_documents": []`) {
		t.Fatalf("unexpected answer payload: %s", text)
	}
}

func TestToolsReportNotReady(t *testing.T) {
	tools := &Tools{LoadErr: errors.New("no index generation found")}
	result, err := tools.handleAsk(context.Background(), callRequest(ToolAsk, map[string]any{"question": "why?"}))
	if err != nil {
		t.Fatalf("handleAsk() error = %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "system not ready") {
		t.Fatalf("expected not-ready tool error")
	}
}

func TestToolErrorSplitsCallerAndInternalFailures(t *testing.T) {
	result, err := toolError(ToolSearch, domain.WrapError(domain.ErrTemporary, "embed", errors.New("timeout")))
	if err != nil || !result.IsError {
		t.Fatalf("expected temporary failure as tool error, got %v %v", result, err)
	}
	if _, err := toolError(ToolSearch, domain.WrapError(domain.ErrIndexCorrupt, "search", errors.New("bad"))); err == nil {
		t.Fatalf("expected internal failure returned as error")
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer("test", &Tools{})
	if s == nil {
		t.Fatalf("expected server")
	}
}
