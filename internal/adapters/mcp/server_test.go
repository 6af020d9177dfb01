package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

type questionsFake struct {
	askErr   error
	lastOpts ports.AskOptions
}

func (f *questionsFake) Ask(_ context.Context, query string, opts ports.AskOptions) (*domain.Answer, error) {
	f.lastOpts = opts
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &domain.Answer{Text: "answer to " + query}, nil
}

func (f *questionsFake) AskIterative(context.Context, string) (*domain.IterativeResult, error) {
	return &domain.IterativeResult{Answer: "iterative", TotalIterations: 3, FinalConfidence: 0.88}, nil
}

func (f *questionsFake) Research(_ context.Context, query string) (*domain.ResearchResult, error) {
	return &domain.ResearchResult{Query: query, Answer: "report", NumSubQuestions: 2}, nil
}

type searchFake struct {
	lastK         int
	lastMaxChunks int
	lastDocsN     int
}

func (f *searchFake) Search(_ context.Context, _ string, k int) ([]domain.Chunk, error) {
	f.lastK = k
	return []domain.Chunk{{ID: "c1", Text: "hit"}}, nil
}

func (f *searchFake) DocumentSearch(_ context.Context, _ string, maxChunks, topDocs int) ([]domain.DocumentAggregate, error) {
	f.lastMaxChunks = maxChunks
	f.lastDocsN = topDocs
	return []domain.DocumentAggregate{{DocumentID: "doc-1"}}, nil
}

type readerFake struct{}

func (readerFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if id == "missing" {
		return nil, domain.ErrDocumentNotFound
	}
	return &domain.Document{ID: id, Status: domain.StatusReady}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestAskToolReturnsAnswerJSON(t *testing.T) {
	questions := &questionsFake{}
	a := NewAdapter(questions, &searchFake{}, readerFake{})

	result, err := a.handleAsk(context.Background(), callRequest("ask", map[string]any{
		"query":       "what is the budget?",
		"top_k":       8,
		"multi_query": true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}

	var answer domain.Answer
	if err := json.Unmarshal([]byte(textContent(t, result)), &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text != "answer to what is the budget?" {
		t.Fatalf("unexpected answer %q", answer.Text)
	}
	if questions.lastOpts.TopK != 8 || !questions.lastOpts.MultiQuery {
		t.Fatalf("unexpected ask options: %+v", questions.lastOpts)
	}
}

func TestAskToolRequiresQuery(t *testing.T) {
	a := NewAdapter(&questionsFake{}, &searchFake{}, readerFake{})

	result, err := a.handleAsk(context.Background(), callRequest("ask", map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing query")
	}
}

func TestAskToolReportsServiceFailureAsToolError(t *testing.T) {
	questions := &questionsFake{askErr: errors.New("backend down")}
	a := NewAdapter(questions, &searchFake{}, readerFake{})

	result, err := a.handleAsk(context.Background(), callRequest("ask", map[string]any{"query": "q"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(textContent(t, result), "backend down") {
		t.Fatalf("expected cause in tool error, got %s", textContent(t, result))
	}
}

func TestSearchToolDefaultsTopK(t *testing.T) {
	search := &searchFake{}
	a := NewAdapter(&questionsFake{}, search, readerFake{})

	result, err := a.handleSearch(context.Background(), callRequest("search", map[string]any{"query": "budget"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}
	if search.lastK != 10 {
		t.Fatalf("expected default k 10, got %d", search.lastK)
	}
	if !strings.Contains(textContent(t, result), `"results"`) {
		t.Fatalf("expected results payload, got %s", textContent(t, result))
	}
}

func TestSearchToolGroupsByDocument(t *testing.T) {
	search := &searchFake{}
	a := NewAdapter(&questionsFake{}, search, readerFake{})

	result, err := a.handleSearch(context.Background(), callRequest("search", map[string]any{
		"query":             "budget",
		"group_by_document": true,
		"max_chunks":        200,
		"top_documents":     3,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(textContent(t, result), `"documents"`) {
		t.Fatalf("expected grouped payload, got %s", textContent(t, result))
	}
	if search.lastMaxChunks != 200 {
		t.Fatalf("expected max chunks 200, got %d", search.lastMaxChunks)
	}
	if search.lastDocsN != 3 {
		t.Fatalf("expected top documents 3, got %d", search.lastDocsN)
	}
}

func TestSearchToolGroupedDefaultsReturnEveryDocument(t *testing.T) {
	search := &searchFake{}
	a := NewAdapter(&questionsFake{}, search, readerFake{})

	if _, err := a.handleSearch(context.Background(), callRequest("search", map[string]any{
		"query":             "budget",
		"group_by_document": true,
	})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if search.lastMaxChunks != 1000 {
		t.Fatalf("expected default max chunks 1000, got %d", search.lastMaxChunks)
	}
	if search.lastDocsN != 0 {
		t.Fatalf("expected top documents passed through as 0, got %d", search.lastDocsN)
	}
}

func TestGetDocumentToolNotFound(t *testing.T) {
	a := NewAdapter(&questionsFake{}, &searchFake{}, readerFake{})

	result, err := a.handleGetDocument(context.Background(), callRequest("get_document", map[string]any{
		"document_id": "missing",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing document")
	}
}

func TestServerRegistersTools(t *testing.T) {
	a := NewAdapter(&questionsFake{}, &searchFake{}, readerFake{})
	if s := a.Server("test"); s == nil {
		t.Fatal("expected server instance")
	}
}
