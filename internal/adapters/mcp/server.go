// Package mcpadapter exposes the question and search services as MCP tools
// so that editor and agent hosts can call them over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

type Adapter struct {
	questions ports.QuestionService
	search    ports.SearchService
	documents ports.DocumentReader
}

func NewAdapter(
	questions ports.QuestionService,
	search ports.SearchService,
	documents ports.DocumentReader,
) *Adapter {
	return &Adapter{
		questions: questions,
		search:    search,
		documents: documents,
	}
}

// Server builds the MCP server with every tool registered.
func (a *Adapter) Server(version string) *server.MCPServer {
	s := server.NewMCPServer("drive-rag", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question from the indexed documents using hybrid retrieval."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer.")),
		mcp.WithNumber("top_k", mcp.Description("Number of passages to use. 0 picks a value from query complexity.")),
		mcp.WithBoolean("multi_query", mcp.Description("Expand the query into LLM-generated variants.")),
		mcp.WithBoolean("hyde", mcp.Description("Add a hypothetical-document variant to the retrieval pool.")),
	), a.handleAsk)

	s.AddTool(mcp.NewTool("ask_iterative",
		mcp.WithDescription("Answer a question with confidence-driven iterative search. Slower but more thorough."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer.")),
	), a.handleAskIterative)

	s.AddTool(mcp.NewTool("research",
		mcp.WithDescription("Decompose a broad question into sub-questions, answer each, and synthesize a report."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The research question.")),
	), a.handleResearch)

	s.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Retrieve matching passages without answer generation."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of passages to return.")),
		mcp.WithBoolean("group_by_document", mcp.Description("Group results per document instead of a flat passage list.")),
		mcp.WithNumber("max_chunks", mcp.Description("Candidate pool size for grouped search. Default 1000.")),
		mcp.WithNumber("top_documents", mcp.Description("Grouped search truncation. 0 returns every matched document.")),
	), a.handleSearch)

	s.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Fetch the metadata and processing status of an uploaded document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("The document id.")),
	), a.handleGetDocument)

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (a *Adapter) ServeStdio(version string) error {
	return server.ServeStdio(a.Server(version))
}

func (a *Adapter) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := a.questions.Ask(ctx, query, ports.AskOptions{
		TopK:       req.GetInt("top_k", 0),
		MultiQuery: req.GetBool("multi_query", false),
		HyDE:       req.GetBool("hyde", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}
	return jsonToolResult(answer)
}

func (a *Adapter) handleAskIterative(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := a.questions.AskIterative(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("iterative ask failed: %v", err)), nil
	}
	return jsonToolResult(result)
}

func (a *Adapter) handleResearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := a.questions.Research(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("research failed: %v", err)), nil
	}
	return jsonToolResult(result)
}

func (a *Adapter) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if req.GetBool("group_by_document", false) {
		maxChunks := req.GetInt("max_chunks", 1000)
		if maxChunks <= 0 {
			maxChunks = 1000
		}
		docs, err := a.search.DocumentSearch(ctx, query, maxChunks, req.GetInt("top_documents", 0))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("document search failed: %v", err)), nil
		}
		return jsonToolResult(map[string]any{"documents": docs})
	}

	topK := req.GetInt("top_k", 10)
	if topK <= 0 {
		topK = 10
	}
	chunks, err := a.search.Search(ctx, query, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonToolResult(map[string]any{"results": chunks})
}

func (a *Adapter) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := a.documents.GetByID(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get document failed: %v", err)), nil
	}
	return jsonToolResult(doc)
}

func jsonToolResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
