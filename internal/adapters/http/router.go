package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mkorhonen/drive-rag/internal/config"
	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
	"github.com/mkorhonen/drive-rag/internal/observability/metrics"
)

const (
	serviceName      = "api"
	defaultSearchK   = 10
	maxUploadBytes   = 64 << 20
	defaultMaxChunks = 1000
)

type Router struct {
	cfg       config.Config
	questions ports.QuestionService
	search    ports.SearchService
	ingest    ports.DocumentIngestor
	documents ports.DocumentReader
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

func NewRouter(
	cfg config.Config,
	questions ports.QuestionService,
	search ports.SearchService,
	ingest ports.DocumentIngestor,
	documents ports.DocumentReader,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:       cfg,
		questions: questions,
		search:    search,
		ingest:    ingest,
		documents: documents,
		metrics:   httpMetrics,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/ask-iterative", rt.askIterative)
	mux.HandleFunc("/v1/research", rt.research)
	mux.HandleFunc("/v1/search", rt.searchChunks)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query      string `json:"query"`
		TopK       int    `json:"top_k"`
		MultiQuery bool   `json:"multi_query"`
		HyDE       bool   `json:"hyde"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = rt.cfg.RAGTopK
	}

	start := time.Now()
	answer, err := rt.questions.Ask(r.Context(), req.Query, ports.AskOptions{
		TopK:       req.TopK,
		MultiQuery: req.MultiQuery,
		HyDE:       req.HyDE,
	})
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "ask", len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) askIterative(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	result, err := rt.questions.AskIterative(r.Context(), req.Query)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordAgentRun(serviceName, "ask_iterative", "error", 0, 0)
		}
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "ask_iterative", len(result.Sources), time.Since(start))
		rt.metrics.RecordAgentRun(serviceName, "ask_iterative", "ok", result.TotalIterations, result.FinalConfidence)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) research(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	result, err := rt.questions.Research(r.Context(), req.Query)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "research", len(result.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) searchChunks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query           string `json:"query"`
		TopK            int    `json:"top_k"`
		GroupByDocument bool   `json:"group_by_document"`
		MaxChunks       int    `json:"max_chunks"`
		TopDocuments    int    `json:"top_documents"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	if req.GroupByDocument {
		if req.MaxChunks <= 0 {
			req.MaxChunks = defaultMaxChunks
		}
		// top_documents passes through unchanged: zero means every
		// matched document.
		docs, err := rt.search.DocumentSearch(r.Context(), req.Query, req.MaxChunks, req.TopDocuments)
		if err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"documents": emptyIfNilDocs(docs),
		})
		return
	}

	if req.TopK <= 0 {
		req.TopK = defaultSearchK
	}
	chunks, err := rt.search.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": emptyIfNilChunks(chunks),
	})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func emptyIfNilChunks(chunks []domain.Chunk) []domain.Chunk {
	if chunks == nil {
		return []domain.Chunk{}
	}
	return chunks
}

func emptyIfNilDocs(docs []domain.DocumentAggregate) []domain.DocumentAggregate {
	if docs == nil {
		return []domain.DocumentAggregate{}
	}
	return docs
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
