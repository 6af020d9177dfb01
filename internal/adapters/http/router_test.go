package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkorhonen/drive-rag/internal/config"
	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

type questionsFake struct {
	askErr      error
	lastOpts    ports.AskOptions
	iterErr     error
	researchErr error
}

func (f *questionsFake) Ask(_ context.Context, query string, opts ports.AskOptions) (*domain.Answer, error) {
	f.lastOpts = opts
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &domain.Answer{
		Text:    "answer to " + query,
		Sources: []domain.Source{{ChunkID: "c1", FileName: "a.txt"}},
	}, nil
}

func (f *questionsFake) AskIterative(_ context.Context, query string) (*domain.IterativeResult, error) {
	if f.iterErr != nil {
		return nil, f.iterErr
	}
	return &domain.IterativeResult{
		Answer:          "iterative answer",
		Sources:         []domain.Source{{ChunkID: "c1"}, {ChunkID: "c2"}},
		TotalIterations: 2,
		FinalConfidence: 0.9,
	}, nil
}

func (f *questionsFake) Research(_ context.Context, query string) (*domain.ResearchResult, error) {
	if f.researchErr != nil {
		return nil, f.researchErr
	}
	return &domain.ResearchResult{
		Query:           query,
		Answer:          "research answer",
		NumSubQuestions: 2,
	}, nil
}

type searchFake struct {
	chunks        []domain.Chunk
	docs          []domain.DocumentAggregate
	err           error
	lastK         int
	lastMaxChunks int
	lastDocsN     int
}

func (f *searchFake) Search(_ context.Context, _ string, k int) ([]domain.Chunk, error) {
	f.lastK = k
	return f.chunks, f.err
}

func (f *searchFake) DocumentSearch(_ context.Context, _ string, maxChunks, topDocs int) ([]domain.DocumentAggregate, error) {
	f.lastMaxChunks = maxChunks
	f.lastDocsN = topDocs
	return f.docs, f.err
}

type ingestFake struct {
	err error
}

func (f ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		FileName:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_" + filename,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type readerFake struct {
	err error
}

func (f readerFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", FileName: "a.txt", Status: domain.StatusReady}, nil
}

type routerFixture struct {
	questions *questionsFake
	search    *searchFake
	ingest    ingestFake
	reader    readerFake
	handler   http.Handler
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		questions: &questionsFake{},
		search:    &searchFake{},
	}
	f.rebuild()
	return f
}

func (f *routerFixture) rebuild() {
	f.handler = NewRouter(config.Config{}, f.questions, f.search, f.ingest, f.reader, nil, nil).Handler()
}

func postJSONRequest(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	f := newRouterFixture()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header to be set")
	}
}

func TestAskReturnsAnswer(t *testing.T) {
	f := newRouterFixture()

	res := postJSONRequest(t, f.handler, "/v1/ask", map[string]any{
		"query":       "what is the budget?",
		"top_k":       8,
		"multi_query": true,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var answer domain.Answer
	if err := json.Unmarshal(res.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if answer.Text != "answer to what is the budget?" {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(answer.Sources))
	}
	if f.questions.lastOpts.TopK != 8 || !f.questions.lastOpts.MultiQuery || f.questions.lastOpts.HyDE {
		t.Fatalf("unexpected ask options: %+v", f.questions.lastOpts)
	}
}

func TestAskDefaultsTopKFromConfig(t *testing.T) {
	f := newRouterFixture()
	f.handler = NewRouter(config.Config{RAGTopK: 12}, f.questions, f.search, f.ingest, f.reader, nil, nil).Handler()

	res := postJSONRequest(t, f.handler, "/v1/ask", map[string]any{"query": "what is the budget?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if f.questions.lastOpts.TopK != 12 {
		t.Fatalf("expected configured top k 12, got %d", f.questions.lastOpts.TopK)
	}
}

func TestAskRequiresQuery(t *testing.T) {
	f := newRouterFixture()

	res := postJSONRequest(t, f.handler, "/v1/ask", map[string]any{"query": "   "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskRejectsInvalidJSON(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader([]byte("{not json")))
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskRejectsGet(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/v1/ask", nil)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestAskMapsTemporaryErrorTo503(t *testing.T) {
	f := newRouterFixture()
	f.questions.askErr = domain.WrapError(domain.ErrTemporary, "ollama.generate", errors.New("circuit open"))

	res := postJSONRequest(t, f.handler, "/v1/ask", map[string]any{"query": "test"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestAskIterativeReturnsRunReport(t *testing.T) {
	f := newRouterFixture()

	res := postJSONRequest(t, f.handler, "/v1/ask-iterative", map[string]any{"query": "deep question"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var result domain.IterativeResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.TotalIterations != 2 {
		t.Fatalf("expected 2 iterations, got %d", result.TotalIterations)
	}
	if result.FinalConfidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", result.FinalConfidence)
	}
}

func TestResearchReturnsSteps(t *testing.T) {
	f := newRouterFixture()

	res := postJSONRequest(t, f.handler, "/v1/research", map[string]any{"query": "compare projects"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var result domain.ResearchResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.NumSubQuestions != 2 {
		t.Fatalf("expected 2 sub questions, got %d", result.NumSubQuestions)
	}
}

func TestSearchReturnsChunks(t *testing.T) {
	f := newRouterFixture()
	f.search.chunks = []domain.Chunk{{ID: "c1", Text: "hit"}}

	res := postJSONRequest(t, f.handler, "/v1/search", map[string]any{"query": "budget", "top_k": 7})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if f.search.lastK != 7 {
		t.Fatalf("expected k 7, got %d", f.search.lastK)
	}

	var payload struct {
		Results []domain.Chunk `json:"results"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Results) != 1 || payload.Results[0].ID != "c1" {
		t.Fatalf("unexpected results payload: %+v", payload.Results)
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	f := newRouterFixture()

	res := postJSONRequest(t, f.handler, "/v1/search", map[string]any{"query": "budget"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if f.search.lastK != defaultSearchK {
		t.Fatalf("expected default k %d, got %d", defaultSearchK, f.search.lastK)
	}
}

func TestSearchEmptyResultIsEmptyArray(t *testing.T) {
	f := newRouterFixture()

	res := postJSONRequest(t, f.handler, "/v1/search", map[string]any{"query": "nothing"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !bytes.Contains(res.Body.Bytes(), []byte(`"results":[]`)) {
		t.Fatalf("expected empty results array, got %s", res.Body.String())
	}
}

func TestSearchGroupedByDocument(t *testing.T) {
	f := newRouterFixture()
	f.search.docs = []domain.DocumentAggregate{
		{DocumentID: "doc-1", FileName: "a.txt", BestScore: 0.4},
	}

	res := postJSONRequest(t, f.handler, "/v1/search", map[string]any{
		"query":             "budget",
		"group_by_document": true,
		"max_chunks":        200,
		"top_documents":     3,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if f.search.lastMaxChunks != 200 {
		t.Fatalf("expected max chunks 200, got %d", f.search.lastMaxChunks)
	}
	if f.search.lastDocsN != 3 {
		t.Fatalf("expected top documents 3, got %d", f.search.lastDocsN)
	}

	var payload struct {
		Documents []domain.DocumentAggregate `json:"documents"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Documents) != 1 || payload.Documents[0].DocumentID != "doc-1" {
		t.Fatalf("unexpected documents payload: %+v", payload.Documents)
	}
}

func TestSearchGroupedDefaultsReturnEveryDocument(t *testing.T) {
	f := newRouterFixture()

	res := postJSONRequest(t, f.handler, "/v1/search", map[string]any{
		"query":             "budget",
		"group_by_document": true,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if f.search.lastMaxChunks != defaultMaxChunks {
		t.Fatalf("expected default max chunks %d, got %d", defaultMaxChunks, f.search.lastMaxChunks)
	}
	if f.search.lastDocsN != 0 {
		t.Fatalf("expected top documents passed through as 0, got %d", f.search.lastDocsN)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	f := newRouterFixture()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "file.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var doc domain.Document
	if err := json.Unmarshal(res.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.ID != "doc-1" || doc.FileName != "file.txt" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestUploadDocumentRequiresFileField(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewReader([]byte("plain")))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	f := newRouterFixture()
	f.reader = readerFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))}
	f.rebuild()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetDocumentByIDSuccess(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var doc domain.Document
	if err := json.Unmarshal(res.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.ID != "doc-1" {
		t.Fatalf("unexpected document id %q", doc.ID)
	}
}

func TestRequestIDIsPropagatedFromHeader(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}
