package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestRerankChunksReordersByScore(t *testing.T) {
	chunks := chunkList("a", "b", "c")
	reranker := &rerankerFake{scores: []float64{0.1, 0.9, 0.5}}

	got := rerankChunks(context.Background(), reranker, "q", chunks, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "c" || got[2].ID != "a" {
		t.Fatalf("expected order b,c,a, got %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[0].Score != 0.9 {
		t.Fatalf("expected relevance score carried onto chunk, got %v", got[0].Score)
	}
}

func TestRerankChunksScorerFailureKeepsIncomingOrder(t *testing.T) {
	chunks := chunkList("a", "b", "c")
	reranker := &rerankerFake{err: errors.New("model down")}

	got := rerankChunks(context.Background(), reranker, "q", chunks, 2)
	if len(got) != 2 {
		t.Fatalf("expected topK=2 chunks, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected first two in incoming order, got %s,%s", got[0].ID, got[1].ID)
	}
}

func TestRerankChunksScoreCountMismatchDegrades(t *testing.T) {
	chunks := chunkList("a", "b", "c")
	reranker := &rerankerFake{scores: []float64{0.9}}

	got := rerankChunks(context.Background(), reranker, "q", chunks, 0)
	if len(got) != 3 {
		t.Fatalf("expected all chunks, got %d", len(got))
	}
	if got[0].ID != "a" || got[2].ID != "c" {
		t.Fatalf("expected incoming order on mismatch, got %s..%s", got[0].ID, got[2].ID)
	}
}

func TestRerankChunksEmptyInput(t *testing.T) {
	reranker := &rerankerFake{}
	if got := rerankChunks(context.Background(), reranker, "q", nil, 5); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
	if reranker.calls != 0 {
		t.Fatalf("expected no scorer call for empty input, got %d", reranker.calls)
	}
}

func TestRerankChunksDoesNotMutateInput(t *testing.T) {
	chunks := chunkList("a", "b")
	reranker := &rerankerFake{scores: []float64{0.1, 0.9}}

	_ = rerankChunks(context.Background(), reranker, "q", chunks, 0)
	if chunks[0].ID != "a" || chunks[0].Score != 0 {
		t.Fatalf("input slice mutated: %+v", chunks[0])
	}
}
