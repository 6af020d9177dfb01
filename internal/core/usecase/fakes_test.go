package usecase

import (
	"context"
	"fmt"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
)

type embedderFake struct {
	vec     []float32
	err     error
	queries []string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.vec == nil {
		return []float32{0.1, 0.2}, nil
	}
	return f.vec, nil
}

type vectorFake struct {
	hits  []domain.Candidate
	fn    func(k int) []domain.Candidate
	err   error
	lastK int
}

func (f *vectorFake) SearchVector(_ context.Context, _ []float32, k int) ([]domain.Candidate, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if f.fn != nil {
		return f.fn(k), nil
	}
	return f.hits, nil
}

type lexicalFake struct {
	hits  []domain.Candidate
	err   error
	lastQ string
}

func (f *lexicalFake) SearchLexical(_ context.Context, query string, _ int) ([]domain.Candidate, error) {
	f.lastQ = query
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

// resolverFake synthesizes a chunk per requested id unless explicit chunks
// or an error are configured.
type resolverFake struct {
	chunks []domain.Chunk
	err    error
	gotIDs []string
}

func (f *resolverFake) Resolve(_ context.Context, chunkIDs []string) ([]domain.Chunk, error) {
	f.gotIDs = chunkIDs
	if f.err != nil {
		return nil, f.err
	}
	if f.chunks != nil {
		return f.chunks, nil
	}
	out := make([]domain.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		out = append(out, domain.Chunk{
			ID:         id,
			DocumentID: "doc-" + id,
			Text:       "text for " + id,
			FileName:   id + ".txt",
		})
	}
	return out, nil
}

// rerankerFake returns equal scores by default so the incoming order is
// preserved through the stable sort.
type rerankerFake struct {
	scores   []float64
	err      error
	calls    int
	gotQuery string
}

func (f *rerankerFake) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	f.calls++
	f.gotQuery = query
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	return make([]float64, len(texts)), nil
}

// generatorFake records every prompt and answers via respond, or a fixed
// "answer" when respond is nil.
type generatorFake struct {
	respond func(prompt string) (string, error)
	err     error
	prompts []string
}

func (f *generatorFake) Complete(_ context.Context, prompt string, _ int, _ string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if f.respond != nil {
		return f.respond(prompt)
	}
	return "answer", nil
}

func candidateList(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Candidate{ChunkID: id})
	}
	return out
}

func chunkList(ids ...string) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.Chunk{
			ID:       id,
			Text:     fmt.Sprintf("text %d", i),
			FileName: id + ".txt",
		})
	}
	return out
}
