package usecase

import (
	"sort"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
)

const defaultRRFK = 60

// fuseRanksRRF merges two rank-ordered candidate lists with reciprocal rank
// fusion: each item at 1-based rank r contributes 1/(rrfK+r) from that list.
// Only rank positions matter, so the two score scales never need to be
// comparable. Ties are broken by insertion order (vector list first, then
// lexical) so the merge is deterministic. Returns at most topK entries;
// topK <= 0 means no truncation.
func fuseRanksRRF(vector, lexical []domain.Candidate, rrfK, topK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	scores := make(map[string]float64, len(vector)+len(lexical))
	order := make([]string, 0, len(vector)+len(lexical))

	addList := func(list []domain.Candidate) {
		for rank, cand := range list {
			if cand.ChunkID == "" {
				continue
			}
			if _, seen := scores[cand.ChunkID]; !seen {
				order = append(order, cand.ChunkID)
			}
			scores[cand.ChunkID] += 1.0 / float64(rrfK+rank+1)
		}
	}

	addList(vector)
	addList(lexical)

	out := make([]domain.Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, domain.Candidate{ChunkID: id, FusedScore: scores[id]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FusedScore > out[j].FusedScore
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
