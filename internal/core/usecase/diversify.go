package usecase

import (
	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

// capPerSource keeps at most maxPerSource candidates from any one source,
// walking the widened head of the candidate list in its existing score order
// so relative relevance survives the cap. Only runs in multi-source mode;
// single-document queries stay in pure relevance order.
func capPerSource(
	candidates []domain.Candidate,
	corpus *domain.Corpus,
	widenTo int,
	maxPerSource int,
) []domain.Candidate {
	if widenTo > 0 && len(candidates) > widenTo {
		candidates = candidates[:widenTo]
	}

	perSource := make(map[string]int, 8)
	out := make([]domain.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		chunk, ok := corpus.Chunk(cand.ChunkID)
		if !ok {
			continue
		}
		if perSource[chunk.Source] >= maxPerSource {
			continue
		}
		perSource[chunk.Source]++
		out = append(out, cand)
	}
	return out
}
