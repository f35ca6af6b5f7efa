package usecase

import (
	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

// completeSourceCandidates narrows candidates to one document and guarantees
// the result is never empty: every chunk of the document missing from the
// merged set is force-inserted with a low sentinel score. Forced entries sort
// behind genuinely retrieved ones pre-rerank but still reach the reranker,
// which re-scores them on true relevance. Without this, a semantically
// distant query against a small document can retrieve none of its chunks.
func completeSourceCandidates(
	merged []domain.Candidate,
	docIndices []int,
	corpus *domain.Corpus,
	topK int,
	cfg SearchConfig,
	stats *domain.SearchStats,
) []domain.Candidate {
	inDoc := make(map[int]struct{}, len(docIndices))
	for _, id := range docIndices {
		inDoc[id] = struct{}{}
	}

	kept := make([]domain.Candidate, 0, len(docIndices))
	present := make(map[int]struct{}, len(docIndices))
	for _, cand := range merged {
		if _, ok := inDoc[cand.ChunkID]; !ok {
			continue
		}
		kept = append(kept, cand)
		present[cand.ChunkID] = struct{}{}
	}

	for _, id := range docIndices {
		if _, ok := present[id]; ok {
			continue
		}
		chunk, ok := corpus.Chunk(id)
		if !ok {
			continue
		}
		kept = append(kept, domain.Candidate{ChunkID: id, Score: cfg.SentinelScore, Text: chunk.Text})
		stats.ForcedIncluded++
	}

	// Unreachable given the completion above; guards a future refactor from
	// reintroducing the silent-empty-result bug.
	if len(kept) == 0 {
		limit := topK
		if limit > len(docIndices) {
			limit = len(docIndices)
		}
		for _, id := range docIndices[:limit] {
			chunk, ok := corpus.Chunk(id)
			if !ok {
				continue
			}
			kept = append(kept, domain.Candidate{ChunkID: id, Score: cfg.FallbackScore, Text: chunk.Text})
		}
	}

	sortCandidates(kept)
	return kept
}
