package usecase

import (
	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

const (
	// FusionMax keeps the higher channel score for a chunk seen by both
	// channels. Deliberately max, not sum: cosine and BM25 scores live on
	// different scales and summing would let one channel dominate.
	FusionMax = "max"
	// FusionRRF combines channels by reciprocal rank instead of raw score.
	FusionRRF = "rrf"
)

// fuseHits unions both channels into one deduplicated candidate list. Hits
// whose chunk UID is unknown to the snapshot are dropped (they belong to a
// newer index generation). The output is sorted deterministically.
func fuseHits(dense, sparse []ports.Hit, corpus *domain.Corpus, cfg SearchConfig) []domain.Candidate {
	if cfg.FusionStrategy == FusionRRF {
		return fuseHitsRRF(dense, sparse, corpus, cfg.FusionRRFK)
	}
	return fuseHitsMax(dense, sparse, corpus)
}

func fuseHitsMax(dense, sparse []ports.Hit, corpus *domain.Corpus) []domain.Candidate {
	best := make(map[int]float64, len(dense)+len(sparse))
	addChannel := func(hits []ports.Hit) {
		for _, hit := range hits {
			id, ok := corpus.IndexOfUID(hit.ChunkUID)
			if !ok {
				continue
			}
			if score, seen := best[id]; !seen || hit.Score > score {
				best[id] = hit.Score
			}
		}
	}
	addChannel(dense)
	addChannel(sparse)

	return candidatesFromScores(best, corpus)
}

func fuseHitsRRF(dense, sparse []ports.Hit, corpus *domain.Corpus, rrfK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[int]float64, len(dense)+len(sparse))
	addChannel := func(hits []ports.Hit) {
		for rank, hit := range hits {
			id, ok := corpus.IndexOfUID(hit.ChunkUID)
			if !ok {
				continue
			}
			acc[id] += 1.0 / float64(rrfK+rank+1)
		}
	}
	addChannel(dense)
	addChannel(sparse)

	return candidatesFromScores(acc, corpus)
}

func candidatesFromScores(scores map[int]float64, corpus *domain.Corpus) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(scores))
	for id, score := range scores {
		chunk, ok := corpus.Chunk(id)
		if !ok {
			continue
		}
		out = append(out, domain.Candidate{ChunkID: id, Score: score, Text: chunk.Text})
	}
	sortCandidates(out)
	return out
}
