package usecase

import (
	"testing"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

func TestCompleteSourceCandidatesForcesMissing(t *testing.T) {
	corpus := twoDocCorpus(t)
	docIndices := []int{6, 7} // invoice.pdf
	merged := []domain.Candidate{
		{ChunkID: 0, Score: 0.9, Text: "manual section 0"},
		{ChunkID: 6, Score: 0.3, Text: "invoice line 0"},
	}

	stats := domain.SearchStats{}
	cfg := DefaultSearchConfig()
	out := completeSourceCandidates(merged, docIndices, corpus, 6, cfg, &stats)

	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].ChunkID != 6 || out[0].Score != 0.3 {
		t.Fatalf("retrieved chunk should lead, got %+v", out[0])
	}
	if out[1].ChunkID != 7 || out[1].Score != cfg.SentinelScore {
		t.Fatalf("missing chunk should be forced at sentinel, got %+v", out[1])
	}
	if stats.ForcedIncluded != 1 {
		t.Fatalf("expected 1 forced inclusion, got %d", stats.ForcedIncluded)
	}
}

func TestCompleteSourceCandidatesDropsOtherSources(t *testing.T) {
	corpus := twoDocCorpus(t)
	merged := []domain.Candidate{
		{ChunkID: 1, Score: 0.8},
		{ChunkID: 2, Score: 0.7},
	}

	stats := domain.SearchStats{}
	out := completeSourceCandidates(merged, []int{6, 7}, corpus, 6, DefaultSearchConfig(), &stats)
	for _, cand := range out {
		if cand.ChunkID != 6 && cand.ChunkID != 7 {
			t.Fatalf("candidate outside filtered document: %+v", cand)
		}
	}
	if stats.ForcedIncluded != 2 {
		t.Fatalf("expected both document chunks forced, got %d", stats.ForcedIncluded)
	}
}

func TestCompleteSourceCandidatesSentinelSortsLast(t *testing.T) {
	corpus := twoDocCorpus(t)
	merged := []domain.Candidate{{ChunkID: 7, Score: -0.2, Text: "invoice line 1"}}

	stats := domain.SearchStats{}
	out := completeSourceCandidates(merged, []int{6, 7}, corpus, 6, DefaultSearchConfig(), &stats)
	if out[0].ChunkID != 7 {
		t.Fatalf("negatively scored retrieval must still beat sentinel, got %+v", out)
	}
	if out[1].Score >= out[0].Score {
		t.Fatalf("sentinel should sort last: %+v", out)
	}
}
