package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

// SearchConfig carries every retrieval threshold explicitly so the pipeline
// is testable with arbitrary parameter combinations.
type SearchConfig struct {
	TopK             int
	VectorOverfetch  int
	LexicalOverfetch int
	MaxPerSource     int
	WidenFactor      int
	SentinelScore    float64
	FallbackScore    float64
	FusionStrategy   string // "max" or "rrf"
	FusionRRFK       int
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		TopK:             6,
		VectorOverfetch:  80,
		LexicalOverfetch: 60,
		MaxPerSource:     5,
		WidenFactor:      3,
		SentinelScore:    -1000,
		FallbackScore:    0,
		FusionStrategy:   FusionMax,
		FusionRRFK:       60,
	}
}

func (c SearchConfig) normalize() SearchConfig {
	out := c
	def := DefaultSearchConfig()

	if out.TopK <= 0 {
		out.TopK = def.TopK
	}
	if out.VectorOverfetch <= 0 {
		out.VectorOverfetch = def.VectorOverfetch
	}
	if out.LexicalOverfetch <= 0 {
		out.LexicalOverfetch = def.LexicalOverfetch
	}
	if out.MaxPerSource <= 0 {
		out.MaxPerSource = def.MaxPerSource
	}
	if out.WidenFactor <= 0 {
		out.WidenFactor = def.WidenFactor
	}
	if out.SentinelScore >= 0 {
		out.SentinelScore = def.SentinelScore
	}
	if out.FusionStrategy != FusionRRF {
		out.FusionStrategy = FusionMax
	}
	if out.FusionRRFK <= 0 {
		out.FusionRRFK = def.FusionRRFK
	}
	return out
}

// SearchUseCase turns a question plus the corpus snapshot into a small,
// reranked set of passages: dense + lexical retrieval, merge, source filter
// with forced completion, per-source diversification, cross-encoder rerank.
type SearchUseCase struct {
	corpus       ports.CorpusReader
	embedder     ports.Embedder
	vector       ports.VectorIndex
	lexical      ports.LexicalIndex
	crossEncoder ports.CrossEncoder
	cfg          SearchConfig
}

func NewSearchUseCase(
	corpus ports.CorpusReader,
	embedder ports.Embedder,
	vector ports.VectorIndex,
	lexical ports.LexicalIndex,
	crossEncoder ports.CrossEncoder,
	cfg SearchConfig,
) *SearchUseCase {
	return &SearchUseCase{
		corpus:       corpus,
		embedder:     embedder,
		vector:       vector,
		lexical:      lexical,
		crossEncoder: crossEncoder,
		cfg:          cfg.normalize(),
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error) {
	question := strings.TrimSpace(query.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("question is empty"))
	}
	topK := query.TopK
	if topK <= 0 {
		topK = uc.cfg.TopK
	}

	corpus, err := uc.corpus.Corpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus snapshot: %w", err)
	}
	if corpus.Len() == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "search", errors.New("no chunks indexed"))
	}

	// Resolve the selection mode once; downstream stages never re-interpret
	// the raw filter string.
	mode := domain.SearchModeMulti
	if corpus.DistinctSources() == 1 {
		mode = domain.SearchModeSingle
	}
	filter := strings.TrimSpace(query.FilterSource)
	var docIndices []int
	if filter != "" {
		docIndices = corpus.MatchSource(filter)
		if len(docIndices) == 0 {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "search",
				fmt.Errorf("document %q is not in the corpus", filter))
		}
		mode = domain.SearchModeSingle
	}

	stats := domain.SearchStats{}
	merged, err := uc.retrieveCandidates(ctx, corpus, question, topK, &stats)
	if err != nil {
		return nil, err
	}

	switch {
	case filter != "":
		merged = completeSourceCandidates(merged, docIndices, corpus, topK, uc.cfg, &stats)
	case query.Diversify && corpus.DistinctSources() > 1:
		merged = capPerSource(merged, corpus, topK*uc.cfg.WidenFactor, uc.cfg.MaxPerSource)
	}

	ranked := uc.rerank(ctx, question, merged, &stats)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	passages := make([]domain.Passage, 0, len(ranked))
	for _, cand := range ranked {
		chunk, ok := corpus.Chunk(cand.ChunkID)
		if !ok {
			continue
		}
		passages = append(passages, domain.Passage{
			ChunkID: cand.ChunkID,
			Score:   cand.Score,
			Text:    chunk.Text,
			Source:  chunk.Source,
			Page:    chunk.Page,
		})
	}

	slog.Debug("search_completed",
		"mode", string(mode),
		"top_k", topK,
		"passages", len(passages),
		"forced_included", stats.ForcedIncluded,
		"degraded_channel", stats.DegradedChannel,
		"rerank_fallback", stats.RerankFallback,
	)

	return &domain.SearchResult{Mode: mode, Passages: passages, Stats: stats}, nil
}

// retrieveCandidates runs both retrieval channels and merges their hits. A
// single failing channel degrades the query instead of failing it; only both
// channels failing surfaces an error.
func (uc *SearchUseCase) retrieveCandidates(
	ctx context.Context,
	corpus *domain.Corpus,
	question string,
	topK int,
	stats *domain.SearchStats,
) ([]domain.Candidate, error) {
	vectorK := clampFetch(maxInt(topK*8, uc.cfg.VectorOverfetch), corpus.Len())
	lexicalK := clampFetch(maxInt(topK*6, uc.cfg.LexicalOverfetch), corpus.Len())

	var dense []ports.Hit
	denseErr := func() error {
		queryVector, err := uc.embedder.EmbedQuery(ctx, question)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		dense, err = uc.vector.Search(ctx, queryVector, vectorK)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	}()

	sparse, sparseErr := uc.lexical.Search(ctx, question, lexicalK)
	if sparseErr != nil {
		sparseErr = fmt.Errorf("lexical search: %w", sparseErr)
	}

	if denseErr != nil && sparseErr != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "search",
			errors.Join(denseErr, sparseErr))
	}
	if denseErr != nil {
		stats.DegradedChannel = "vector"
		slog.Warn("retrieval_channel_degraded", "channel", "vector", "error", denseErr)
	}
	if sparseErr != nil {
		stats.DegradedChannel = "lexical"
		slog.Warn("retrieval_channel_degraded", "channel", "lexical", "error", sparseErr)
	}

	return fuseHits(dense, sparse, corpus, uc.cfg), nil
}

// rerank scores candidates with the cross-encoder and sorts by that score.
// If the model is unavailable the pre-rerank ordering is kept; reranking
// failure never fails the request.
func (uc *SearchUseCase) rerank(
	ctx context.Context,
	question string,
	candidates []domain.Candidate,
	stats *domain.SearchStats,
) []domain.Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	texts := make([]string, len(candidates))
	for i, cand := range candidates {
		texts[i] = cand.Text
	}

	scores, err := uc.crossEncoder.Score(ctx, question, texts)
	if err != nil || len(scores) != len(candidates) {
		stats.RerankFallback = true
		if err == nil {
			err = fmt.Errorf("score count mismatch: %d/%d", len(scores), len(candidates))
		}
		slog.Warn("rerank_fallback", "error", err)
		return candidates
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = scores[i]
	}
	sortCandidates(out)
	return out
}

// sortCandidates orders by score descending with a chunk-id tie break so the
// output is deterministic for identical inputs.
func sortCandidates(cands []domain.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].ChunkID < cands[j].ChunkID
	})
}

func clampFetch(k, corpusLen int) int {
	if k > corpusLen {
		return corpusLen
	}
	return k
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
