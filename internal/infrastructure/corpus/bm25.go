package corpus

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Index is an in-memory Okapi BM25 index over one corpus snapshot. It is
// built once per snapshot and never mutated, so reads need no locking.
type bm25Index struct {
	chunks    []indexedChunk
	postings  map[string][]posting
	avgLength float64
}

type indexedChunk struct {
	uid    string
	length int
}

type posting struct {
	chunk int
	freq  int
}

func buildBM25(chunks []domain.Chunk) *bm25Index {
	idx := &bm25Index{
		chunks:   make([]indexedChunk, len(chunks)),
		postings: make(map[string][]posting, 1024),
	}

	var totalLength int
	for i, chunk := range chunks {
		tokens := tokenize(chunk.Text)
		idx.chunks[i] = indexedChunk{uid: chunk.UID, length: len(tokens)}
		totalLength += len(tokens)

		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for tok, n := range freq {
			idx.postings[tok] = append(idx.postings[tok], posting{chunk: i, freq: n})
		}
	}
	if len(chunks) > 0 {
		idx.avgLength = float64(totalLength) / float64(len(chunks))
	}
	return idx
}

// Search scores every chunk sharing at least one query term and returns the
// k best. Chunks with zero overlap never appear in the result.
func (idx *bm25Index) Search(query string, k int) []ports.Hit {
	if idx == nil || len(idx.chunks) == 0 || k <= 0 {
		return nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(terms))

	n := float64(len(idx.chunks))
	scores := make(map[int]float64, 64)
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		postings := idx.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)

		for _, p := range postings {
			tf := float64(p.freq)
			norm := 1 - bm25B + bm25B*float64(idx.chunks[p.chunk].length)/idx.avgLength
			scores[p.chunk] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}
	if len(scores) == 0 {
		return nil
	}

	hits := make([]ports.Hit, 0, len(scores))
	for chunk, score := range scores {
		if score <= 0 {
			continue
		}
		hits = append(hits, ports.Hit{ChunkUID: idx.chunks[chunk].uid, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkUID < hits[j].ChunkUID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// tokenize lowercases and splits on anything that is not a letter or digit.
// Accented letters survive, which matters for Spanish-language corpora.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
