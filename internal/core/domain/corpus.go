package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Chunk is the smallest indexed unit of document text. Page is 1-based for
// paginated formats and 0 when the source format has no pages.
type Chunk struct {
	UID    string `json:"uid"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
}

// Corpus is an immutable snapshot of all indexed chunks. Chunk ids are
// positions inside this snapshot; every lookup goes through Chunk so that no
// caller indexes raw slices.
type Corpus struct {
	chunks []Chunk
	byUID  map[string]int
}

func NewCorpus(chunks []Chunk) (*Corpus, error) {
	byUID := make(map[string]int, len(chunks))
	for i, chunk := range chunks {
		if chunk.UID == "" {
			return nil, fmt.Errorf("corpus chunk %d has empty uid", i)
		}
		if prev, ok := byUID[chunk.UID]; ok {
			return nil, fmt.Errorf("corpus chunk uid %s duplicated at %d and %d", chunk.UID, prev, i)
		}
		byUID[chunk.UID] = i
	}
	return &Corpus{chunks: chunks, byUID: byUID}, nil
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.chunks)
}

func (c *Corpus) Chunk(id int) (Chunk, bool) {
	if c == nil || id < 0 || id >= len(c.chunks) {
		return Chunk{}, false
	}
	return c.chunks[id], true
}

func (c *Corpus) IndexOfUID(uid string) (int, bool) {
	if c == nil {
		return 0, false
	}
	id, ok := c.byUID[uid]
	return id, ok
}

func (c *Corpus) DistinctSources() int {
	if c == nil {
		return 0
	}
	seen := make(map[string]struct{}, 8)
	for _, chunk := range c.chunks {
		seen[chunk.Source] = struct{}{}
	}
	return len(seen)
}

// SourceCount reports how many chunks one source document contributed.
type SourceCount struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

func (c *Corpus) SourceCounts() []SourceCount {
	if c == nil {
		return nil
	}
	counts := make(map[string]int, 8)
	for _, chunk := range c.chunks {
		counts[chunk.Source]++
	}
	out := make([]SourceCount, 0, len(counts))
	for source, n := range counts {
		out = append(out, SourceCount{Source: source, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// MatchSource returns the ids of every chunk whose source matches filter,
// case-insensitively. Exact matches win; substring containment is only used
// when no source matches exactly, so a partial filename still resolves.
func (c *Corpus) MatchSource(filter string) []int {
	if c == nil {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(filter))
	if needle == "" {
		return nil
	}

	var exact, partial []int
	for i, chunk := range c.chunks {
		source := strings.ToLower(chunk.Source)
		if source == needle {
			exact = append(exact, i)
			continue
		}
		if strings.Contains(source, needle) {
			partial = append(partial, i)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return partial
}
