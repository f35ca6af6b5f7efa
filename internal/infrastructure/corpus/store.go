package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

// snapshot pairs an immutable corpus with the BM25 index built over the same
// chunk list, so chunk ids and lexical hits always agree.
type snapshot struct {
	corpus  *domain.Corpus
	lexical *bm25Index
	loaded  time.Time
}

// Store serves corpus snapshots to the query path. It implements both
// ports.CorpusReader and ports.LexicalIndex; a snapshot older than the TTL is
// rebuilt from the chunk repository on the next read.
type Store struct {
	chunks ports.ChunkRepository
	ttl    time.Duration

	current   atomic.Pointer[snapshot]
	refreshMu sync.Mutex
}

func NewStore(chunks ports.ChunkRepository, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Store{chunks: chunks, ttl: ttl}
}

func (s *Store) Corpus(ctx context.Context) (*domain.Corpus, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.corpus, nil
}

func (s *Store) Search(ctx context.Context, query string, k int) ([]ports.Hit, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.lexical.Search(query, k), nil
}

// Refresh rebuilds the snapshot immediately, regardless of TTL. The worker
// calls it after indexing a document so queries see the new chunks without
// waiting out the TTL.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.rebuild(ctx, true)
	return err
}

func (s *Store) snapshot(ctx context.Context) (*snapshot, error) {
	if snap := s.current.Load(); snap != nil && time.Since(snap.loaded) < s.ttl {
		return snap, nil
	}
	snap, err := s.rebuild(ctx, false)
	if err != nil {
		// A stale snapshot beats a failed query while the database recovers.
		if stale := s.current.Load(); stale != nil {
			slog.Warn("corpus_refresh_failed_serving_stale", "error", err)
			return stale, nil
		}
		return nil, err
	}
	return snap, nil
}

func (s *Store) rebuild(ctx context.Context, force bool) (*snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another goroutine may have rebuilt while this one waited on the lock.
	if snap := s.current.Load(); !force && snap != nil && time.Since(snap.loaded) < s.ttl {
		return snap, nil
	}

	chunks, err := s.chunks.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	corpus, err := domain.NewCorpus(chunks)
	if err != nil {
		return nil, fmt.Errorf("build corpus snapshot: %w", err)
	}

	snap := &snapshot{
		corpus:  corpus,
		lexical: buildBM25(chunks),
		loaded:  time.Now(),
	}
	s.current.Store(snap)
	slog.Debug("corpus_snapshot_rebuilt", "chunks", corpus.Len(), "sources", corpus.DistinctSources())
	return snap, nil
}
