package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

// AnswerCache is an in-process TTL + LRU cache for generated answers. The
// corpus changes rarely relative to query traffic, so a short TTL keeps
// answers fresh while absorbing repeated questions.
type AnswerCache struct {
	maxEntries int
	ttl        time.Duration

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used

	now func() time.Time
}

type cacheEntry struct {
	key      string
	answer   domain.Answer
	expireAt time.Time
}

func NewAnswerCache(maxEntries int, ttl time.Duration) *AnswerCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnswerCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		now:        time.Now,
	}
}

func (c *AnswerCache) Get(question, source string) (*domain.Answer, bool) {
	key := cacheKey(question, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expireAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(elem)
	answer := entry.answer
	return &answer, true
}

func (c *AnswerCache) Set(question, source string, answer *domain.Answer) {
	if answer == nil {
		return
	}
	key := cacheKey(question, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.answer = *answer
		entry.expireAt = c.now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{
		key:      key,
		answer:   *answer,
		expireAt: c.now().Add(c.ttl),
	})
	c.entries[key] = elem

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func cacheKey(question, source string) string {
	sum := sha256.Sum256([]byte(question + "|" + source))
	return hex.EncodeToString(sum[:])
}
