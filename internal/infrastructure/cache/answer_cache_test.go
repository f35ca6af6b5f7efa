package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

func TestAnswerCacheRoundTrip(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)
	c.Set("¿total?", "factura.pdf", &domain.Answer{Text: "100"})

	got, ok := c.Get("¿total?", "factura.pdf")
	if !ok || got.Text != "100" {
		t.Fatalf("expected cached answer, got %v/%v", got, ok)
	}
	if _, ok := c.Get("¿total?", "otro.pdf"); ok {
		t.Fatalf("source must be part of the key")
	}
	if _, ok := c.Get("¿subtotal?", "factura.pdf"); ok {
		t.Fatalf("question must be part of the key")
	}
}

func TestAnswerCacheExpires(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)
	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	c.Set("q", "", &domain.Answer{Text: "a"})
	if _, ok := c.Get("q", ""); !ok {
		t.Fatalf("expected hit before ttl")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := c.Get("q", ""); ok {
		t.Fatalf("expected expiry after ttl")
	}
}

func TestAnswerCacheEvictsLRU(t *testing.T) {
	c := NewAnswerCache(2, time.Minute)
	c.Set("q1", "", &domain.Answer{Text: "1"})
	c.Set("q2", "", &domain.Answer{Text: "2"})

	// Touch q1 so q2 becomes the eviction candidate.
	if _, ok := c.Get("q1", ""); !ok {
		t.Fatalf("expected q1 hit")
	}

	c.Set("q3", "", &domain.Answer{Text: "3"})
	if _, ok := c.Get("q2", ""); ok {
		t.Fatalf("q2 should have been evicted")
	}
	if _, ok := c.Get("q1", ""); !ok {
		t.Fatalf("q1 should survive")
	}
	if _, ok := c.Get("q3", ""); !ok {
		t.Fatalf("q3 should be present")
	}
}

func TestAnswerCacheReturnsCopy(t *testing.T) {
	c := NewAnswerCache(10, time.Minute)
	c.Set("q", "", &domain.Answer{Text: "original"})

	got, _ := c.Get("q", "")
	got.Text = "mutated"

	again, _ := c.Get("q", "")
	if again.Text != "original" {
		t.Fatalf("cache entry mutated through returned pointer")
	}
}

func TestAnswerCacheCapBound(t *testing.T) {
	c := NewAnswerCache(5, time.Minute)
	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("q%d", i), "", &domain.Answer{Text: "x"})
	}
	if n := len(c.entries); n > 5 {
		t.Fatalf("cache grew past cap: %d", n)
	}
}
