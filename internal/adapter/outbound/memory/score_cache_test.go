package memory

import "testing"

func TestScoreCacheGetPut(t *testing.T) {
	c := NewScoreCache(2)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Put("a", 0.42)
	score, ok := c.Get("a")
	if !ok || score != 0.42 {
		t.Fatalf("got score=%v ok=%v", score, ok)
	}
}

func TestScoreCacheFlushesWholeCacheOnOverflow(t *testing.T) {
	c := NewScoreCache(2)
	c.Put("a", 0.1)
	c.Put("b", 0.2)
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	c.Put("c", 0.3)

	if c.Len() != 1 {
		t.Fatalf("expected cache flushed to just the new entry, got len=%d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected 'a' to be evicted by full flush")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected 'c' to remain")
	}
}
