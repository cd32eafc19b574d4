package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New[string]()
	c.Set("hero", "/uploads/hero.jpg", time.Second)
	val, ok := c.Get("hero")
	if !ok || val != "/uploads/hero.jpg" {
		t.Fatalf("expected cached url, got %q, exists=%v", val, ok)
	}
}

func TestExpiration(t *testing.T) {
	c := New[string]()
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("hero", "v", 100*time.Millisecond)

	c.now = func() time.Time { return now.Add(150 * time.Millisecond) }
	if _, ok := c.Get("hero"); ok {
		t.Fatalf("expected expired key to return false")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, len=%d", c.Len())
	}
}

func TestDelete(t *testing.T) {
	c := New[int]()
	c.Set("k", 1, time.Second)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected deleted key to return false")
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New[string]()
	c.Set("team:1", "a", time.Second)
	c.Set("team:2", "b", time.Second)
	c.Set("project:1", "c", time.Second)
	c.Invalidate("team:")
	_, ok1 := c.Get("team:1")
	_, ok2 := c.Get("team:2")
	_, ok3 := c.Get("project:1")
	if ok1 || ok2 {
		t.Fatalf("expected team keys to be invalidated")
	}
	if !ok3 {
		t.Fatalf("expected project:1 to still exist")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after clear")
	}
}
