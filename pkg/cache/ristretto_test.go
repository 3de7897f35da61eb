package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()
	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(c.Close)
	return c.(*RistrettoCache)
}

func TestRistrettoCache_SetAndGet(t *testing.T) {
	c := newTestCache(t)

	tokens := []string{"0xabc", "0xdef"}
	if !c.Set("0xcondition", tokens, time.Hour) {
		t.Fatal("expected Set to succeed")
	}
	c.Wait()

	got, found := c.Get("0xcondition")
	if !found {
		t.Fatal("expected key to be found")
	}
	gotTokens, ok := got.([]string)
	if !ok || len(gotTokens) != 2 || gotTokens[0] != "0xabc" {
		t.Errorf("unexpected cached value: %v", got)
	}
}

func TestRistrettoCache_MissingKey(t *testing.T) {
	c := newTestCache(t)
	if _, found := c.Get("nonexistent"); found {
		t.Error("expected key to not be found")
	}
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "v", time.Hour)
	c.Wait()
	if _, found := c.Get("k"); !found {
		t.Fatal("expected key to exist before delete")
	}

	c.Delete("k")
	if _, found := c.Get("k"); found {
		t.Error("expected key to be deleted")
	}
}

func TestRistrettoCache_TTLExpiration(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "v", 100*time.Millisecond)
	c.Wait()
	if _, found := c.Get("k"); !found {
		t.Fatal("expected key to exist before TTL expires")
	}

	time.Sleep(200 * time.Millisecond)
	if _, found := c.Get("k"); found {
		t.Error("expected key to be expired")
	}
}

func TestRistrettoCache_Clear(t *testing.T) {
	c := newTestCache(t)

	c.Set("k1", "v1", time.Hour)
	c.Set("k2", "v2", time.Hour)
	c.Wait()

	_, found1 := c.Get("k1")
	_, found2 := c.Get("k2")
	if !found1 || !found2 {
		// Ristretto admission is probabilistic under pressure.
		t.Skip("keys not admitted")
	}

	c.Clear()
	if _, found := c.Get("k1"); found {
		t.Error("expected cache to be empty after Clear")
	}
}
