package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	type entry struct {
		Ticker string
		Price  float64
	}
	if err := mc.Set(ctx, "quote:AAPL", entry{Ticker: "AAPL", Price: 189.95}, time.Minute); err != nil {
		t.Fatal(err)
	}

	var got entry
	if err := mc.Get(ctx, "quote:AAPL", &got); err != nil {
		t.Fatal(err)
	}
	if got.Ticker != "AAPL" || got.Price != 189.95 {
		t.Fatalf("round trip: %+v", got)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var dest string
	if err := mc.Get(context.Background(), "absent", &dest); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("want ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	var dest string
	if err := mc.Get(ctx, "k", &dest); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired key served: %v", err)
	}
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Fatal("expired key exists")
	}
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxEntries(2))
	defer mc.Close()
	ctx := context.Background()

	mc.Set(ctx, "a", 1, time.Minute)
	mc.Set(ctx, "b", 2, time.Minute)

	// Touch "a" so "b" becomes least recently used.
	var n int
	if err := mc.Get(ctx, "a", &n); err != nil {
		t.Fatal(err)
	}

	mc.Set(ctx, "c", 3, time.Minute)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatal("lru entry survived eviction")
	}
	if ok, _ := mc.Exists(ctx, "a"); !ok {
		t.Fatal("recently used entry evicted")
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	mc.Set(ctx, "a", 1, time.Minute)
	mc.Set(ctx, "b", 2, time.Minute)
	if err := mc.Delete(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := mc.Exists(ctx, "a"); ok {
		t.Fatal("deleted key exists")
	}
}
