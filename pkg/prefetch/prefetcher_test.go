package prefetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	p := New(FetcherFunc(func(ctx context.Context, url string) error { return nil }), Config{})

	if p.config.MaxConcurrency != DefaultConfig().MaxConcurrency {
		t.Errorf("MaxConcurrency = %d", p.config.MaxConcurrency)
	}
	if p.config.Timeout != DefaultConfig().Timeout {
		t.Errorf("Timeout = %v", p.config.Timeout)
	}
}

func TestPrefetcher_FetchAll_PartialFailure(t *testing.T) {
	boom := errors.New("boom")
	var mu sync.Mutex
	seen := map[string]int{}

	p := New(FetcherFunc(func(ctx context.Context, url string) error {
		mu.Lock()
		seen[url]++
		mu.Unlock()
		if url == "/fonts/missing.woff2" {
			return boom
		}
		return nil
	}), Config{MaxConcurrency: 3})

	urls := []string{"/", "/index.html", "/fonts/missing.woff2", "/offline.html", "/manifest.json"}
	results := p.FetchAll(context.Background(), urls)

	if len(results) != len(urls) {
		t.Fatalf("got %d results, want %d", len(results), len(urls))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("results[%d].URL = %q, want input order %q", i, r.URL, urls[i])
		}
		if seen[r.URL] != 1 {
			t.Errorf("%s fetched %d times, want 1", r.URL, seen[r.URL])
		}
	}

	failed := Failed(results)
	if len(failed) != 1 || !errors.Is(failed[0].Err, boom) {
		t.Errorf("Failed = %+v, want only the missing font", failed)
	}
}

func TestPrefetcher_FetchAll_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	p := New(FetcherFunc(func(ctx context.Context, url string) error {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}), Config{MaxConcurrency: 2})

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = "/r"
	}
	p.FetchAll(context.Background(), urls)

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestPrefetcher_FetchAll_Empty(t *testing.T) {
	p := New(FetcherFunc(func(ctx context.Context, url string) error {
		t.Error("fetcher should not be called")
		return nil
	}), DefaultConfig())

	if results := p.FetchAll(context.Background(), nil); len(results) != 0 {
		t.Errorf("results = %v", results)
	}
}

func TestPrefetcher_FetchAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(FetcherFunc(func(ctx context.Context, url string) error {
		return ctx.Err()
	}), Config{MaxConcurrency: 1})

	results := p.FetchAll(ctx, []string{"/a", "/b", "/c"})
	for _, r := range results {
		if r.Err == nil {
			t.Errorf("%s: expected an error after cancellation", r.URL)
		}
	}
}
