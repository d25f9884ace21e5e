package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds prefetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches
	MaxConcurrency int
	// Timeout per resource fetch
	Timeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 6,
		Timeout:        30 * time.Second,
	}
}

// Fetcher fetches one resource
type Fetcher interface {
	FetchResource(ctx context.Context, url string) error
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, url string) error

// FetchResource calls f.
func (f FetcherFunc) FetchResource(ctx context.Context, url string) error {
	return f(ctx, url)
}

// Result is the outcome of fetching one resource
type Result struct {
	URL string
	Err error
}

// Prefetcher fetches resource lists with a worker pool
type Prefetcher struct {
	fetcher Fetcher
	config  Config
}

// New creates a new prefetcher
func New(fetcher Fetcher, config Config) *Prefetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &Prefetcher{
		fetcher: fetcher,
		config:  config,
	}
}

type job struct {
	index int
	url   string
}

// FetchAll fetches every URL and returns one Result per URL in input order.
// URLs not attempted because ctx was cancelled carry ctx.Err().
func (p *Prefetcher) FetchAll(ctx context.Context, urls []string) []Result {
	start := time.Now()
	results := make([]Result, len(urls))
	for i, u := range urls {
		results[i] = Result{URL: u}
	}
	if len(urls) == 0 {
		return results
	}

	workers := p.config.MaxConcurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan job)
	attempted := make([]bool, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, jobs, results, attempted, &wg, i)
	}

feed:
	for i, u := range urls {
		select {
		case jobs <- job{index: i, url: u}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for i := range results {
		if !attempted[i] {
			results[i].Err = ctx.Err()
		}
		if results[i].Err != nil {
			failed++
		}
	}

	log.Debug().
		Int("resources", len(urls)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	return results
}

// worker processes resources from the queue. Each worker writes only the
// result slots of the jobs it received.
func (p *Prefetcher) worker(ctx context.Context, jobs <-chan job, results []Result, attempted []bool, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for j := range jobs {
		attempted[j.index] = true

		fetchCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		err := p.fetcher.FetchResource(fetchCtx, j.url)
		cancel()

		if err != nil {
			log.Debug().
				Err(err).
				Int("worker_id", workerID).
				Str("url", j.url).
				Msg("Resource fetch failed")
		}
		results[j.index].Err = err
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
