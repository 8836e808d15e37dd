package story

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const defaultFetchConcurrency = 16

// Registry caches resolved stories by URL in front of a Resolver. Concurrent
// requests for the same uncached URL share one fetch. Failed and empty
// resolutions are not cached. Only fetches that reach the Resolver count
// against the fetch bound; cache hits and joined fetches never wait on it.
type Registry struct {
	resolver Resolver
	group    singleflight.Group
	fetches  int64
	sem      *semaphore.Weighted

	mu      sync.RWMutex
	stories map[string]Story
	order   []string // insertion order, oldest first
	maxSize int      // 0 or negative = unbounded
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxStories bounds the cache; the oldest entry is evicted first.
func WithMaxStories(n int) RegistryOption {
	return func(r *Registry) {
		r.maxSize = n
	}
}

// WithFetchConcurrency bounds the number of fetches in flight.
func WithFetchConcurrency(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.fetches = int64(n)
		}
	}
}

// NewRegistry wraps resolver with a cache.
func NewRegistry(resolver Resolver, opts ...RegistryOption) *Registry {
	r := &Registry{
		resolver: resolver,
		fetches:  defaultFetchConcurrency,
		stories:  make(map[string]Story),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sem = semaphore.NewWeighted(r.fetches)
	return r
}

// Resolve returns the cached story for url or fetches it. The fetch is not
// tied to the caller's cancellation so that other waiters still get it.
func (r *Registry) Resolve(ctx context.Context, url string) (Story, error) {
	if s, ok := r.Get(url); ok {
		return s, nil
	}

	ch := r.group.DoChan(url, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if err := r.sem.Acquire(fctx, 1); err != nil {
			return nil, err
		}
		defer r.sem.Release(1)

		s, err := r.resolver.Resolve(fctx, url)
		if err != nil {
			return nil, err
		}
		if len(s) > 0 {
			r.put(url, s)
		}
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s, _ := res.Val.(Story)
		return s, nil
	}
}

func (r *Registry) put(url string, s Story) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stories[url]; !exists {
		r.order = append(r.order, url)
	}
	r.stories[url] = s

	for r.maxSize > 0 && len(r.order) > r.maxSize {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.stories, oldest)
	}
}

// Get returns the cached story for url.
func (r *Registry) Get(url string) (Story, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stories[url]
	return s, ok
}

// Has reports whether a story for url has been resolved.
func (r *Registry) Has(url string) bool {
	_, ok := r.Get(url)
	return ok
}

// Len returns the number of cached stories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stories)
}
