package story

import (
	"context"
	"sync"
	"time"
)

const defaultCompletionBuffer = 1024

// Request asks for the story behind URL on behalf of the event with
// sequence number Seq.
type Request struct {
	URL string
	Seq uint64
}

// Completion is the settled result of a Request. Seq lets the consumer order
// it against events handled since the request was made.
type Completion struct {
	URL     string
	Seq     uint64
	Story   Story
	Err     error
	Latency time.Duration
}

// Lookups runs story resolutions in the background and hands their results
// back on a single channel, so the consumer decides when they take effect.
// There is no cancellation of individual lookups and no retry.
//
// A request for a URL that is already in flight joins that lookup; the one
// completion carries the highest sequence number requested.
type Lookups struct {
	resolver Resolver
	out      chan Completion
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending map[string]uint64 // url -> highest seq requested
}

// LookupOption configures Lookups.
type LookupOption func(*lookupSettings)

type lookupSettings struct {
	buffer int
}

// WithCompletionBuffer sizes the completion channel.
func WithCompletionBuffer(n int) LookupOption {
	return func(s *lookupSettings) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// NewLookups creates a dispatcher over resolver.
func NewLookups(resolver Resolver, opts ...LookupOption) *Lookups {
	s := lookupSettings{buffer: defaultCompletionBuffer}
	for _, opt := range opts {
		opt(&s)
	}
	return &Lookups{
		resolver: resolver,
		out:      make(chan Completion, s.buffer),
		pending:  make(map[string]uint64),
	}
}

// Request starts resolving req.URL and returns immediately. Requests with an
// empty URL are ignored. When ctx ends before the result is delivered, the
// result is dropped.
func (l *Lookups) Request(ctx context.Context, req Request) {
	if req.URL == "" {
		return
	}
	l.mu.Lock()
	if seq, ok := l.pending[req.URL]; ok {
		l.pending[req.URL] = max(seq, req.Seq)
		l.mu.Unlock()
		return
	}
	l.pending[req.URL] = req.Seq
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		start := time.Now()
		s, err := l.resolver.Resolve(ctx, req.URL)

		l.mu.Lock()
		seq := l.pending[req.URL]
		delete(l.pending, req.URL)
		l.mu.Unlock()

		c := Completion{URL: req.URL, Seq: seq, Story: s, Err: err, Latency: time.Since(start)}
		select {
		case l.out <- c:
		case <-ctx.Done():
		}
	}()
}

// Completions delivers settled lookups in completion order.
func (l *Lookups) Completions() <-chan Completion {
	return l.out
}

// Wait blocks until every started lookup has delivered or been dropped.
func (l *Lookups) Wait() {
	l.wg.Wait()
}
