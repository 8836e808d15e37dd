package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Default resolver configuration constants.
const (
	defaultFetchTimeout = 5 * time.Second
	defaultMaxDocBytes  = 1 << 20
	acceptHeader        = "application/ld+json, application/json;q=0.9"
)

// Resolver turns a URL into a Story. Implementations must be safe for
// concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, url string) (Story, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, url string) (Story, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, url string) (Story, error) {
	return f(ctx, url)
}

// HTTPResolver fetches stories over HTTP(S).
type HTTPResolver struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// HTTPOption configures an HTTPResolver.
type HTTPOption func(*HTTPResolver)

// WithHTTPClient replaces the underlying client. The client itself is never
// modified; a fetch timeout is applied to a copy.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPResolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithFetchTimeout bounds each fetch, whatever client is in use.
func WithFetchTimeout(d time.Duration) HTTPOption {
	return func(r *HTTPResolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxDocumentBytes caps the size of a story body.
func WithMaxDocumentBytes(n int64) HTTPOption {
	return func(r *HTTPResolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// NewHTTPResolver creates an HTTP resolver.
func NewHTTPResolver(opts ...HTTPOption) *HTTPResolver {
	r := &HTTPResolver{
		client:   &http.Client{Timeout: defaultFetchTimeout},
		maxBytes: defaultMaxDocBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.timeout > 0 {
		c := *r.client
		c.Timeout = r.timeout
		r.client = &c
	}
	return r
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, rawURL string) (Story, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return Decode(body)
}

// DirResolver serves stories from a directory of .json, .jsonc and .jsonld
// files loaded once at construction. A document is indexed under its @id,
// its "url" member, and its file stem; a URL whose last path segment equals
// a file stem resolves to that file.
type DirResolver struct {
	byKey map[string]Story
}

// NewDirResolver loads every story file in dir.
func NewDirResolver(dir string) (*DirResolver, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read stories dir: %w", err)
	}

	r := &DirResolver{byKey: make(map[string]Story)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".jsonc" && ext != ".jsonld" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read story %s: %w", e.Name(), err)
		}
		s, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("story %s: %w", e.Name(), err)
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		r.byKey[stem] = s
		if id := s.ID(); id != "" {
			r.byKey[id] = s
		}
		if u, ok := s["url"].(string); ok && u != "" {
			r.byKey[u] = s
		}
	}
	return r, nil
}

// Len returns the number of indexed keys.
func (r *DirResolver) Len() int { return len(r.byKey) }

// Resolve implements Resolver.
func (r *DirResolver) Resolve(_ context.Context, rawURL string) (Story, error) {
	if s, ok := r.byKey[rawURL]; ok {
		return s, nil
	}
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		if s, ok := r.byKey[path.Base(strings.TrimSuffix(u.Path, "/"))]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
}

// Chain tries each resolver in order and returns the first story found.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, rawURL string) (Story, error) {
	var errs []error
	for _, r := range c {
		s, err := r.Resolve(ctx, rawURL)
		if err == nil {
			return s, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	return nil, errors.Join(errs...)
}
