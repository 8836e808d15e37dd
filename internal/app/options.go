package service

import (
	"math/rand/v2"
	"time"

	"github.com/okian/hyperlocal/internal/domain/directory"
	"github.com/okian/hyperlocal/internal/domain/story"
	"github.com/okian/hyperlocal/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many ingress event ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithFeatureInterval sets the featuring period.
func WithFeatureInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.featureInterval = d
		}
	}
}

// WithMissingDirectoryPolicy sets how events without a directory are handled.
func WithMissingDirectoryPolicy(p directory.MissingDirectoryPolicy) Option {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithStoriesDir serves stories from local JSON-LD files before any
// network fetch.
func WithStoriesDir(dir string) Option {
	return func(s *Service) {
		s.storiesDir = dir
	}
}

// WithStoryHTTP enables or disables fetching stories over HTTP(S).
func WithStoryHTTP(enabled bool) Option {
	return func(s *Service) {
		s.storyHTTP = enabled
	}
}

// WithStoryTimeout bounds a single story fetch.
func WithStoryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storyTimeout = d
		}
	}
}

// WithStoryConcurrency bounds the story fetches in flight.
func WithStoryConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.storyConcurrency = n
		}
	}
}

// WithStoryMaxBytes caps a story body fetched over HTTP.
func WithStoryMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.storyMaxBytes = n
		}
	}
}

// WithStoryCacheSize bounds the resolved-story cache. Zero means unbounded.
func WithStoryCacheSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.storyCacheSize = n
		}
	}
}

// WithStoryResolver replaces the configured resolver chain.
func WithStoryResolver(r story.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithRand injects the random source used to pick the featured story.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) {
		s.rng = r
	}
}
