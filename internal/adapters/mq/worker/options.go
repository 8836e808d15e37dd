package worker

import (
	"time"

	"github.com/okian/hyperlocal/internal/domain/story"
	"github.com/okian/hyperlocal/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithCompletions sets the channel settled story lookups arrive on.
func WithCompletions(c <-chan story.Completion) Option {
	return func(w *InMemoryWorker) {
		w.completions = c
	}
}

// WithFeatureInterval sets the featuring period. Zero disables ticking.
func WithFeatureInterval(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d >= 0 {
			w.interval = d
		}
	}
}
