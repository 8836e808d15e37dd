// Package worker runs the event loop: the only goroutine that mutates the
// directory model. It interleaves queued events, settled story lookups and
// featuring ticks, handling exactly one of them at a time.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/internal/domain/story"
	"github.com/okian/hyperlocal/pkg/logger"
	"github.com/okian/hyperlocal/pkg/metrics"
)

// Event abstracts what the loop reads off the queue.
type Event = model.Event

// Queue defines how the loop receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Processor applies the loop's three kinds of work.
type Processor interface {
	// Process handles one event. Errors are logged and counted; they never
	// stop the loop.
	Process(ctx context.Context, e Event) error
	// Resolve applies a settled story lookup.
	Resolve(ctx context.Context, c story.Completion)
	// Feature recomputes the featured directory and story.
	Feature(ctx context.Context)
}

// Worker is a long-running loop.
type Worker interface {
	// Run starts the loop until ctx is canceled, Shutdown is called or the
	// queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the loop and waits for it to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	proc        Processor
	completions <-chan story.Completion
	interval    time.Duration
	name        string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates the event loop with configuration options.
func NewInMemoryWorker(queue Queue, proc Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		proc:     proc,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				w.logger.Info(ctx, "queue closed, event loop stopping")
				return
			}
			w.processEvent(ctx, e)
		case c := <-w.completions:
			w.proc.Resolve(ctx, c)
		case <-tick:
			w.proc.Feature(ctx)
		}
	}
}

// Shutdown stops the loop and waits for it to finish the item in hand.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) processEvent(ctx context.Context, e Event) { //nolint:gocritic // hugeParam: events arrive by value from the channel
	metrics.RecordQueueDequeue()
	start := time.Now()
	err := w.proc.Process(ctx, e)
	metrics.RecordHandleLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		w.logger.Warn(ctx, "event not applied",
			logger.String("deviceId", e.DeviceID),
			logger.String("event", e.Kind.String()),
			logger.Error(err))
	}
}
