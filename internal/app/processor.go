package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/hyperlocal/internal/adapters/repository"
	"github.com/okian/hyperlocal/internal/domain/directory"
	"github.com/okian/hyperlocal/internal/domain/featuring"
	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/internal/domain/story"
	"github.com/okian/hyperlocal/pkg/logger"
	"github.com/okian/hyperlocal/pkg/metrics"
)

// processor applies the event loop's work to the domain. Its methods are
// only called from the loop goroutine.
type processor struct {
	agg     *directory.Aggregator
	repo    repository.Store
	stories *story.Registry
	lookups *story.Lookups
	engine  *featuring.Engine
	handled atomic.Uint64
	logger  logger.Logger
}

func (p *processor) Process(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: events arrive by value from the loop
	// Directories and the device registry must see the same normalized kind.
	if err := e.Validate(); err != nil {
		metrics.RecordEventError("invalid")
		return fmt.Errorf("handle %s: %w", e.Kind, err)
	}
	rc, err := p.agg.Handle(ctx, e)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, directory.ErrMissingDirectory) {
			reason = "missing_directory"
		}
		metrics.RecordEventError(reason)
		return fmt.Errorf("handle %s: %w", e.Kind, err)
	}
	if err := p.repo.Record(ctx, e); err != nil {
		return fmt.Errorf("record device: %w", err)
	}
	for _, req := range rc.Lookups {
		p.lookups.Request(ctx, req)
	}

	p.handled.Add(1)
	metrics.RecordEventProcessed(e.Kind.String())
	dirs, devices, featured := p.agg.Stats()
	metrics.UpdateDirectories(dirs)
	metrics.UpdatePresentDevices(devices)
	metrics.UpdateFeaturedStories(featured)
	return nil
}

func (p *processor) Resolve(ctx context.Context, c story.Completion) {
	outcome := p.agg.Resolve(ctx, c)
	metrics.RecordStoryResolution(outcome.String())
	metrics.RecordStoryLatency(float64(c.Latency.Microseconds()) / 1000)
	metrics.UpdateStoriesCached(p.stories.Len())

	switch outcome {
	case directory.OutcomeFailed:
		if c.Err != nil {
			p.logger.Debug(ctx, "story lookup failed", logger.String("url", c.URL), logger.Error(c.Err))
		}
	case directory.OutcomeFeatured:
		_, _, featured := p.agg.Stats()
		metrics.UpdateFeaturedStories(featured)
		p.logger.Debug(ctx, "story featured", logger.String("url", c.URL), logger.Uint64("seq", c.Seq))
	}
}

func (p *processor) Feature(ctx context.Context) {
	start := time.Now()
	res := p.engine.Tick(p.agg.Snapshot())
	p.agg.Feature(res.Selection)
	metrics.RecordFeatureTick(res.Switched, res.People, float64(time.Since(start).Microseconds())/1000)

	if res.Switched {
		p.logger.Info(ctx, "featured directory changed",
			logger.String("directory", res.Directory),
			logger.Int("people", res.People))
	}
}
