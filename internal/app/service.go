// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hyperlocal/internal/adapters/http/api"
	eventqueue "github.com/okian/hyperlocal/internal/adapters/mq/queue"
	"github.com/okian/hyperlocal/internal/adapters/mq/worker"
	"github.com/okian/hyperlocal/internal/adapters/repository"
	"github.com/okian/hyperlocal/internal/domain/dedupe"
	"github.com/okian/hyperlocal/internal/domain/directory"
	"github.com/okian/hyperlocal/internal/domain/featuring"
	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/internal/domain/story"
	"github.com/okian/hyperlocal/internal/domain/types"
	"github.com/okian/hyperlocal/pkg/logger"
	"github.com/okian/hyperlocal/pkg/metrics"
)

const stopTimeout = 10 * time.Second

var (
	_ api.Dependencies  = (*Service)(nil)
	_ api.StatsProvider = (*Service)(nil)
)

// components are the parts built by Start. Readers load them atomically so
// queries made before Start or after Stop see an empty model.
type components struct {
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	repo    *repository.DeviceStore
	agg     *directory.Aggregator
	stories *story.Registry
	lookups *story.Lookups
	engine  *featuring.Engine
	proc    *processor
	loop    *worker.InMemoryWorker
	cancel  context.CancelFunc
}

// Service implements the API dependencies for the hyperlocal aggregator.
type Service struct {
	mu   sync.Mutex
	comp atomic.Pointer[components]

	// Configuration
	queueSize        int
	dedupeSize       int
	featureInterval  time.Duration
	policy           directory.MissingDirectoryPolicy
	storiesDir       string
	storyHTTP        bool
	storyTimeout     time.Duration
	storyMaxBytes    int64
	storyConcurrency int
	storyCacheSize   int
	resolver         story.Resolver
	rng              *rand.Rand

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:        10_000,
		dedupeSize:       50_000,
		featureInterval:  featuring.DefaultInterval,
		policy:           directory.PolicyReject,
		storyHTTP:        true,
		storyTimeout:     5 * time.Second,
		storyMaxBytes:    1 << 20,
		storyConcurrency: 16,
		storyCacheSize:   10_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components and starts the event loop. The loop keeps
// running after ctx is canceled; call Stop to end it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.comp.Load() != nil {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting hyperlocal service...")

	resolver, err := s.buildResolver()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &components{cancel: cancel}
	c.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	c.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	c.repo = repository.NewDeviceStore(runCtx)
	c.agg = directory.New(
		directory.WithMissingDirectoryPolicy(s.policy),
		directory.WithLogger(s.logger.Named("directory")),
	)
	c.stories = story.NewRegistry(resolver,
		story.WithMaxStories(s.storyCacheSize),
		story.WithFetchConcurrency(s.storyConcurrency),
	)
	c.lookups = story.NewLookups(c.stories)

	var engineOpts []featuring.Option
	if s.rng != nil {
		engineOpts = append(engineOpts, featuring.WithRand(s.rng))
	}
	c.engine = featuring.New(c.stories, engineOpts...)

	c.proc = &processor{
		agg:     c.agg,
		repo:    c.repo,
		stories: c.stories,
		lookups: c.lookups,
		engine:  c.engine,
		logger:  s.logger.Named("processor"),
	}
	c.loop = worker.NewInMemoryWorker(c.queue, c.proc,
		worker.WithName("event-loop"),
		worker.WithLogger(s.logger),
		worker.WithCompletions(c.lookups.Completions()),
		worker.WithFeatureInterval(s.featureInterval),
	)
	go c.loop.Run(runCtx)

	s.comp.Store(c)
	metrics.UpdateQueueCapacity(c.queue.Cap())
	s.logger.Info(ctx, "hyperlocal service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("featureInterval", s.featureInterval),
		logger.String("missingDirectoryPolicy", string(s.policy)),
	)
	return nil
}

// buildResolver chains the local stories directory ahead of HTTP fetching.
func (s *Service) buildResolver() (story.Resolver, error) {
	if s.resolver != nil {
		return s.resolver, nil
	}
	var chain story.Chain
	if s.storiesDir != "" {
		dr, err := story.NewDirResolver(s.storiesDir)
		if err != nil {
			return nil, fmt.Errorf("stories dir: %w", err)
		}
		chain = append(chain, dr)
	}
	if s.storyHTTP {
		chain = append(chain, story.NewHTTPResolver(
			story.WithFetchTimeout(s.storyTimeout),
			story.WithMaxDocumentBytes(s.storyMaxBytes),
		))
	}
	return chain, nil
}

// Stop closes the queue and stops the event loop. Events still queued may
// be dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.comp.Swap(nil)
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping hyperlocal service...")

	_ = c.queue.Close()
	if err := c.loop.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "event loop did not stop in time", logger.Error(err))
	}
	c.cancel()
	c.lookups.Wait()
	_ = c.repo.Close()

	s.logger.Info(ctx, "hyperlocal service stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (s *Service) Running() bool {
	return s.comp.Load() != nil
}

// SeenAndRecord atomically checks if an event id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	c := s.comp.Load()
	if c == nil {
		return false
	}
	return c.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes an event id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	if c := s.comp.Load(); c != nil {
		c.deduper.Unrecord(ctx, id)
	}
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	c := s.comp.Load()
	if c == nil {
		return 0
	}
	return c.deduper.Size()
}

// Enqueue submits an event for asynchronous processing. It fails fast with
// eventqueue.ErrQueueFull under backpressure.
func (s *Service) Enqueue(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: copied into the queue
	c := s.comp.Load()
	if c == nil {
		return ErrNotStarted
	}
	if err := c.queue.Enqueue(ctx, e); err != nil {
		if errors.Is(err, eventqueue.ErrQueueFull) {
			s.logger.Debug(ctx, "event queue full", logger.String("deviceId", e.DeviceID))
		}
		return err
	}
	return nil
}

// Directories returns every directory in creation order.
func (s *Service) Directories(context.Context) []types.Directory {
	c := s.comp.Load()
	if c == nil {
		return []types.Directory{}
	}
	snap := c.agg.Snapshot()
	out := make([]types.Directory, 0, len(snap.Directories))
	for _, v := range snap.Directories {
		out = append(out, types.FromView(v, c.engine.People(v)))
	}
	return out
}

// Directory returns one directory by id.
func (s *Service) Directory(_ context.Context, id string) (types.Directory, error) {
	c := s.comp.Load()
	if c == nil {
		return types.Directory{}, ErrNotStarted
	}
	v, ok := c.agg.Directory(id)
	if !ok {
		return types.Directory{}, fmt.Errorf("directory %q: %w", id, api.ErrNotFound)
	}
	return types.FromView(v, c.engine.People(v)), nil
}

// Featured returns the featured directory, story URL and featurable stories.
func (s *Service) Featured(context.Context) types.Featured {
	c := s.comp.Load()
	if c == nil {
		return types.Featured{FeaturedStories: map[string]story.Story{}}
	}
	snap := c.agg.Snapshot()
	f := types.Featured{FeaturedStories: snap.FeaturedStories}
	if snap.HasFeaturedDir {
		if i := slices.IndexFunc(snap.Directories, func(v directory.View) bool { return v.ID == snap.FeaturedDir }); i >= 0 {
			d := types.FromView(snap.Directories[i], c.engine.People(snap.Directories[i]))
			f.Directory = &d
		}
	}
	if snap.HasFeaturedStory {
		u := snap.FeaturedStoryURL
		f.StoryURL = &u
	}
	return f
}

// IsFeaturedStory reports whether url is the featured story URL.
func (s *Service) IsFeaturedStory(_ context.Context, url string) bool {
	c := s.comp.Load()
	return c != nil && c.agg.IsFeaturedStory(url)
}

// Devices returns the device registry.
func (s *Service) Devices(ctx context.Context) types.Devices {
	c := s.comp.Load()
	if c == nil {
		return types.Devices{Devices: []model.Event{}, Stats: types.DeviceStats{ByKind: map[string]int64{}}}
	}
	devs := c.repo.Devices(ctx)
	st := c.repo.Stats(ctx)
	byKind := make(map[string]int64, len(st.ByKind))
	for k, n := range st.ByKind {
		byKind[k.String()] = n
	}
	return types.Devices{
		NumberOfDevices: len(devs),
		Devices:         devs,
		Stats:           types.DeviceStats{Total: st.Total, ByKind: byKind},
	}
}

// DeviceStory returns the story resolved for a present device's latest URL.
func (s *Service) DeviceStory(ctx context.Context, deviceID string) (types.StoryLookup, error) {
	c := s.comp.Load()
	if c == nil {
		return types.StoryLookup{}, ErrNotStarted
	}
	e, err := c.repo.Device(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return types.StoryLookup{}, fmt.Errorf("device %q: %w", deviceID, api.ErrNotFound)
		}
		return types.StoryLookup{}, err
	}
	return s.Story(ctx, e.DeviceURL), nil
}

// Story returns the cached story for url, if one has been resolved.
func (s *Service) Story(_ context.Context, url string) types.StoryLookup {
	out := types.StoryLookup{URL: url}
	c := s.comp.Load()
	if c == nil || url == "" {
		return out
	}
	out.Story, out.Fetched = c.stories.Get(url)
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	c := s.comp.Load()
	if c == nil {
		return types.Stats{}
	}
	dirs, devices, featured := c.agg.Stats()
	st := types.Stats{
		QueueLength:       c.queue.Len(ctx),
		QueueCapacity:     c.queue.Cap(),
		Directories:       dirs,
		PresentDevices:    devices,
		RegisteredDevices: c.repo.Count(ctx),
		FeaturedStories:   featured,
		StoriesCached:     c.stories.Len(),
		EventsHandled:     c.proc.handled.Load(),
		DedupeWindow:      c.deduper.Size(),
	}
	metrics.UpdateQueueSize(st.QueueLength, st.QueueCapacity)
	metrics.UpdateDirectories(dirs)
	metrics.UpdatePresentDevices(devices)
	return st
}
