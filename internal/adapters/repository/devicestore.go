package repository

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// DeviceStore is the in-memory Store.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]model.Event
	total   int64
	byKind  map[model.Kind]int64

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewDeviceStore constructs a device store. The background metrics updater
// runs until ctx is done or Close is called.
func NewDeviceStore(ctx context.Context, opts ...Option) *DeviceStore {
	s := &DeviceStore{
		devices:               make(map[string]model.Event),
		byKind:                make(map[model.Kind]int64, len(model.Kinds)),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Record implements Store.Record.
func (s *DeviceStore) Record(_ context.Context, e model.Event) error { //nolint:gocritic // hugeParam: stored by value
	if e.DeviceID == "" {
		metrics.RecordErrorByComponent("repository", "missing_device")
		return ErrMissingDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byKind[e.Kind]++
	if e.Kind == model.Disappearance {
		delete(s.devices, e.DeviceID)
		return nil
	}
	s.devices[e.DeviceID] = e
	return nil
}

// Device implements Store.Device.
func (s *DeviceStore) Device(_ context.Context, deviceID string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.devices[deviceID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Event{}, ErrNotFound
	}
	return e, nil
}

// Devices implements Store.Devices.
func (s *DeviceStore) Devices(context.Context) []model.Event {
	s.mu.RLock()
	out := slices.Collect(maps.Values(s.devices))
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Event) int { return strings.Compare(a.DeviceID, b.DeviceID) })
	return out
}

// Stats implements Store.Stats.
func (s *DeviceStore) Stats(context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Total: s.total, ByKind: maps.Clone(s.byKind)}
}

// Count implements Store.Count.
func (s *DeviceStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// Close stops the background metrics updater.
func (s *DeviceStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *DeviceStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRegisteredDevices(s.Count(ctx))
			}
		}
	}()
}
