// Package repository is the device registry: every proximity event is
// recorded here, independently of how the directory model files it.
package repository

import (
	"context"

	"github.com/okian/hyperlocal/internal/domain/model"
)

// Stats counts recorded events.
type Stats struct {
	Total  int64
	ByKind map[model.Kind]int64
}

// Store provides read/write access to the registered devices.
type Store interface {
	// Record stores e as the device's latest event. A disappearance removes
	// the device instead. Every event is counted.
	Record(ctx context.Context, e model.Event) error

	// Device returns the latest event of a present device.
	// Returns ErrNotFound if the device is unknown or gone.
	Device(ctx context.Context, deviceID string) (model.Event, error)

	// Devices returns the latest event of every present device, by device id.
	Devices(ctx context.Context) []model.Event

	// Stats returns event counts.
	Stats(ctx context.Context) Stats

	// Count returns the number of present devices.
	Count(ctx context.Context) int
}
