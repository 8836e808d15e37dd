package repository

import "time"

// Option applies a configuration option to the DeviceStore.
type Option func(*DeviceStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *DeviceStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
