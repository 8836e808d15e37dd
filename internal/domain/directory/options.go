package directory

import (
	"fmt"
	"strings"

	"github.com/okian/hyperlocal/pkg/logger"
)

// MissingDirectoryPolicy decides what happens to events that carry no
// receiverDirectory.
type MissingDirectoryPolicy string

// Policies.
const (
	// PolicyReject refuses the event and leaves state untouched.
	PolicyReject MissingDirectoryPolicy = "reject"
	// PolicyEmptyKey files the event under a directory keyed by "".
	PolicyEmptyKey MissingDirectoryPolicy = "empty-key"
)

// ParsePolicy maps a configuration string onto a policy.
func ParsePolicy(s string) (MissingDirectoryPolicy, error) {
	switch p := MissingDirectoryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyReject, PolicyEmptyKey:
		return p, nil
	case "":
		return PolicyReject, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

const defaultMaxTombstones = 10_000

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithMissingDirectoryPolicy sets the policy for events without a directory.
func WithMissingDirectoryPolicy(p MissingDirectoryPolicy) Option {
	return func(a *Aggregator) {
		if p == PolicyReject || p == PolicyEmptyKey {
			a.policy = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMaxTombstones bounds how many disappeared device URLs are remembered
// for stale lookup detection. Once forgotten, a late lookup for that URL is
// applied like any other.
func WithMaxTombstones(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxGone = n
		}
	}
}
