// Package featuring picks which directory and which story to put on display.
//
// The engine is pure with respect to the directory model: it reads a
// snapshot and returns a Selection for the aggregator to apply.
package featuring

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/okian/hyperlocal/internal/domain/directory"
	"github.com/okian/hyperlocal/internal/domain/story"
)

// DefaultInterval is the featuring period.
const DefaultInterval = 8 * time.Second

// Stories looks up resolved stories by URL.
type Stories interface {
	Get(url string) (story.Story, bool)
}

// Engine computes featuring selections.
type Engine struct {
	stories Stories
	rng     *rand.Rand
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRand injects the random source used to pick the featured story.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

// New creates an Engine reading person stories from stories.
func New(stories Stories, opts ...Option) *Engine {
	e := &Engine{
		stories: stories,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // display choice, not security
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is a Selection plus what the tick observed.
type Result struct {
	directory.Selection
	People   int  // people count of the selected directory
	Switched bool // selected directory differs from the incumbent
}

// Tick recomputes the featured directory and story URL.
//
// The incumbent keeps its place unless another directory has strictly more
// people; among challengers the first in creation order with the highest
// count wins.
func (e *Engine) Tick(s directory.Snapshot) Result {
	var res Result
	best := -1 // with no incumbent the first directory wins
	if s.HasFeaturedDir {
		res.Directory, res.HasDirectory = s.FeaturedDir, true
		best = 0
		if i := slices.IndexFunc(s.Directories, func(d directory.View) bool { return d.ID == s.FeaturedDir }); i >= 0 {
			best = e.People(s.Directories[i])
		}
	}

	for _, d := range s.Directories {
		if s.HasFeaturedDir && d.ID == s.FeaturedDir {
			continue
		}
		if n := e.People(d); n > best {
			best = n
			res.Directory, res.HasDirectory = d.ID, true
			res.Switched = true
		}
	}
	res.People = max(best, 0)

	if len(s.FeaturedStories) > 0 {
		urls := make([]string, 0, len(s.FeaturedStories))
		for u := range s.FeaturedStories {
			urls = append(urls, u)
		}
		slices.Sort(urls)
		res.StoryURL, res.HasStory = urls[e.rng.IntN(len(urls))], true
	}
	return res
}

// People counts devices whose latest device URL resolves to a story that
// includes a person.
func (e *Engine) People(d directory.View) int {
	n := 0
	for _, ev := range d.Devices {
		if ev.DeviceURL == "" {
			continue
		}
		if s, ok := e.stories.Get(ev.DeviceURL); ok && story.IncludesPerson(s) {
			n++
		}
	}
	return n
}
