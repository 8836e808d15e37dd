// Package directory aggregates proximity events into a per-location model:
// which receivers belong to a directory and which devices were last seen
// near them. It also owns the featured state that the featuring engine
// recomputes on every tick.
//
// Mutations happen on one goroutine (the event loop). Readers on other
// goroutines only ever see copies taken under a read lock.
package directory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/internal/domain/story"
	"github.com/okian/hyperlocal/pkg/logger"
)

// Outcome classifies how a story completion was applied.
type Outcome int

// Completion outcomes.
const (
	OutcomeFeatured  Outcome = iota // person story added to the featured stories
	OutcomeDuplicate                // already featured, nothing changed
	OutcomeNoPerson                 // resolved, but no person in it
	OutcomeFailed                   // lookup failed or story absent
	OutcomeStale                    // device disappeared after the lookup was requested
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFeatured:
		return "featured"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeNoPerson:
		return "no_person"
	case OutcomeFailed:
		return "failed"
	case OutcomeStale:
		return "stale"
	}
	return "unknown"
}

// Receipt is returned for every handled event.
type Receipt struct {
	Seq     uint64
	Created bool            // the event created its directory
	Lookups []story.Request // story lookups the caller should dispatch
}

// Selection is a featuring decision to apply.
type Selection struct {
	Directory    string
	HasDirectory bool
	StoryURL     string
	HasStory     bool
}

type tombstone struct {
	url string
	seq uint64
}

type dir struct {
	id        string
	receivers map[string]model.Receiver
	devices   map[string]model.Event
}

func newDir(id string) *dir {
	return &dir{
		id:        id,
		receivers: make(map[string]model.Receiver),
		devices:   make(map[string]model.Event),
	}
}

// addReceiver records the receiver on first sight only.
func (d *dir) addReceiver(ev model.Event) {
	if ev.ReceiverID == "" {
		return
	}
	if _, ok := d.receivers[ev.ReceiverID]; ok {
		return
	}
	d.receivers[ev.ReceiverID] = model.Receiver{ID: ev.ReceiverID, URL: ev.ReceiverURL, RSSI: model.MaxRSSI}
}

func (d *dir) view() View {
	return View{
		ID:        d.id,
		Receivers: maps.Clone(d.receivers),
		Devices:   maps.Clone(d.devices),
	}
}

// Aggregator maintains directories and featured state.
type Aggregator struct {
	mu    sync.RWMutex
	seq   uint64
	dirs  map[string]*dir
	order []string // creation order

	featuredDir      string
	hasFeaturedDir   bool
	featuredStoryURL string
	hasFeaturedStory bool
	featuredStories  map[string]story.Story

	// device URL -> seq of its latest disappearance, capped at maxGone
	// with the oldest record forgotten first
	gone      map[string]uint64
	goneOrder []tombstone
	maxGone   int

	policy MissingDirectoryPolicy
	log    logger.Logger
}

// New creates an empty Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		dirs:            make(map[string]*dir),
		featuredStories: make(map[string]story.Story),
		gone:            make(map[string]uint64),
		maxGone:         defaultMaxTombstones,
		policy:          PolicyReject,
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle applies one event. After it returns the device is held by at most
// one directory: the event's directory, or none on disappearance.
func (a *Aggregator) Handle(ctx context.Context, ev model.Event) (Receipt, error) {
	if err := ev.Validate(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if ev.ReceiverDirectory == "" && a.policy == PolicyReject {
		return Receipt{}, ErrMissingDirectory
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	rc := Receipt{Seq: a.seq}
	leaving := ev.Kind == model.Disappearance

	for _, id := range a.order {
		d := a.dirs[id]
		if id == ev.ReceiverDirectory && !leaving {
			d.addReceiver(ev)
			d.devices[ev.DeviceID] = ev
			continue
		}
		delete(d.devices, ev.DeviceID)
	}

	if _, ok := a.dirs[ev.ReceiverDirectory]; !ok {
		d := newDir(ev.ReceiverDirectory)
		d.addReceiver(ev)
		if !leaving {
			d.devices[ev.DeviceID] = ev
		}
		a.dirs[d.id] = d
		a.order = append(a.order, d.id)
		a.featuredDir, a.hasFeaturedDir = d.id, true
		rc.Created = true
		a.log.Debug(ctx, "directory created",
			logger.String("directory", d.id),
			logger.String("deviceId", ev.DeviceID))
	}

	if ev.DeviceURL != "" {
		if leaving {
			delete(a.featuredStories, ev.DeviceURL)
			a.bury(ev.DeviceURL, rc.Seq)
		} else {
			delete(a.gone, ev.DeviceURL)
		}
	}

	for _, u := range []string{ev.DeviceURL, ev.ReceiverURL} {
		if u != "" {
			rc.Lookups = append(rc.Lookups, story.Request{URL: u, Seq: rc.Seq})
		}
	}
	return rc, nil
}

// bury records that url's device disappeared at seq. Entries superseded by a
// later sighting or disappearance are skipped when the oldest is evicted.
func (a *Aggregator) bury(url string, seq uint64) {
	a.gone[url] = seq
	a.goneOrder = append(a.goneOrder, tombstone{url: url, seq: seq})

	for a.maxGone > 0 && len(a.gone) > a.maxGone {
		t := a.goneOrder[0]
		a.goneOrder = a.goneOrder[1:]
		if a.gone[t.url] == t.seq {
			delete(a.gone, t.url)
		}
	}
	if len(a.goneOrder) > 2*max(a.maxGone, len(a.gone)) {
		live := a.goneOrder[:0]
		for _, t := range a.goneOrder {
			if a.gone[t.url] == t.seq {
				live = append(live, t)
			}
		}
		a.goneOrder = live
	}
}

// Resolve applies a settled story lookup. A person story is added to the
// featured stories and becomes the featured story URL, unless the URL is
// already featured or its device disappeared at or after c.Seq.
func (a *Aggregator) Resolve(ctx context.Context, c story.Completion) Outcome {
	if c.Err != nil || len(c.Story) == 0 {
		return OutcomeFailed
	}
	if !story.IncludesPerson(c.Story) {
		return OutcomeNoPerson
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if g, ok := a.gone[c.URL]; ok && c.Seq <= g {
		a.log.Debug(ctx, "stale story resolution dropped",
			logger.String("url", c.URL),
			logger.Uint64("seq", c.Seq),
			logger.Uint64("disappearedAt", g))
		return OutcomeStale
	}
	if _, ok := a.featuredStories[c.URL]; ok {
		return OutcomeDuplicate
	}
	a.featuredStories[c.URL] = c.Story
	a.featuredStoryURL, a.hasFeaturedStory = c.URL, true
	return OutcomeFeatured
}

// Feature replaces the featured directory and story URL.
func (a *Aggregator) Feature(sel Selection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.featuredDir, a.hasFeaturedDir = sel.Directory, sel.HasDirectory
	a.featuredStoryURL, a.hasFeaturedStory = sel.StoryURL, sel.HasStory
}

// View is a copy of one directory.
type View struct {
	ID        string
	Receivers map[string]model.Receiver
	Devices   map[string]model.Event
}

// Snapshot is a copy of the whole model. Story documents are shared and
// must be treated as read-only.
type Snapshot struct {
	Seq              uint64
	Directories      []View // creation order
	FeaturedDir      string
	HasFeaturedDir   bool
	FeaturedStoryURL string
	HasFeaturedStory bool
	FeaturedStories  map[string]story.Story
}

// Snapshot copies the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Snapshot{
		Seq:              a.seq,
		Directories:      make([]View, 0, len(a.order)),
		FeaturedDir:      a.featuredDir,
		HasFeaturedDir:   a.hasFeaturedDir,
		FeaturedStoryURL: a.featuredStoryURL,
		HasFeaturedStory: a.hasFeaturedStory,
		FeaturedStories:  maps.Clone(a.featuredStories),
	}
	for _, id := range a.order {
		s.Directories = append(s.Directories, a.dirs[id].view())
	}
	return s
}

// Directory returns a copy of the directory with the given id.
func (a *Aggregator) Directory(id string) (View, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.dirs[id]
	if !ok {
		return View{}, false
	}
	return d.view(), true
}

// Locate returns the directory currently holding the device.
func (a *Aggregator) Locate(deviceID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, id := range a.order {
		if _, ok := a.dirs[id].devices[deviceID]; ok {
			return id, true
		}
	}
	return "", false
}

// IsFeaturedStory reports whether url is the featured story URL.
func (a *Aggregator) IsFeaturedStory(url string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hasFeaturedStory && a.featuredStoryURL == url
}

// Stats returns the number of directories, present devices and featured
// stories.
func (a *Aggregator) Stats() (directories, devices, stories int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, d := range a.dirs {
		devices += len(d.devices)
	}
	return len(a.dirs), devices, len(a.featuredStories)
}
