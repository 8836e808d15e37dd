package testevents

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/pkg/logger"
)

// Step mix for devices that are present.
const keepAliveShare = 0.45

// Plan is a generated event sequence with the placement it should produce.
type Plan struct {
	Events []Event
	// Expected maps every device to its final directory; absent devices
	// are missing from the map.
	Expected map[string]string
	// DeviceOrder lists device ids in creation order.
	DeviceOrder []string
}

type simDevice struct {
	id  string
	url string
	at  int // directory index, -1 when absent
}

// Generate builds a random walk of devices through the scenario's
// directories. The same seed always yields the same plan.
func Generate(ctx context.Context, sc *Scenario, numEvents, numDevices int, seed uint64) (*Plan, error) {
	if len(sc.Directories) == 0 {
		return nil, fmt.Errorf("scenario has no directories")
	}
	if numDevices <= 0 || numEvents <= 0 {
		return nil, fmt.Errorf("need positive events and devices, got %d and %d", numEvents, numDevices)
	}

	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)
	rng := rand.New(src)

	devices := make([]*simDevice, numDevices)
	plan := &Plan{
		Events:      make([]Event, 0, numEvents),
		Expected:    make(map[string]string, numDevices),
		DeviceOrder: make([]string, 0, numDevices),
	}
	for i := range devices {
		id, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return nil, fmt.Errorf("device id: %w", err)
		}
		kind := "things"
		if rng.Float64() < sc.PeopleRatio {
			kind = "people"
		}
		devices[i] = &simDevice{id: id.String(), url: fmt.Sprintf("%s/%s/%s", sc.StoryBaseURL, kind, id), at: -1}
		plan.DeviceOrder = append(plan.DeviceOrder, devices[i].id)
	}

	now := time.Now().UTC()
	for n := range numEvents {
		if n%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d := devices[rng.IntN(len(devices))]
		kind, to := nextStep(rng, sc, d)

		dir := sc.Directories[to]
		eid, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return nil, fmt.Errorf("event id: %w", err)
		}
		plan.Events = append(plan.Events, Event{
			EventID:           eid.String(),
			Kind:              kind,
			DeviceID:          d.id,
			DeviceURL:         d.url,
			ReceiverID:        dir.Receivers[rng.IntN(len(dir.Receivers))],
			ReceiverURL:       fmt.Sprintf("%s/places/%s", sc.StoryBaseURL, dir.ID),
			ReceiverDirectory: dir.ID,
			Time:              now.Add(time.Duration(n) * time.Millisecond),
		})

		if kind == model.Disappearance {
			d.at = -1
			delete(plan.Expected, d.id)
			continue
		}
		d.at = to
		plan.Expected[d.id] = dir.ID
	}

	logger.Get().Info(ctx, "generated events",
		logger.Int("events", len(plan.Events)),
		logger.Int("devices", numDevices),
		logger.Uint64("seed", seed))
	return plan, nil
}

// nextStep picks the device's next event kind and target directory.
func nextStep(rng *rand.Rand, sc *Scenario, d *simDevice) (model.Kind, int) {
	if d.at < 0 {
		return model.Appearance, rng.IntN(len(sc.Directories))
	}
	r := rng.Float64()
	switch {
	case r < sc.DisappearRatio:
		return model.Disappearance, d.at
	case r < sc.DisappearRatio+keepAliveShare || len(sc.Directories) == 1:
		return model.KeepAlive, d.at
	}
	to := rng.IntN(len(sc.Directories) - 1)
	if to >= d.at {
		to++
	}
	return model.Displacement, to
}

// Shard splits events across n submitters so that every device's events go
// to one submitter in their original order.
func Shard(events []Event, n int) [][]Event {
	if n <= 0 {
		n = 1
	}
	out := make([][]Event, n)
	owner := make(map[string]int)
	for _, e := range events {
		w, ok := owner[e.DeviceID]
		if !ok {
			w = len(owner) % n
			owner[e.DeviceID] = w
		}
		out[w] = append(out[w], e)
	}
	return out
}
