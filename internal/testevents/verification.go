package testevents

import (
	"context"
	"fmt"

	"github.com/okian/hyperlocal/pkg/logger"
)

// maxReported caps how many mismatches are logged individually.
const maxReported = 10

// verifyResults checks the directory model against the plan: every device is
// held by at most one directory, and present devices sit where their last
// event put them.
func verifyResults(ctx context.Context, client *HTTPClient, plan *Plan, stats *Stats) error {
	var dirs []Directory
	if err := client.GetJSON(ctx, "/directories", &dirs); err != nil {
		return err
	}
	stats.Directories = len(dirs)

	mismatches := Compare(dirs, plan.Expected)
	stats.Mismatches = len(mismatches)
	log := logger.Get().Named("testevents")
	for i, m := range mismatches {
		if i == maxReported {
			log.Warn(ctx, "more mismatches omitted", logger.Int("total", len(mismatches)))
			break
		}
		log.Warn(ctx, "placement mismatch", logger.String("detail", m))
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d devices misplaced", len(mismatches))
	}
	log.Info(ctx, "directory model verified",
		logger.Int("directories", len(dirs)),
		logger.Int("presentDevices", len(plan.Expected)))
	return nil
}

// Compare returns one line per device whose placement in dirs disagrees with
// expected.
func Compare(dirs []Directory, expected map[string]string) []string {
	var out []string
	held := make(map[string][]string)
	for _, d := range dirs {
		if d.People > len(d.Devices) {
			out = append(out, fmt.Sprintf("directory %s counts %d people among %d devices", d.ID, d.People, len(d.Devices)))
		}
		for _, e := range d.Devices {
			held[e.DeviceID] = append(held[e.DeviceID], d.ID)
		}
	}

	for dev, in := range held {
		want, present := expected[dev]
		switch {
		case len(in) > 1:
			out = append(out, fmt.Sprintf("device %s held by %d directories %v", dev, len(in), in))
		case !present:
			out = append(out, fmt.Sprintf("device %s should be absent, found in %s", dev, in[0]))
		case in[0] != want:
			out = append(out, fmt.Sprintf("device %s in %s, want %s", dev, in[0], want))
		}
	}
	for dev, want := range expected {
		if _, ok := held[dev]; !ok {
			out = append(out, fmt.Sprintf("device %s missing, want %s", dev, want))
		}
	}
	return out
}
