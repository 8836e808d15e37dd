package testevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hyperlocal/pkg/logger"
)

// Submission retry settings.
const (
	maxRetries   = 20
	retryBackoff = 50 * time.Millisecond

	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes the complete event test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("testevents")

	sc := DefaultScenario()
	if config.Scenario != "" {
		var err error
		if sc, err = LoadScenario(config.Scenario); err != nil {
			return err
		}
	}
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	log.Info(ctx, "starting hyperlocal event test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("events", config.NumEvents),
		logger.Int("devices", config.Devices),
		logger.Int("workers", config.Workers),
		logger.String("transport", config.Transport),
		logger.Int("directories", len(sc.Directories)))

	client := newHTTPClient(config.BaseURL, config.Timeout)
	if err := checkServiceHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	plan, err := Generate(ctx, sc, config.NumEvents, config.Devices, seed)
	if err != nil {
		return fmt.Errorf("event generation failed: %w", err)
	}
	stats.EventsGenerated = len(plan.Events)

	if err := submitEvents(ctx, config, client, plan.Events, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	log.Info(ctx, "waiting for events to be processed", logger.Duration("settle", config.Settle))
	if err := waitForDrain(ctx, client, config.Settle); err != nil {
		return err
	}

	if err := verifyResults(ctx, client, plan, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveEventsToFile(config.OutputFile, plan.Events); err != nil {
			log.Warn(ctx, "failed to save events to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// submitEvents sends every device's events in order from one submitter,
// retrying batches refused under backpressure.
func submitEvents(ctx context.Context, config *Config, client *HTTPClient, events []Event, stats *Stats) error {
	shards := Shard(events, config.Workers)
	batch := max(config.BatchSize, 1)

	var submitted, successful, duplicate, failed atomic.Int64
	var wg sync.WaitGroup
	errs := make([]error, len(shards))

	for w, shard := range shards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := newSubmitter(config, client)
			if err != nil {
				errs[w] = err
				return
			}
			defer func() { _ = sub.Close() }()

			for start := 0; start < len(shard); start += batch {
				part := shard[start:min(start+batch, len(shard))]
				ack, err := submitWithRetry(ctx, sub, part)
				submitted.Add(int64(len(part)))
				if err != nil {
					failed.Add(int64(len(part)))
					errs[w] = err
					return
				}
				successful.Add(int64(ack.Accepted))
				duplicate.Add(int64(ack.Duplicates))
			}
		}()
	}
	wg.Wait()

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsSuccessful = int(successful.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsFailed = int(failed.Load())
	return errors.Join(errs...)
}

func newSubmitter(config *Config, client *HTTPClient) (Submitter, error) {
	if config.Transport == TransportWebsocket {
		return dialStream(config.BaseURL)
	}
	return &httpSubmitter{client: client}, nil
}

// submitWithRetry resubmits the whole batch after backpressure. Events the
// service already queued come back as duplicates, so order is kept and they
// are counted as duplicates.
func submitWithRetry(ctx context.Context, sub Submitter, batch []Event) (AckResponse, error) {
	for attempt := 0; ; attempt++ {
		ack, err := sub.Submit(ctx, batch)
		if err == nil {
			return ack, nil
		}
		if !errors.Is(err, ErrBackpressure) || attempt >= maxRetries {
			return ack, err
		}
		select {
		case <-ctx.Done():
			return ack, ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt+1)):
		}
	}
}

// waitForDrain polls /stats until the queue is empty, or settle elapses.
func waitForDrain(ctx context.Context, client *HTTPClient, settle time.Duration) error {
	deadline := time.Now().Add(settle)
	for {
		var st struct {
			QueueLength int `json:"queueLength"`
		}
		err := client.GetJSON(ctx, "/stats", &st)
		if err == nil && st.QueueLength == 0 {
			// the loop may still hold the last event it dequeued
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
				return nil
			}
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			return fmt.Errorf("queue still holds %d events after %s", st.QueueLength, settle)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
}

func saveEventsToFile(filename string, events []Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsSuccessful", stats.EventsSuccessful),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("directories", stats.Directories),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
