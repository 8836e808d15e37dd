package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/hyperlocal/internal/domain/directory"
	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/pkg/codec"
	"github.com/okian/hyperlocal/pkg/metrics"
)

// EventsHandler handles event submissions.
type EventsHandler struct {
	deps             Ingress
	maxBodyBytes     int64
	maxBatchSize     int
	requireDirectory bool
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Ingress, maxBodyBytes int64, maxBatchSize int) *EventsHandler {
	return &EventsHandler{deps: deps, maxBodyBytes: maxBodyBytes, maxBatchSize: maxBatchSize}
}

type ackResponse struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Duplicate  bool   `json:"duplicate"`
}

// HandlePostEvents handles POST /events requests. The body is one event or
// an array of events, as JSON or CBOR.
func (h *EventsHandler) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_events"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordEventRejected("too_large")
			writeKind(w, WrapKind(op, ErrTooLarge, err))
			return
		}
		writeKind(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	events, err := codec.DecodeBatch[model.Event](r.Header.Get("Content-Type"), body)
	if err != nil {
		metrics.RecordEventRejected("malformed")
		if errors.Is(err, codec.ErrUnsupportedMediaType) {
			writeKind(w, WrapKind(op, ErrUnsupportedMedia, err))
			return
		}
		writeKind(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	ack, err := ingest(r.Context(), h.deps, events, h.maxBatchSize, h.requireDirectory, "http")
	if err != nil {
		writeKind(w, Wrap(op, err))
		return
	}
	status := http.StatusAccepted
	if ack.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, ack)
}

// ingest validates a batch and enqueues it in order. Validation is all or
// nothing; backpressure stops at the first event that could not be queued.
// With requireDir, events without a receiverDirectory fail validation.
func ingest(ctx context.Context, deps Ingress, events []model.Event, maxBatch int, requireDir bool, transport string) (ackResponse, error) {
	const op = "api.ingest"
	var ack ackResponse

	if maxBatch > 0 && len(events) > maxBatch {
		metrics.RecordEventRejected("batch_too_large")
		return ack, WrapKind(op, ErrTooLarge, fmt.Errorf("%d events, limit %d", len(events), maxBatch))
	}
	now := time.Now().UTC()
	for i := range events {
		if err := events[i].Validate(); err != nil {
			metrics.RecordEventRejected("invalid")
			return ack, WrapKind(op, ErrBadRequest, fmt.Errorf("event %d: %w", i, err))
		}
		if requireDir && events[i].ReceiverDirectory == "" {
			metrics.RecordEventRejected("missing_directory")
			return ack, WrapKind(op, ErrBadRequest, fmt.Errorf("event %d: %w", i, directory.ErrMissingDirectory))
		}
		if events[i].Time.IsZero() {
			events[i].Time = now
		}
	}

	for _, e := range events {
		if e.EventID != "" && deps.SeenAndRecord(ctx, e.EventID) {
			ack.Duplicates++
			metrics.RecordEventDuplicate()
			continue
		}
		if err := deps.Enqueue(ctx, e); err != nil {
			if e.EventID != "" {
				deps.Unrecord(ctx, e.EventID)
			}
			metrics.RecordEventRejected("backpressure")
			return ack, WrapKind(op, ErrBackpressure, fmt.Errorf("accepted %d of %d: %w", ack.Accepted, len(events), err))
		}
		ack.Accepted++
		metrics.RecordEventReceived(e.Kind.String(), transport)
	}

	ack.Status = "accepted"
	if ack.Accepted == 0 && ack.Duplicates > 0 {
		ack.Status, ack.Duplicate = "duplicate", true
	}
	return ack, nil
}
