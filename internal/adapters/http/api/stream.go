package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/pkg/codec"
	"github.com/okian/hyperlocal/pkg/logger"
	"github.com/okian/hyperlocal/pkg/metrics"
)

// StreamHandler ingests events over a websocket. Each JSON frame carries one
// event or an array of events and is answered with one ack frame.
type StreamHandler struct {
	deps             Ingress
	maxBatchSize     int
	requireDirectory bool
	log              logger.Logger
	clients          atomic.Int64
	ws               websocket.Handler
}

// streamAck is the per-frame reply.
type streamAck struct {
	ackResponse
	Error *errorResponse `json:"error,omitempty"`
}

// NewStreamHandler creates the websocket ingest handler.
func NewStreamHandler(deps Ingress, maxBatchSize int, log logger.Logger) *StreamHandler {
	h := &StreamHandler{deps: deps, maxBatchSize: maxBatchSize, log: log.Named("stream")}
	h.ws = websocket.Handler(h.serve)
	return h
}

// ServeHTTP implements http.Handler.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ws.ServeHTTP(w, r)
}

// Clients returns the number of open streams.
func (h *StreamHandler) Clients() int64 {
	return h.clients.Load()
}

func (h *StreamHandler) serve(conn *websocket.Conn) {
	const op = "api.stream"
	defer func() { _ = conn.Close() }()

	ctx := conn.Request().Context()
	connID := uuid.NewString()
	metrics.UpdateStreamClients(int(h.clients.Add(1)))
	defer func() { metrics.UpdateStreamClients(int(h.clients.Add(-1))) }()
	h.log.Info(ctx, "stream opened", logger.String("conn", connID))

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	frames := 0
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if !errors.Is(err, io.EOF) {
				h.log.Warn(ctx, "stream read failed", logger.String("conn", connID), logger.Error(err))
			}
			break
		}
		frames++

		var reply streamAck
		events, err := codec.DecodeBatch[model.Event](codec.MediaJSON, raw)
		if err == nil {
			reply.ackResponse, err = ingest(ctx, h.deps, events, h.maxBatchSize, h.requireDirectory, "websocket")
		} else {
			metrics.RecordEventRejected("malformed")
			err = WrapKind(op, ErrBadRequest, err)
		}
		if err != nil {
			reply.Status = "rejected"
			_, code := statusOf(err)
			reply.Error = &errorResponse{Code: code, Message: err.Error()}
		}
		if err := enc.Encode(reply); err != nil {
			h.log.Warn(ctx, "stream write failed", logger.String("conn", connID), logger.Error(err))
			break
		}
	}
	h.log.Info(ctx, "stream closed", logger.String("conn", connID), logger.Int("frames", frames))
}
