// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/hyperlocal/internal/domain/dedupe"
	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/internal/domain/types"
	"github.com/okian/hyperlocal/pkg/logger"
)

// Default request limits.
const (
	defaultMaxBodyBytes = 1 << 20
	defaultMaxBatchSize = 1000
)

// Ingress accepts events for asynchronous processing.
type Ingress interface {
	dedupe.Deduper

	// Enqueue pushes a validated event. It fails fast on backpressure.
	Enqueue(ctx context.Context, e model.Event) error
}

// Reader exposes the read-only presentation queries. Lookups of unknown
// ids return an error wrapping ErrNotFound.
type Reader interface {
	Directories(ctx context.Context) []types.Directory
	Directory(ctx context.Context, id string) (types.Directory, error)
	Featured(ctx context.Context) types.Featured
	IsFeaturedStory(ctx context.Context, url string) bool
	Devices(ctx context.Context) types.Devices
	DeviceStory(ctx context.Context, deviceID string) (types.StoryLookup, error)
	Story(ctx context.Context, url string) types.StoryLookup
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Ingress
	Reader
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	eventsHandler    *EventsHandler
	streamHandler    *StreamHandler
	directoryHandler *DirectoryHandler
	featuredHandler  *FeaturedHandler
	deviceHandler    *DeviceHandler
	storyHandler     *StoryHandler
}

// Option configures the Server.
type Option func(*settings)

type settings struct {
	maxBodyBytes     int64
	maxBatchSize     int
	requireDirectory bool
	log              logger.Logger
}

// WithMaxBodyBytes caps POST /events bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithMaxBatchSize caps the number of events per submission.
func WithMaxBatchSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithRequireDirectory refuses events without a receiverDirectory at
// ingress instead of leaving them to the directory model.
func WithRequireDirectory(required bool) Option {
	return func(s *settings) {
		s.requireDirectory = required
	}
}

// WithLogger sets the logger used by the streaming handler.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := settings{maxBodyBytes: defaultMaxBodyBytes, maxBatchSize: defaultMaxBatchSize, log: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	streams := NewStreamHandler(deps, s.maxBatchSize, s.log)
	streams.requireDirectory = s.requireDirectory
	events := NewEventsHandler(deps, s.maxBodyBytes, s.maxBatchSize)
	events.requireDirectory = s.requireDirectory
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider, streams),
		eventsHandler:    events,
		streamHandler:    streams,
		directoryHandler: NewDirectoryHandler(deps),
		featuredHandler:  NewFeaturedHandler(deps),
		deviceHandler:    NewDeviceHandler(deps),
		storyHandler:     NewStoryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvents, "events"))
	mux.Handle("GET /events/stream", s.streamHandler)
	mux.HandleFunc("GET /directories", MetricsMiddleware(s.directoryHandler.HandleList, "directories"))
	mux.HandleFunc("GET /directories/{id}", MetricsMiddleware(s.directoryHandler.HandleGet, "directory"))
	mux.HandleFunc("GET /featured", MetricsMiddleware(s.featuredHandler.HandleFeatured, "featured"))
	mux.HandleFunc("GET /featured/story", MetricsMiddleware(s.featuredHandler.HandleFeaturedStory, "featured_story"))
	mux.HandleFunc("GET /devices", MetricsMiddleware(s.deviceHandler.HandleList, "devices"))
	mux.HandleFunc("GET /devices/{id}/story", MetricsMiddleware(s.deviceHandler.HandleStory, "device_story"))
	mux.HandleFunc("GET /stories", MetricsMiddleware(s.storyHandler.HandleGet, "stories"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusOf maps an error's kind onto a status code and error code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeKind(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	writeError(w, status, code, err)
}
