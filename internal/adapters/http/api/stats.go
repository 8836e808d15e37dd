package api

import (
	"context"
	"net/http"

	"github.com/okian/hyperlocal/internal/domain/types"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) types.Stats
}

// StatsHandler handles stats requests. When streams is set, its open
// connection count is reported alongside the service stats.
type StatsHandler struct {
	statsProvider StatsProvider
	streams       *StreamHandler
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, streams *StreamHandler) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, streams: streams}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	st := h.statsProvider.GetStats(r.Context())
	if h.streams != nil {
		st.StreamClients = h.streams.Clients()
	}
	writeJSON(w, http.StatusOK, st)
}
