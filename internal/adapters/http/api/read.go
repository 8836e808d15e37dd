package api

import (
	"net/http"
	"strings"

	"github.com/okian/hyperlocal/internal/domain/types"
)

// DirectoryHandler serves the directory model.
type DirectoryHandler struct {
	deps Reader
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(deps Reader) *DirectoryHandler {
	return &DirectoryHandler{deps: deps}
}

// HandleList handles GET /directories requests.
func (h *DirectoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Directories(r.Context()))
}

// HandleGet handles GET /directories/{id} requests.
func (h *DirectoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_directory"
	d, err := h.deps.Directory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeKind(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// FeaturedHandler serves the featuring state.
type FeaturedHandler struct {
	deps Reader
}

// NewFeaturedHandler creates a new featured handler.
func NewFeaturedHandler(deps Reader) *FeaturedHandler {
	return &FeaturedHandler{deps: deps}
}

// HandleFeatured handles GET /featured requests.
func (h *FeaturedHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Featured(r.Context()))
}

// HandleFeaturedStory handles GET /featured/story?url= requests.
func (h *FeaturedHandler) HandleFeaturedStory(w http.ResponseWriter, r *http.Request) {
	const op = "api.featured_story"
	url, ok := urlParam(r)
	if !ok {
		writeKind(w, NewKind(op, ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, types.FeaturedCheck{URL: url, Featured: h.deps.IsFeaturedStory(r.Context(), url)})
}

// DeviceHandler serves the device registry.
type DeviceHandler struct {
	deps Reader
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(deps Reader) *DeviceHandler {
	return &DeviceHandler{deps: deps}
}

// HandleList handles GET /devices requests.
func (h *DeviceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Devices(r.Context()))
}

// HandleStory handles GET /devices/{id}/story requests. It answers 404
// until a story has been resolved for the device's latest URL.
func (h *DeviceHandler) HandleStory(w http.ResponseWriter, r *http.Request) {
	const op = "api.device_story"
	lookup, err := h.deps.DeviceStory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeKind(w, Wrap(op, err))
		return
	}
	if !lookup.Fetched {
		writeKind(w, NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, lookup)
}

// StoryHandler serves resolved stories.
type StoryHandler struct {
	deps Reader
}

// NewStoryHandler creates a new story handler.
func NewStoryHandler(deps Reader) *StoryHandler {
	return &StoryHandler{deps: deps}
}

// HandleGet handles GET /stories?url= requests.
func (h *StoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_story"
	url, ok := urlParam(r)
	if !ok {
		writeKind(w, NewKind(op, ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Story(r.Context(), url))
}

func urlParam(r *http.Request) (string, bool) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	return url, url != ""
}
