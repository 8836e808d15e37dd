// Package types contains the read-model shapes served to presentation clients.
package types

import (
	"slices"
	"strings"

	"github.com/okian/hyperlocal/internal/domain/directory"
	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/internal/domain/story"
)

// Directory is one location with its receivers and present devices.
type Directory struct {
	ID        string           `json:"id"`
	People    int              `json:"people"`
	Receivers []model.Receiver `json:"receivers"`
	Devices   []model.Event    `json:"devices"`
}

// Featured is the current featuring state.
type Featured struct {
	Directory       *Directory             `json:"featuredDirectory"`
	StoryURL        *string                `json:"featuredStoryUrl"`
	FeaturedStories map[string]story.Story `json:"featuredStories"`
}

// FeaturedCheck answers whether a URL is the featured story.
type FeaturedCheck struct {
	URL      string `json:"url"`
	Featured bool   `json:"featured"`
}

// DeviceStats counts the events recorded per kind.
type DeviceStats struct {
	Total  int64            `json:"total"`
	ByKind map[string]int64 `json:"byKind"`
}

// Devices is the device registry view.
type Devices struct {
	NumberOfDevices int           `json:"numberOfDevices"`
	Devices         []model.Event `json:"devices"`
	Stats           DeviceStats   `json:"stats"`
}

// StoryLookup reports whether a story has been resolved for a URL.
type StoryLookup struct {
	URL     string      `json:"url"`
	Fetched bool        `json:"fetched"`
	Story   story.Story `json:"story,omitempty"`
}

// Stats summarises the service.
type Stats struct {
	QueueLength       int    `json:"queueLength"`
	QueueCapacity     int    `json:"queueCapacity"`
	Directories       int    `json:"directories"`
	PresentDevices    int    `json:"presentDevices"`
	RegisteredDevices int    `json:"registeredDevices"`
	FeaturedStories   int    `json:"featuredStories"`
	StoriesCached     int    `json:"storiesCached"`
	EventsHandled     uint64 `json:"eventsHandled"`
	DedupeWindow      int64  `json:"dedupeWindow"`
	StreamClients     int64  `json:"streamClients"`
}

// FromView converts a directory copy, ordering receivers and devices by id.
func FromView(v directory.View, people int) Directory {
	d := Directory{
		ID:        v.ID,
		People:    people,
		Receivers: make([]model.Receiver, 0, len(v.Receivers)),
		Devices:   make([]model.Event, 0, len(v.Devices)),
	}
	for _, r := range v.Receivers {
		d.Receivers = append(d.Receivers, r)
	}
	for _, e := range v.Devices {
		d.Devices = append(d.Devices, e)
	}
	slices.SortFunc(d.Receivers, func(a, b model.Receiver) int { return strings.Compare(a.ID, b.ID) })
	SortEvents(d.Devices)
	return d
}

// SortEvents orders events by device id.
func SortEvents(evs []model.Event) {
	slices.SortFunc(evs, func(a, b model.Event) int { return strings.Compare(a.DeviceID, b.DeviceID) })
}
