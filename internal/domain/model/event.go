// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxRSSI is the placeholder signal strength stored for every receiver the
// first time it is seen in a directory. It is never updated afterwards.
const MaxRSSI = 255

// Kind is the proximity event type emitted by the event source.
type Kind string

// Event kinds.
const (
	Appearance    Kind = "appearance"
	Displacement  Kind = "displacement"
	KeepAlive     Kind = "keep-alive"
	Disappearance Kind = "disappearance"
)

// Kinds lists every kind in the order the event source documents them.
var Kinds = []Kind{Appearance, Displacement, KeepAlive, Disappearance}

// Sentinel validation errors.
var (
	ErrUnknownKind     = errors.New("unknown event kind")
	ErrMissingDeviceID = errors.New("missing deviceId")
)

// ParseKind maps a wire string onto a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case Appearance, Displacement, KeepAlive, Disappearance:
		return k, nil
	case "keepalive":
		return KeepAlive, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string { return string(k) }

// Event is one proximity observation. Only the most recent event per device
// is retained by the directory model.
type Event struct {
	EventID           string    `json:"eventId,omitempty" cbor:"eventId,omitempty"`
	Kind              Kind      `json:"event" cbor:"event"`
	DeviceID          string    `json:"deviceId" cbor:"deviceId"`
	DeviceURL         string    `json:"deviceUrl,omitempty" cbor:"deviceUrl,omitempty"`
	ReceiverID        string    `json:"receiverId" cbor:"receiverId"`
	ReceiverURL       string    `json:"receiverUrl,omitempty" cbor:"receiverUrl,omitempty"`
	ReceiverDirectory string    `json:"receiverDirectory" cbor:"receiverDirectory"`
	Time              time.Time `json:"time" cbor:"time"`
}

// Validate checks the fields every consumer relies on and normalizes Kind.
// An empty receiverDirectory is not checked here; the aggregator owns that
// policy.
func (e *Event) Validate() error {
	k, err := ParseKind(string(e.Kind))
	if err != nil {
		return err
	}
	e.Kind = k
	if strings.TrimSpace(e.DeviceID) == "" {
		return ErrMissingDeviceID
	}
	return nil
}

// Receiver is an infrastructure reader as recorded inside one directory.
type Receiver struct {
	ID   string `json:"receiverId"`
	URL  string `json:"url,omitempty"`
	RSSI int    `json:"rssi"`
}
