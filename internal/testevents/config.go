package testevents

import (
	"time"

	"github.com/okian/hyperlocal/internal/domain/model"
)

// Transports the tool can submit over.
const (
	TransportHTTP      = "http"
	TransportWebsocket = "ws"
)

// Config holds configuration for the event test.
type Config struct {
	BaseURL    string        // Base URL of the service
	Scenario   string        // Optional YAML scenario file
	NumEvents  int           // Number of events to generate
	Devices    int           // Number of simulated devices
	Workers    int           // Number of concurrent submitters
	BatchSize  int           // Events per request or frame
	Transport  string        // http or ws
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // Wait for the loop to drain before verifying
	Seed       uint64        // Random seed; zero picks one
	OutputFile string        // Output file for events
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// Event is what gets submitted.
type Event = model.Event

// Directory is the slice of the read model the verifier needs.
type Directory struct {
	ID      string  `json:"id"`
	People  int     `json:"people"`
	Devices []Event `json:"devices"`
}

// AckResponse represents the response to an event submission.
type AckResponse struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Duplicate  bool   `json:"duplicate"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stats holds test statistics.
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsFailed     int
	Directories      int
	Mismatches       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
