package testevents

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/hyperlocal/pkg/logger"
)

const logFilePermission = 0o600

// Default flag values.
const (
	defaultNumEvents = 10000
	defaultDevices   = 200
	defaultBatchSize = 50
	defaultTimeout   = 30 * time.Second
	defaultSettle    = 30 * time.Second
)

// ParseFlags builds a Config from command line arguments. It returns
// pflag.ErrHelp when help was requested.
func ParseFlags(args []string, stderr io.Writer) (*Config, error) {
	fs := pflag.NewFlagSet("test-events", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	c := &Config{}
	fs.StringVarP(&c.BaseURL, "url", "u", "http://localhost:9080", "Base URL of the service")
	fs.StringVarP(&c.Scenario, "scenario", "s", "", "YAML scenario file describing directories and receivers")
	fs.IntVarP(&c.NumEvents, "events", "n", defaultNumEvents, "Number of events to generate and submit")
	fs.IntVarP(&c.Devices, "devices", "d", defaultDevices, "Number of simulated devices")
	fs.IntVarP(&c.Workers, "workers", "w", runtime.NumCPU(), "Number of concurrent submitters")
	fs.IntVarP(&c.BatchSize, "batch", "b", defaultBatchSize, "Events per request or websocket frame")
	fs.StringVarP(&c.Transport, "transport", "t", TransportHTTP, "Submission transport: http or ws")
	fs.DurationVar(&c.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	fs.DurationVar(&c.Settle, "settle", defaultSettle, "How long to wait for the queue to drain")
	fs.Uint64Var(&c.Seed, "seed", 0, "Random seed; 0 picks one")
	fs.StringVarP(&c.OutputFile, "output", "o", "", "Write the generated events to this file")
	fs.StringVar(&c.LogFile, "log", "", "Also write logs to this file")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Hyperlocal event test tool\n\nUsage:\n  test-events [flags]\n\nFlags:\n%s", fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.Transport != TransportHTTP && c.Transport != TransportWebsocket {
		return nil, fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c, nil
}

// SetupLogging initializes the logger, writing to stdout and, when logFile
// is set, to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}
