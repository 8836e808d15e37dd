// Command test-events drives a running hyperlocal service with a simulated
// walk of devices through directories and verifies the resulting model.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/hyperlocal/internal/testevents"
)

const defaultTestTimeout = 10 * time.Minute

func main() {
	config, err := testevents.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Stderr.WriteString("Invalid arguments: " + err.Error() + "\n")
		os.Exit(2)
	}

	if err := testevents.SetupLogging(config.LogFile, config.Verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	if err := testevents.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		stop()
		os.Exit(1) //nolint:gocritic // deferred cancels already run above
	}
}
