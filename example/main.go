package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/meterpulse"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// start in-process plugs (see plugs.go)
	hosts := StartMockPlugs("Desk lamp", "Kettle", "Dead plug")

	c, err := meterpulse.New(
		meterpulse.WithHosts(hosts...),
		meterpulse.WithPeriod(time.Second),
		meterpulse.WithListen(":19110"),
		meterpulse.WithOutput(os.Stdout),
		meterpulse.WithLogger(logger),
		meterpulse.WithRoundCallback(func(r meterpulse.RoundReport) {
			if r.Failed > 0 {
				logger.Info("round finished with failures", "round", r.Round, "failed", r.Failed)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create collector", "error", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  meterpulse demo")
	fmt.Fprintln(os.Stderr, "  netdata protocol on stdout, logs on stderr")
	fmt.Fprintln(os.Stderr, "  http://localhost:19110/api/readings and /metrics")
	fmt.Fprintln(os.Stderr, "  Press Ctrl+C to stop")
	fmt.Fprintln(os.Stderr)

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil {
		slog.Error("collector error", "error", err)
		os.Exit(1)
	}
}
