package meterpulse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jpalmerr/meterpulse/dashboard"
	"github.com/jpalmerr/meterpulse/internal/catalog"
	"github.com/jpalmerr/meterpulse/internal/device"
	"github.com/jpalmerr/meterpulse/internal/kasa"
	"github.com/jpalmerr/meterpulse/internal/metrics"
	"github.com/jpalmerr/meterpulse/internal/poller"
	"github.com/jpalmerr/meterpulse/internal/round"
	"github.com/jpalmerr/meterpulse/internal/scheduler"
	"github.com/jpalmerr/meterpulse/internal/server"
	"github.com/jpalmerr/meterpulse/internal/sink"
	"github.com/jpalmerr/meterpulse/internal/store"
)

// Collector polls a fleet of smart plugs on a fixed period and emits their
// meter readings as charts.
//
// A Collector is created using [New] with functional options and run with
// [Collector.Run]. The typical lifecycle is:
//
//	c, err := meterpulse.New(meterpulse.WithHosts("192.168.0.124"))
//	if err != nil {
//	    slog.Error("failed to create collector", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	err = c.Run(ctx) // blocks until context cancelled or a sink fails
//
// Run registers metrics on the collector's registry, so a Collector is run
// at most once.
type Collector struct {
	hosts          []string
	period         time.Duration
	maxConcurrency int
	resolveTimeout time.Duration
	listen         string
	out            io.Writer
	sinks          []sink.Sink
	registry       *prometheus.Registry
	ownRegistry    bool
	clientFactory  device.ClientFactory
	clock          scheduler.Clock
	defs           []catalog.SeriesDefinition
	logger         *slog.Logger
	roundCallbacks []func(RoundReport)
}

// New creates a [Collector] with the given options.
//
// At least one host must be configured via [WithHosts]. Other options have
// defaults:
//   - Period: 1 second
//   - Device port: 9999
//   - Max concurrency: unlimited
//   - Output: os.Stdout
//
// Returns an error wrapping [ErrNoDevices] if no host is configured,
// or the first option error.
func New(opts ...Option) (*Collector, error) {
	cfg := &collectorConfig{
		port:   kasa.DefaultPort,
		period: scheduler.DefaultPeriod,
		out:    os.Stdout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.hosts) == 0 {
		return nil, fmt.Errorf("no hosts configured: %w", ErrNoDevices)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	factory := cfg.clientFactory
	if factory == nil {
		port := cfg.port
		factory = func(addr string) device.Client {
			return kasa.NewClient(addr, port)
		}
	}

	clock := cfg.clock
	if clock == nil {
		clock = scheduler.SystemClock()
	}

	reg := cfg.registry
	own := reg == nil
	if own {
		reg = prometheus.NewRegistry()
	}

	return &Collector{
		hosts:          append([]string(nil), cfg.hosts...),
		period:         cfg.period,
		maxConcurrency: cfg.maxConcurrency,
		resolveTimeout: cfg.resolveTimeout,
		listen:         cfg.listen,
		out:            cfg.out,
		sinks:          cfg.sinks,
		registry:       reg,
		ownRegistry:    own,
		clientFactory:  factory,
		clock:          clock,
		defs:           catalog.Definitions(),
		logger:         logger,
		roundCallbacks: cfg.roundCallbacks,
	}, nil
}

// Run resolves the fleet, declares every chart, then polls and emits one
// round per period.
//
// Run is a blocking call. Startup resolves each device alias once; a device
// that cannot be reached keeps the "<unknown>" alias. After declaration,
// each round:
//
//   - polls every device concurrently with a deadline of half the period
//   - converts the readings into chart values, warning about failed devices
//     and missing or malformed fields
//   - feeds the values and commits every chart, even one with no values
//
// Device and field problems never stop the collector. Run returns nil when
// ctx is cancelled, and an error if declaration, the HTTP server or a sink
// fails.
func (c *Collector) Run(ctx context.Context) error {
	deadline := scheduler.DeviceDeadline(c.period)
	c.logger.Info("collector starting",
		"devices", len(c.hosts),
		"period", c.period.String(),
		"device_deadline", deadline.String(),
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	if c.ownRegistry {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(c.registry)

	resolveTimeout := c.resolveTimeout
	if resolveTimeout == 0 {
		resolveTimeout = deadline
	}
	devices, err := device.Build(ctx, c.hosts, resolveTimeout, c.clientFactory, c.component("registry"))
	if err != nil {
		return fmt.Errorf("failed to build device registry: %w", err)
	}
	for _, d := range devices {
		c.logger.Debug("device registered", "address", d.Address, "alias", d.Alias, "dimension_prefix", d.DimensionPrefix)
	}

	st := store.NewMemoryStore()
	out := sink.Multi{sink.NewNetdata(c.out), sink.NewPrometheus(c.registry), st}
	out = append(out, c.sinks...)

	if err := round.Declare(out, c.defs, devices); err != nil {
		return fmt.Errorf("failed to declare charts: %w", err)
	}

	if c.listen != "" {
		srv := server.NewServer(st, c.listen, c.registry, dashboard.Assets, c.component("server"))
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	p := poller.New(deadline, c.maxConcurrency, c.component("poller"), m)
	proc := round.NewProcessor(c.defs, out, c.component("round"), m)
	sched := scheduler.New(c.period, c.clock, c.component("scheduler"), m)

	var n uint64
	err = sched.Run(ctx, func(ctx context.Context) error {
		n++
		start := c.clock.Now()
		results := p.PollAll(ctx, devices)
		res, err := proc.Process(ctx, results)
		if err != nil {
			return err
		}
		c.notify(report(n, start, c.clock.Now().Sub(start), results, res))
		return nil
	})
	if err != nil {
		return fmt.Errorf("collector stopped: %w", err)
	}

	c.logger.Info("collector stopped", "rounds", n)
	return nil
}

// Hosts returns a copy of the configured plug addresses.
func (c *Collector) Hosts() []string {
	return append([]string(nil), c.hosts...)
}

// Period returns the configured round period.
func (c *Collector) Period() time.Duration {
	return c.period
}

// Registry returns the Prometheus registry the collector reports to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) component(name string) *slog.Logger {
	return c.logger.With("component", name)
}

func (c *Collector) notify(r RoundReport) {
	for _, cb := range c.roundCallbacks {
		invokeCallbackSafe(cb, r, c.logger)
	}
}

// report builds the public summary of one round.
func report(n uint64, start time.Time, elapsed time.Duration, results []poller.Result, res round.Result) RoundReport {
	r := RoundReport{
		Round:     n,
		StartedAt: start,
		Duration:  elapsed,
		Devices:   len(results),
		Samples:   len(res.Samples),
	}
	for _, pr := range results {
		if !pr.OK() {
			r.Failed++
		}
	}
	if len(res.Warnings) > 0 {
		r.Warnings = make([]Warning, len(res.Warnings))
		for i, w := range res.Warnings {
			r.Warnings[i] = Warning{
				Kind:    WarningKind(w.Kind),
				Address: w.Device.Address,
				Alias:   w.Device.Alias,
				Field:   w.Field,
				Err:     w.Err,
			}
		}
	}
	return r
}

// invokeCallbackSafe calls a round callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(RoundReport), r RoundReport, logger *slog.Logger) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("round callback panicked",
				"panic", p,
				"round", r.Round,
			)
		}
	}()
	cb(r)
}
