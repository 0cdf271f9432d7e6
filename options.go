package meterpulse

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/meterpulse/internal/device"
)

// collectorConfig holds mutable state during Collector construction.
type collectorConfig struct {
	hosts          []string
	port           int
	period         time.Duration
	maxConcurrency int
	resolveTimeout time.Duration
	listen         string
	out            io.Writer
	sinks          []Sink
	registry       *prometheus.Registry
	clientFactory  device.ClientFactory
	clock          Clock
	logger         *slog.Logger
	roundCallbacks []func(RoundReport)
}

// Option is a function that configures a [Collector] during construction.
//
// Option implements the functional options pattern. Options return an error
// if validation fails.
type Option func(*collectorConfig) error

// WithHosts adds plug addresses to the fleet, in display order.
//
// Can be called multiple times; addresses accumulate. An address may carry
// its own port ("10.0.0.5:10000").
//
// Example:
//
//	c, err := meterpulse.New(
//	    meterpulse.WithHosts("192.168.0.124", "192.168.0.156"),
//	)
func WithHosts(hosts ...string) Option {
	return func(cfg *collectorConfig) error {
		cfg.hosts = append(cfg.hosts, hosts...)
		return nil
	}
}

// WithPort sets the TCP port used for hosts that do not carry one.
// Defaults to 9999.
func WithPort(port int) Option {
	return func(cfg *collectorConfig) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		cfg.port = port
		return nil
	}
}

// WithPeriod sets the round period. Defaults to one second.
//
// Each device gets half the period to answer.
//
// Returns an error if the duration is zero or negative.
func WithPeriod(d time.Duration) Option {
	return func(cfg *collectorConfig) error {
		if d <= 0 {
			return errors.New("period must be positive")
		}
		cfg.period = d
		return nil
	}
}

// WithMaxConcurrency caps the number of in-flight device queries.
//
// Defaults to 0, which queries every device at once. A cap smaller than the
// fleet makes a round take up to one deadline per batch.
func WithMaxConcurrency(n int) Option {
	return func(cfg *collectorConfig) error {
		if n < 0 {
			return fmt.Errorf("max concurrency cannot be negative, got %d", n)
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithResolveTimeout bounds the startup alias lookup of each device.
// Defaults to the per-device poll deadline.
func WithResolveTimeout(d time.Duration) Option {
	return func(cfg *collectorConfig) error {
		if d < 0 {
			return errors.New("resolve timeout cannot be negative")
		}
		cfg.resolveTimeout = d
		return nil
	}
}

// WithListen serves the readings dashboard, /metrics, /api/readings,
// /api/sse and /healthz on addr.
// An empty addr disables the HTTP server, which is the default.
func WithListen(addr string) Option {
	return func(cfg *collectorConfig) error {
		cfg.listen = addr
		return nil
	}
}

// WithOutput sets where the netdata protocol stream is written.
// Defaults to os.Stdout, which is where netdata reads plugin output.
func WithOutput(w io.Writer) Option {
	return func(cfg *collectorConfig) error {
		if w == nil {
			return errors.New("output writer cannot be nil")
		}
		cfg.out = w
		return nil
	}
}

// WithSink adds a sink that receives every declaration, value and commit
// alongside the built-in ones. A sink error stops the collector.
func WithSink(s Sink) Option {
	return func(cfg *collectorConfig) error {
		if s == nil {
			return errors.New("sink cannot be nil")
		}
		cfg.sinks = append(cfg.sinks, s)
		return nil
	}
}

// WithRegistry sets the Prometheus registry that receives dimension gauges
// and self-metrics. Defaults to a fresh registry per collector.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(cfg *collectorConfig) error {
		cfg.registry = reg
		return nil
	}
}

// WithClientFactory replaces the smart plug client, e.g. with a fake in
// tests or with a client for a different protocol.
func WithClientFactory(f func(addr string) DeviceClient) Option {
	return func(cfg *collectorConfig) error {
		if f == nil {
			return errors.New("client factory cannot be nil")
		}
		cfg.clientFactory = device.ClientFactory(f)
		return nil
	}
}

// WithClock replaces the time source of the scheduler.
func WithClock(c Clock) Option {
	return func(cfg *collectorConfig) error {
		cfg.clock = c
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
//
// Component loggers derived from it carry a "component" attribute.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *collectorConfig) error {
		cfg.logger = logger
		return nil
	}
}

// WithRoundCallback registers a function called after every round.
//
// Callbacks run synchronously on the round goroutine, in registration order,
// and add to the round's duration. A panicking callback is logged and does
// not stop the collector.
func WithRoundCallback(cb func(RoundReport)) Option {
	return func(cfg *collectorConfig) error {
		if cb == nil {
			return errors.New("round callback cannot be nil")
		}
		cfg.roundCallbacks = append(cfg.roundCallbacks, cb)
		return nil
	}
}
