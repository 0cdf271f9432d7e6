// Package scheduler drives collection rounds on a fixed wall-clock cadence.
//
// After each round the scheduler sleeps for the remainder of the period,
// measured from the round's start, so polling latency never accumulates as
// drift. A round that overruns the period is followed immediately by the
// next one: there is no catch-up burst and no skipped round.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/meterpulse/internal/metrics"
)

// DefaultPeriod is used when no valid period is configured.
const DefaultPeriod = time.Second

// Clock abstracts time for the scheduler loop.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case. A non-positive d returns immediately.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock returns a [Clock] backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SleepFor returns max(period - elapsed, 0).
func SleepFor(period, elapsed time.Duration) time.Duration {
	if elapsed >= period {
		return 0
	}
	return period - elapsed
}

// DeviceDeadline returns the per-device poll deadline for a period: half of
// it, so a round where every device times out still ends before the next
// tick is due.
func DeviceDeadline(period time.Duration) time.Duration {
	return period / 2
}

// ParsePeriod parses the collection period from the command line.
//
// A bare integer is a number of seconds, as passed by netdata
// ("update_every"); anything else must be a Go duration such as "500ms".
// An empty, unparseable, out of range, zero or negative value yields [DefaultPeriod] and
// a non-nil warning describing why. The warning is never fatal.
func ParsePeriod(arg string) (time.Duration, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return DefaultPeriod, fmt.Errorf("no period given, using default %s", DefaultPeriod)
	}

	var period time.Duration
	if secs, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if secs > math.MaxInt64/int64(time.Second) {
			return DefaultPeriod, fmt.Errorf("period %q is too large, using default %s", arg, DefaultPeriod)
		}
		period = time.Duration(secs) * time.Second
	} else {
		d, err := time.ParseDuration(arg)
		if err != nil {
			return DefaultPeriod, fmt.Errorf("unable to parse period %q, using default %s", arg, DefaultPeriod)
		}
		period = d
	}

	if period <= 0 {
		return DefaultPeriod, fmt.Errorf("period %q must be positive, using default %s", arg, DefaultPeriod)
	}
	return period, nil
}

// RoundFunc runs one complete round: poll, normalize, feed and commit. A
// returned error stops the scheduler.
type RoundFunc func(ctx context.Context) error

// Scheduler repeats a round every period.
type Scheduler struct {
	period  time.Duration
	clock   Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a [Scheduler]. A nil clock uses [SystemClock]; m may be nil.
func New(period time.Duration, clock Clock, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{period: period, clock: clock, logger: logger, metrics: m}
}

// Period returns the configured period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// Run executes round, sleeps for the rest of the period, and repeats.
//
// Run blocks until ctx is cancelled, returning nil, or until round returns
// an error, which is returned wrapped.
func (s *Scheduler) Run(ctx context.Context, round RoundFunc) error {
	for n := uint64(1); ; n++ {
		if ctx.Err() != nil {
			return nil
		}

		start := s.clock.Now()
		if err := round(ctx); err != nil {
			return fmt.Errorf("round %d: %w", n, err)
		}
		elapsed := s.clock.Now().Sub(start)

		wait := SleepFor(s.period, elapsed)
		overrun := elapsed > s.period
		s.metrics.ObserveRound(elapsed, overrun)

		if overrun {
			s.logger.Warn("round overran period, starting next round immediately",
				"round", n,
				"elapsed", elapsed,
				"period", s.period,
			)
		} else {
			s.logger.Debug("round complete", "round", n, "elapsed", elapsed, "sleep", wait)
		}

		if err := s.clock.Sleep(ctx, wait); err != nil {
			return nil
		}
	}
}
