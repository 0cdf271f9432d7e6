package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/jpalmerr/meterpulse/internal/device"
	"github.com/jpalmerr/meterpulse/internal/metrics"
)

// ErrorKind classifies a device poll failure.
type ErrorKind string

const (
	// KindTimeout means the device did not answer within the deadline.
	KindTimeout ErrorKind = "timeout"

	// KindQuery means the device answered with, or the exchange hit, an error.
	KindQuery ErrorKind = "query"

	// KindPanic means the client code crashed while querying the device.
	KindPanic ErrorKind = "panic"
)

// PollError describes why one device produced no reading this round.
type PollError struct {
	Address string
	Alias   string
	Kind    ErrorKind
	Err     error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll %s [%s]: %s: %v", e.Address, e.Alias, e.Kind, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// Result holds the outcome of polling a single device.
//
// Exactly one of Reading and Err is set.
type Result struct {
	Device  device.Device
	Reading device.Reading
	Err     *PollError
	Latency time.Duration
}

// OK reports whether the poll succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Poller polls devices concurrently with a per-device deadline.
//
// A Poller holds no per-round state and may be reused for every round.
type Poller struct {
	deadline       time.Duration
	maxConcurrency int
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// New creates a [Poller].
//
// Parameters:
//   - deadline: time each device gets to answer, measured per device
//   - maxConcurrency: maximum in-flight queries; 0 polls every device at once
//   - logger: logger for crash reports and failure details
//   - m: self-metrics, may be nil
func New(deadline time.Duration, maxConcurrency int, logger *slog.Logger, m *metrics.Metrics) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		deadline:       deadline,
		maxConcurrency: maxConcurrency,
		logger:         logger,
		metrics:        m,
	}
}

// Deadline returns the per-device deadline.
func (p *Poller) Deadline() time.Duration {
	return p.deadline
}

// PollAll queries every device and returns one [Result] per device.
//
// Results are in completion order. PollAll returns only after every task has
// finished or been abandoned at its deadline, so the call is bounded by
// roughly one deadline per batch of maxConcurrency devices.
func (p *Poller) PollAll(ctx context.Context, devices []device.Device) []Result {
	if len(devices) == 0 {
		return nil
	}

	workers := p.maxConcurrency
	if workers <= 0 || workers > len(devices) {
		workers = len(devices)
	}

	rp := pool.NewWithResults[Result]().WithMaxGoroutines(workers)
	for _, d := range devices {
		rp.Go(func() Result {
			return p.poll(ctx, d)
		})
	}
	return rp.Wait()
}

// outcome is what the query goroutine hands back to its task.
type outcome struct {
	reading   device.Reading
	err       error
	recovered *panics.Recovered
}

// poll runs one device query under its own deadline.
//
// The query runs in a separate goroutine so a client that ignores its context
// is abandoned at the deadline instead of holding up the round.
func (p *Poller) poll(ctx context.Context, d device.Device) Result {
	ctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		var pc panics.Catcher
		pc.Try(func() {
			o.reading, o.err = d.Client.Query(ctx)
		})
		o.recovered = pc.Recovered()
		done <- o
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		o.err = ctx.Err()
	}

	res := Result{Device: d, Latency: time.Since(start)}
	switch {
	case o.recovered != nil:
		res.Err = p.crashed(d, o.recovered)
	case o.err != nil:
		res.Err = classify(ctx, d, o.err)
	case o.reading == nil:
		res.Err = &PollError{Address: d.Address, Alias: d.Alias, Kind: KindQuery, Err: errors.New("empty reading")}
	default:
		res.Reading = o.reading
	}

	kind := ""
	if res.Err != nil {
		kind = string(res.Err.Kind)
		p.logger.Debug("device poll failed",
			"address", d.Address,
			"alias", d.Alias,
			"kind", kind,
			"latency", res.Latency,
			"error", res.Err.Err,
		)
	}
	p.metrics.ObservePoll(d.Address, res.Latency, kind)

	return res
}

// crashed logs the panic with a correlation ID and converts it into a
// [PollError] carrying the same ID.
func (p *Poller) crashed(d device.Device, r *panics.Recovered) *PollError {
	correlationID := uuid.NewString()

	p.logger.Error("device client panic",
		"correlation_id", correlationID,
		"address", d.Address,
		"panic", fmt.Sprintf("%v", r.Value),
		"stack", string(r.Stack),
	)

	return &PollError{
		Address: d.Address,
		Alias:   d.Alias,
		Kind:    KindPanic,
		Err:     fmt.Errorf("client panic (correlation_id: %s)", correlationID),
	}
}

func classify(ctx context.Context, d device.Device, err error) *PollError {
	kind := KindQuery
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &PollError{Address: d.Address, Alias: d.Alias, Kind: kind, Err: err}
}
