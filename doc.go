// Package meterpulse collects energy meter readings from a fleet of TP-Link
// HS110 smart plugs and publishes them as charts.
//
// The collector is built to run as a netdata external plugin: every round it
// polls all plugs concurrently, converts their readings to base units and
// writes one sample per chart to stdout in netdata's plugin protocol. The same
// values can also be served as Prometheus gauges and over a small JSON API.
//
// # Quick Start
//
//	c, _ := meterpulse.New(
//	    meterpulse.WithHosts("192.168.0.124", "192.168.0.156"),
//	    meterpulse.WithPeriod(5 * time.Second),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	c.Run(ctx) // blocks until ctx is cancelled
//
// # Charts
//
// Four charts are declared at startup under the "Smartplugs" section: power
// (watts), voltage (volts), current (amps) and total consumption
// (watt-hours). Each plug contributes one dimension per chart, named
// "<alias> (<address>)". The alias is looked up once at startup.
//
// # Rounds
//
// A round polls every plug with a deadline of half the period, so one slow
// or dead plug never delays the others. A plug that fails contributes no
// values for that round; a reading without a field leaves that dimension
// empty; a field that is not a number is emitted as 0. All three are logged
// as warnings and reported to [WithRoundCallback] callbacks. Every chart is
// committed each round.
//
// Rounds start at a fixed cadence: the scheduler sleeps for whatever is left
// of the period. A round that overruns is followed immediately by the next,
// without trying to catch up on missed rounds.
//
// # Architecture
//
// The collector consists of several internal packages (under internal/):
//
//   - internal/device: plug identity, alias resolution and the client contract
//   - internal/kasa: the plug's encrypted TCP protocol
//   - internal/catalog: chart definitions and unit conversion
//   - internal/poller: concurrent polling with per-device deadlines
//   - internal/round: normalization, warnings and sink emission
//   - internal/scheduler: fixed-cadence round loop
//   - internal/sink: netdata and Prometheus outputs
//   - internal/store, internal/server: latest samples over HTTP
//
// The internal packages are not part of the public API and may change
// without notice.
package meterpulse
