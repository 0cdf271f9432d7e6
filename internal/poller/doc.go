// Package poller queries a set of devices concurrently once per round.
//
// [Poller.PollAll] fans out one task per device on a bounded result pool,
// gives each task its own deadline, and joins every task before returning.
// A failing, slow or panicking device only ever affects its own [Result]:
// failures are returned as typed [PollError] values, never as a Go error
// from PollAll.
//
// The main components are:
//
//   - [Poller]: the fan-out/fan-in engine
//   - [Result]: the outcome for one device in one round
//   - [PollError]: a device failure with its [ErrorKind]
package poller
