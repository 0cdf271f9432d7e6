package meterpulse

import "time"

// WarningKind classifies a round-local problem.
//
// WarningKind is a string type so that it logs and serializes readably.
type WarningKind string

const (
	// WarningDeviceFailed means the device did not answer within its
	// deadline, or answered with an error. It contributes no values.
	WarningDeviceFailed WarningKind = "device_failed"

	// WarningFieldMissing means the reading lacked a catalog field.
	// No value is emitted for that dimension.
	WarningFieldMissing WarningKind = "field_missing"

	// WarningFieldUnparseable means the field was present but not numeric.
	// The dimension is emitted as 0.
	WarningFieldUnparseable WarningKind = "field_unparseable"
)

// String returns the string representation of the kind.
func (k WarningKind) String() string {
	return string(k)
}

// Warning describes one device or field problem encountered in a round.
type Warning struct {
	Kind WarningKind

	// Address and Alias identify the device.
	Address string
	Alias   string

	// Field is the raw reading field, empty for WarningDeviceFailed.
	Field string

	// Err carries the underlying cause when there is one.
	Err error
}

// RoundReport summarizes one completed round.
//
// A RoundReport is delivered to callbacks registered with
// [WithRoundCallback] after every chart of the round has been committed.
// It is a copy; callbacks may keep it.
type RoundReport struct {
	// Round is the 1-based round number.
	Round uint64

	// StartedAt is when polling for the round began.
	StartedAt time.Time

	// Duration covers polling, normalization and emission.
	Duration time.Duration

	// Devices is the number of devices polled; Failed of them did not
	// produce a reading.
	Devices int
	Failed  int

	// Samples is the number of dimension values emitted.
	Samples int

	Warnings []Warning
}
