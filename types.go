package meterpulse

import (
	"github.com/jpalmerr/meterpulse/internal/device"
	"github.com/jpalmerr/meterpulse/internal/scheduler"
	"github.com/jpalmerr/meterpulse/internal/sink"
)

// ErrNoDevices is returned by [New] when no host is configured.
var ErrNoDevices = device.ErrNoDevices

// DeviceClient performs the wire exchange with one plug. See [WithClientFactory].
type DeviceClient = device.Client

// Reading is the raw field-name to value mapping returned by one query.
type Reading = device.Reading

// Sink receives chart declarations, values and commits. See [WithSink].
type Sink = sink.Sink

// Chart and Dimension are the declarations a [Sink] receives.
type (
	Chart     = sink.Chart
	Dimension = sink.Dimension
)

// Clock is the scheduler's time source. See [WithClock].
type Clock = scheduler.Clock
