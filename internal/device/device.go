package device

import (
	"context"
	"strings"
	"unicode"
)

// UnknownAlias is used when a device's alias cannot be resolved at startup.
const UnknownAlias = "<unknown>"

// Reading is the raw field-name to value mapping returned by one device for
// one round. Values are whatever the device sent: usually json.Number, but a
// misbehaving device may return strings, booleans or nested objects.
type Reading map[string]any

// Client performs the wire exchange with a single device.
//
// Implementations must honour the deadline carried by ctx. Query is called
// once per round; ResolveAlias is called once at startup.
type Client interface {
	// Query returns the device's current meter fields.
	Query(ctx context.Context) (Reading, error)

	// ResolveAlias returns the human-readable name configured on the device.
	ResolveAlias(ctx context.Context) (string, error)
}

// ClientFactory constructs a [Client] for the device at addr.
type ClientFactory func(addr string) Client

// Device is one metering unit in the fleet.
//
// Device is immutable after [Build]; all fields are safe to read from
// concurrent poll goroutines.
type Device struct {
	// Address is the network identifier and the unique key of the device.
	Address string

	// Alias is the display name resolved once at startup, or [UnknownAlias].
	Alias string

	// DimensionPrefix is derived from Address and makes dimension IDs unique
	// per device within a chart.
	DimensionPrefix string

	// Client performs the wire exchange with this device.
	Client Client
}

// DisplayName returns the dimension display name, e.g. "Desk lamp (192.168.0.10)".
func (d Device) DisplayName() string {
	return d.Alias + " (" + d.Address + ")"
}

// String implements fmt.Stringer for log output.
func (d Device) String() string {
	return d.Address + " [" + d.Alias + "]"
}

// DimensionPrefix replaces every character of addr that is not a letter or a
// digit with an underscore: "192.168.0.10" becomes "192_168_0_10".
func DimensionPrefix(addr string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, addr)
}
