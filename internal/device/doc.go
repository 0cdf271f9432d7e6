// Package device holds the fleet of metering devices polled by meterpulse.
//
// This package is internal to meterpulse. It defines the contract a device
// client must satisfy and builds the immutable device set once at startup.
//
// The main components are:
//
//   - [Client]: queries one device for a [Reading] and resolves its alias
//   - [Device]: address, alias, dimension prefix and client of one device
//   - [Build]: constructs the ordered device set from configured addresses
//
// Devices are read-only after [Build] returns and may be shared freely
// between goroutines.
package device
