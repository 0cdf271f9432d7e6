package store

import "time"

// DimensionValue is one dimension's value in a committed sample.
type DimensionValue struct {
	// ID is the dimension identifier, e.g. "192_168_0_10_Power".
	ID string `json:"id"`

	// Name is the display name, e.g. "Desk lamp (192.168.0.10)".
	Name string `json:"name"`

	// Value is the value in chart units.
	Value int64 `json:"value"`
}

// ChartSample is the latest committed sample of one chart.
//
// ChartSample is optimized for JSON serialization (used by the REST API and
// SSE). Dimensions without a value in the round are absent from Values.
type ChartSample struct {
	// Chart is the chart identifier, e.g. "Smartplugs.power".
	Chart string `json:"chart"`

	// Title is the human-readable chart title.
	Title string `json:"title"`

	// Units is the unit label of every value.
	Units string `json:"units"`

	// Values holds the dimensions fed this round in declaration order.
	Values []DimensionValue `json:"values"`

	// CommittedAt is the time of the commit.
	CommittedAt time.Time `json:"committed_at"`
}

// Store defines the interface for reading and subscribing to chart samples.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Update stores a sample and notifies all subscribers. Samples are
	// keyed by Chart, so an update replaces the previous sample.
	Update(sample ChartSample)

	// GetAll returns the latest sample of every chart in declaration order.
	// The returned slice is a snapshot.
	GetAll() []ChartSample

	// Subscribe returns a channel that receives every update.
	// The channel is buffered; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan ChartSample

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan ChartSample)
}
