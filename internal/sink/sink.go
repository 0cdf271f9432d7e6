// Package sink defines the declare-then-feed-then-commit output contract and
// its implementations.
//
// A [Sink] is stateful: charts and their dimensions are declared once before
// any value is fed, values are fed per dimension, and Commit flushes one
// chart's buffered values as one time-stamped sample. Sinks are written from a
// single goroutine and are not safe for concurrent use unless documented.
package sink

import (
	"errors"
	"fmt"
)

// ErrUndeclared is returned when a chart or dimension is used before it was
// declared.
var ErrUndeclared = errors.New("sink: chart or dimension not declared")

// Algorithm tells the consumer how to interpret successive values.
type Algorithm string

const (
	Absolute            Algorithm = "absolute"
	Incremental         Algorithm = "incremental"
	PercentageOfAbsRow  Algorithm = "percentage-of-absolute-row"
	PercentageOfIncrRow Algorithm = "percentage-of-incremental-row"
)

// Chart is a named group of series sharing units and display context.
type Chart struct {
	ID       string // "type.id", e.g. "Smartplugs.power"
	Name     string
	Title    string
	Units    string
	Family   string
	Context  string
	Type     string // line, area or stacked
	Priority int
}

// Dimension is one series within a chart.
type Dimension struct {
	ID         string
	Name       string
	Algorithm  Algorithm
	Multiplier int64
	Divisor    int64
}

// Sink consumes chart declarations and per-tick values.
type Sink interface {
	// DeclareChart registers a chart. It must precede any other call for
	// that chart.
	DeclareChart(c Chart) error

	// DeclareDimension registers a dimension of a declared chart.
	DeclareDimension(chartID string, d Dimension) error

	// Feed buffers one value for the current tick.
	Feed(chartID, dimensionID string, value int64) error

	// Commit flushes the chart's buffered values as one sample.
	Commit(chartID string) error
}

// Value is one fed value of a committed sample.
type Value struct {
	Dimension Dimension
	Value     int64
}

// Buffer keeps the declared charts and the values fed since the last commit.
// Sink implementations embed it to share declaration checks.
type Buffer struct {
	order  []string
	charts map[string]*chartState
}

type chartState struct {
	chart   Chart
	dims    []Dimension
	index   map[string]int
	pending map[string]int64
}

// DeclareChart records c. Declaring the same chart twice is an error.
func (b *Buffer) DeclareChart(c Chart) error {
	if c.ID == "" {
		return errors.New("sink: chart id is required")
	}
	if b.charts == nil {
		b.charts = make(map[string]*chartState)
	}
	if _, dup := b.charts[c.ID]; dup {
		return fmt.Errorf("sink: chart %q already declared", c.ID)
	}
	b.charts[c.ID] = &chartState{
		chart:   c,
		index:   make(map[string]int),
		pending: make(map[string]int64),
	}
	b.order = append(b.order, c.ID)
	return nil
}

// DeclareDimension records d under chartID, filling defaults for the
// algorithm, multiplier and divisor.
func (b *Buffer) DeclareDimension(chartID string, d Dimension) (Dimension, error) {
	cs, ok := b.charts[chartID]
	if !ok {
		return d, fmt.Errorf("%w: chart %q", ErrUndeclared, chartID)
	}
	if d.ID == "" {
		return d, fmt.Errorf("sink: chart %q: dimension id is required", chartID)
	}
	if _, dup := cs.index[d.ID]; dup {
		return d, fmt.Errorf("sink: chart %q: dimension %q already declared", chartID, d.ID)
	}
	if d.Algorithm == "" {
		d.Algorithm = Absolute
	}
	if d.Multiplier == 0 {
		d.Multiplier = 1
	}
	if d.Divisor == 0 {
		d.Divisor = 1
	}
	cs.index[d.ID] = len(cs.dims)
	cs.dims = append(cs.dims, d)
	return d, nil
}

// Feed buffers value for the dimension. Feeding the same dimension twice in
// one tick keeps the last value.
func (b *Buffer) Feed(chartID, dimensionID string, value int64) error {
	cs, ok := b.charts[chartID]
	if !ok {
		return fmt.Errorf("%w: chart %q", ErrUndeclared, chartID)
	}
	if _, ok := cs.index[dimensionID]; !ok {
		return fmt.Errorf("%w: dimension %q of chart %q", ErrUndeclared, dimensionID, chartID)
	}
	cs.pending[dimensionID] = value
	return nil
}

// Take returns the chart and the values fed since the last Take, in
// dimension declaration order, and clears them.
func (b *Buffer) Take(chartID string) (Chart, []Value, error) {
	cs, ok := b.charts[chartID]
	if !ok {
		return Chart{}, nil, fmt.Errorf("%w: chart %q", ErrUndeclared, chartID)
	}
	values := make([]Value, 0, len(cs.pending))
	for _, d := range cs.dims {
		if v, ok := cs.pending[d.ID]; ok {
			values = append(values, Value{Dimension: d, Value: v})
		}
	}
	clear(cs.pending)
	return cs.chart, values, nil
}

// Chart returns a declared chart.
func (b *Buffer) Chart(chartID string) (Chart, bool) {
	cs, ok := b.charts[chartID]
	if !ok {
		return Chart{}, false
	}
	return cs.chart, true
}

// Dimensions returns the declared dimensions of a chart in order.
func (b *Buffer) Dimensions(chartID string) []Dimension {
	cs, ok := b.charts[chartID]
	if !ok {
		return nil
	}
	out := make([]Dimension, len(cs.dims))
	copy(out, cs.dims)
	return out
}

// ChartIDs returns the declared chart IDs in declaration order.
func (b *Buffer) ChartIDs() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}
