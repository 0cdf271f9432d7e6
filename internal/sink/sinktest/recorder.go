// Package sinktest provides a recording sink for tests.
package sinktest

import (
	"fmt"
	"sync"

	"github.com/jpalmerr/meterpulse/internal/sink"
)

// Commit is one committed chart sample.
type Commit struct {
	ChartID string
	Values  map[string]int64 // dimension ID to value
}

// Recorder is a [sink.Sink] that keeps every commit in memory.
// It enforces the same declaration rules as the real sinks.
//
// Recorder is safe for concurrent use so tests can inspect it while a
// collector runs.
type Recorder struct {
	mu      sync.Mutex
	buf     sink.Buffer
	commits []Commit

	// FailOn makes the named operation return an error, e.g. "Commit".
	FailOn string
}

// DeclareChart implements [sink.Sink].
func (r *Recorder) DeclareChart(c sink.Chart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("DeclareChart"); err != nil {
		return err
	}
	return r.buf.DeclareChart(c)
}

// DeclareDimension implements [sink.Sink].
func (r *Recorder) DeclareDimension(chartID string, d sink.Dimension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("DeclareDimension"); err != nil {
		return err
	}
	_, err := r.buf.DeclareDimension(chartID, d)
	return err
}

// Feed implements [sink.Sink].
func (r *Recorder) Feed(chartID, dimensionID string, value int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Feed"); err != nil {
		return err
	}
	return r.buf.Feed(chartID, dimensionID, value)
}

// Commit implements [sink.Sink].
func (r *Recorder) Commit(chartID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Commit"); err != nil {
		return err
	}
	_, values, err := r.buf.Take(chartID)
	if err != nil {
		return err
	}
	c := Commit{ChartID: chartID, Values: make(map[string]int64, len(values))}
	for _, v := range values {
		c.Values[v.Dimension.ID] = v.Value
	}
	r.commits = append(r.commits, c)
	return nil
}

func (r *Recorder) fail(op string) error {
	if r.FailOn == op {
		return fmt.Errorf("sinktest: %s failed", op)
	}
	return nil
}

// Commits returns every commit so far.
func (r *Recorder) Commits() []Commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Commit, len(r.commits))
	copy(out, r.commits)
	return out
}

// CommitsFor returns the commits of one chart.
func (r *Recorder) CommitsFor(chartID string) []Commit {
	var out []Commit
	for _, c := range r.Commits() {
		if c.ChartID == chartID {
			out = append(out, c)
		}
	}
	return out
}

// ChartIDs returns declared charts in declaration order.
func (r *Recorder) ChartIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.ChartIDs()
}

// Dimensions returns the declared dimensions of a chart.
func (r *Recorder) Dimensions(chartID string) []sink.Dimension {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Dimensions(chartID)
}

var _ sink.Sink = (*Recorder)(nil)
