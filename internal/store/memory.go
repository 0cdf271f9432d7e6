package store

import (
	"sync"
	"time"

	"github.com/jpalmerr/meterpulse/internal/sink"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store] and [sink.Sink].
//
// Declarations and fed values are buffered until Commit, which turns them
// into a [ChartSample], stores it and publishes it. Updates are sent to
// subscribers non-blocking; a subscriber whose buffer (100) is full misses
// the update.
type MemoryStore struct {
	mu      sync.RWMutex
	buf     sink.Buffer
	order   []string
	samples map[string]ChartSample
	now     func() time.Time

	subMu       sync.RWMutex
	subscribers map[chan ChartSample]struct{}
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples:     make(map[string]ChartSample),
		subscribers: make(map[chan ChartSample]struct{}),
		now:         time.Now,
	}
}

// DeclareChart implements [sink.Sink].
func (m *MemoryStore) DeclareChart(c sink.Chart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.buf.DeclareChart(c); err != nil {
		return err
	}
	m.order = append(m.order, c.ID)
	return nil
}

// DeclareDimension implements [sink.Sink].
func (m *MemoryStore) DeclareDimension(chartID string, d sink.Dimension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.buf.DeclareDimension(chartID, d)
	return err
}

// Feed implements [sink.Sink].
func (m *MemoryStore) Feed(chartID, dimensionID string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Feed(chartID, dimensionID, value)
}

// Commit implements [sink.Sink].
func (m *MemoryStore) Commit(chartID string) error {
	m.mu.Lock()
	c, values, err := m.buf.Take(chartID)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	sample := ChartSample{
		Chart:       c.ID,
		Title:       c.Title,
		Units:       c.Units,
		Values:      make([]DimensionValue, 0, len(values)),
		CommittedAt: m.now(),
	}
	for _, v := range values {
		sample.Values = append(sample.Values, DimensionValue{
			ID:    v.Dimension.ID,
			Name:  v.Dimension.Name,
			Value: v.Value,
		})
	}

	m.Update(sample)
	return nil
}

// Update stores a [ChartSample] and notifies all subscribers.
func (m *MemoryStore) Update(sample ChartSample) {
	m.mu.Lock()
	if _, seen := m.samples[sample.Chart]; !seen && !m.declared(sample.Chart) {
		m.order = append(m.order, sample.Chart)
	}
	m.samples[sample.Chart] = sample
	m.mu.Unlock()

	m.notifySubscribers(sample)
}

// declared reports whether chartID is in the declaration order.
// Caller must hold m.mu.
func (m *MemoryStore) declared(chartID string) bool {
	for _, id := range m.order {
		if id == chartID {
			return true
		}
	}
	return false
}

// GetAll returns the latest sample of every committed chart in declaration
// order. Charts never committed are omitted.
func (m *MemoryStore) GetAll() []ChartSample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ChartSample, 0, len(m.samples))
	for _, id := range m.order {
		if s, ok := m.samples[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Subscribe creates a new subscription and returns a channel for receiving
// updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan ChartSample {
	ch := make(chan ChartSample, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan ChartSample) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the sample to all active subscribers without
// blocking the round.
func (m *MemoryStore) notifySubscribers(sample ChartSample) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- sample:
		default:
			// subscriber is slow, drop the message
		}
	}
}

var (
	_ Store     = (*MemoryStore)(nil)
	_ sink.Sink = (*MemoryStore)(nil)
)
