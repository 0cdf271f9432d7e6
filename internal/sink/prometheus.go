package sink

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus exposes the latest committed value of every dimension as a
// gauge. Values are applied on Commit, so a scrape never sees half a tick.
//
// Prometheus is safe for concurrent use with the registry's collectors.
type Prometheus struct {
	mu    sync.Mutex
	buf   Buffer
	gauge *prometheus.GaugeVec
}

// NewPrometheus registers the dimension gauge on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	return &Prometheus{
		gauge: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "meterpulse",
			Name:      "dimension_value",
			Help:      "Latest committed value of a chart dimension, in chart units",
		}, []string{"chart", "dimension", "name"}),
	}
}

// DeclareChart implements [Sink].
func (p *Prometheus) DeclareChart(c Chart) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.DeclareChart(c)
}

// DeclareDimension implements [Sink].
func (p *Prometheus) DeclareDimension(chartID string, d Dimension) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.buf.DeclareDimension(chartID, d)
	return err
}

// Feed implements [Sink].
func (p *Prometheus) Feed(chartID, dimensionID string, value int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Feed(chartID, dimensionID, value)
}

// Commit implements [Sink]. Dimensions without a value this tick keep their
// previous gauge value.
func (p *Prometheus) Commit(chartID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, values, err := p.buf.Take(chartID)
	if err != nil {
		return err
	}
	for _, v := range values {
		d := v.Dimension
		scaled := float64(v.Value) * float64(d.Multiplier) / float64(d.Divisor)
		p.gauge.WithLabelValues(chartID, d.ID, d.Name).Set(scaled)
	}
	return nil
}

var _ Sink = (*Prometheus)(nil)
