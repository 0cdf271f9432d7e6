package round

import (
	"context"
	"log/slog"

	"github.com/jpalmerr/meterpulse/internal/catalog"
	"github.com/jpalmerr/meterpulse/internal/metrics"
	"github.com/jpalmerr/meterpulse/internal/poller"
	"github.com/jpalmerr/meterpulse/internal/sink"
)

// Processor normalizes poll results, reports warnings and emits samples.
type Processor struct {
	defs    []catalog.SeriesDefinition
	sink    sink.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProcessor creates a [Processor] writing to s. m may be nil.
func NewProcessor(defs []catalog.SeriesDefinition, s sink.Sink, logger *slog.Logger, m *metrics.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{defs: defs, sink: s, logger: logger, metrics: m}
}

// Process handles one round. The returned error is a sink failure; device
// and field problems are only logged and counted.
func (p *Processor) Process(ctx context.Context, results []poller.Result) (Result, error) {
	res := Normalize(results, p.defs)
	for _, w := range res.Warnings {
		p.report(ctx, w)
	}
	return res, Emit(p.sink, p.defs, res)
}

func (p *Processor) report(ctx context.Context, w Warning) {
	attrs := []any{
		"kind", string(w.Kind),
		"address", w.Device.Address,
		"alias", w.Device.Alias,
	}

	switch w.Kind {
	case KindDeviceFailed:
		p.logger.WarnContext(ctx, "unable to obtain meter values", append(attrs, "error", w.Err)...)
	case KindFieldMissing:
		p.logger.WarnContext(ctx, "field is not available in meter readings", append(attrs, "field", w.Field)...)
		p.metrics.FieldWarning(w.Field, string(w.Kind))
	case KindFieldUnparseable:
		p.logger.WarnContext(ctx, "unable to parse field value, emitting 0", append(attrs, "field", w.Field, "error", w.Err)...)
		p.metrics.FieldWarning(w.Field, string(w.Kind))
	}
}
