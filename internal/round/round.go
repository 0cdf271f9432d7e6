// Package round turns one round of poll results into chart samples and
// emits them to a sink.
//
// Device and field errors never leave this package as Go errors: they become
// [Warning] values in the [Result]. Only sink failures are returned.
package round

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jpalmerr/meterpulse/internal/catalog"
	"github.com/jpalmerr/meterpulse/internal/device"
	"github.com/jpalmerr/meterpulse/internal/poller"
	"github.com/jpalmerr/meterpulse/internal/sink"
)

// WarningKind classifies a round-local problem.
type WarningKind string

const (
	// KindDeviceFailed means the device produced no reading this round.
	KindDeviceFailed WarningKind = "device_failed"

	// KindFieldMissing means the reading lacked a catalog field; no sample
	// is emitted for that dimension.
	KindFieldMissing WarningKind = "field_missing"

	// KindFieldUnparseable means the field was present but not a number;
	// a sample of 0 is emitted for that dimension.
	KindFieldUnparseable WarningKind = "field_unparseable"
)

// Warning is one recoverable problem found while normalizing a round.
type Warning struct {
	Kind   WarningKind
	Device device.Device
	Field  string // empty for device failures
	Err    error
}

func (w Warning) String() string {
	if w.Field == "" {
		return fmt.Sprintf("%s %s: %v", w.Kind, w.Device, w.Err)
	}
	return fmt.Sprintf("%s %s field %q: %v", w.Kind, w.Device, w.Field, w.Err)
}

// DimensionKey identifies one series across all charts.
type DimensionKey struct {
	ChartID     string
	DimensionID string
}

// Sample is one normalized value for one dimension.
type Sample struct {
	Key   DimensionKey
	Value int64
}

// Result is everything one round produced. It lives for one tick only.
type Result struct {
	Samples  []Sample
	Warnings []Warning
}

// Normalize converts poll results into samples using defs.
//
// For each successful reading and each definition, a present numeric field
// yields raw/ScaleDivisor truncated toward zero, a missing field yields a
// warning and no sample, and a non-numeric field yields a warning and a
// sample of 0. A failed device yields exactly one warning and no samples.
func Normalize(results []poller.Result, defs []catalog.SeriesDefinition) Result {
	var out Result
	for _, r := range results {
		if !r.OK() {
			out.Warnings = append(out.Warnings, Warning{
				Kind:   KindDeviceFailed,
				Device: r.Device,
				Err:    r.Err,
			})
			continue
		}

		for _, def := range defs {
			key := DimensionKey{
				ChartID:     def.ChartID,
				DimensionID: catalog.DimensionID(r.Device.DimensionPrefix, def),
			}

			raw, ok := r.Reading[def.SourceField]
			if !ok {
				out.Warnings = append(out.Warnings, Warning{
					Kind:   KindFieldMissing,
					Device: r.Device,
					Field:  def.SourceField,
					Err:    errors.New("field not present in reading"),
				})
				continue
			}

			value, ok := scale(raw, def.ScaleDivisor)
			if !ok {
				out.Warnings = append(out.Warnings, Warning{
					Kind:   KindFieldUnparseable,
					Device: r.Device,
					Field:  def.SourceField,
					Err:    fmt.Errorf("value %v (%T) is not numeric", raw, raw),
				})
				value = 0
			}
			out.Samples = append(out.Samples, Sample{Key: key, Value: value})
		}
	}
	return out
}

// scale divides a raw reading value by divisor, truncating toward zero.
// It reports false for values that are not finite numbers.
func scale(raw any, divisor int64) (int64, bool) {
	if divisor <= 0 {
		divisor = 1
	}

	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n / divisor, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return scaleFloat(f, divisor)
	case float64:
		return scaleFloat(v, divisor)
	case float32:
		return scaleFloat(float64(v), divisor)
	case int:
		return int64(v) / divisor, true
	case int64:
		return v / divisor, true
	case int32:
		return int64(v) / divisor, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v) / divisor, true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v) / divisor, true
	case uint32:
		return int64(v) / divisor, true
	default:
		return 0, false
	}
}

func scaleFloat(f float64, divisor int64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	q := math.Trunc(f / float64(divisor))
	if q >= math.MaxInt64 || q < math.MinInt64 {
		return 0, false
	}
	return int64(q), true
}

// Chart converts a series definition into a sink chart declaration.
func Chart(def catalog.SeriesDefinition) sink.Chart {
	return sink.Chart{
		ID:       def.ChartID,
		Name:     def.Name,
		Title:    def.Title,
		Units:    def.Units,
		Family:   def.Family,
		Context:  def.Context,
		Type:     string(def.Type),
		Priority: def.Priority,
	}
}

// Declare registers every chart in catalog order and, per chart, one
// dimension per device in device order.
//
// Values are scaled by [Normalize], so dimensions are declared with a
// divisor of 1.
func Declare(s sink.Sink, defs []catalog.SeriesDefinition, devices []device.Device) error {
	for _, def := range defs {
		if err := s.DeclareChart(Chart(def)); err != nil {
			return fmt.Errorf("declare chart %s: %w", def.ChartID, err)
		}
		for _, d := range devices {
			dim := sink.Dimension{
				ID:         catalog.DimensionID(d.DimensionPrefix, def),
				Name:       d.DisplayName(),
				Algorithm:  sink.Absolute,
				Multiplier: 1,
				Divisor:    1,
			}
			if err := s.DeclareDimension(def.ChartID, dim); err != nil {
				return fmt.Errorf("declare dimension %s of %s: %w", dim.ID, def.ChartID, err)
			}
		}
	}
	return nil
}

// Emit feeds every sample and then commits every chart in defs order. A
// chart with no samples this round is still committed.
func Emit(s sink.Sink, defs []catalog.SeriesDefinition, res Result) error {
	for _, smp := range res.Samples {
		if err := s.Feed(smp.Key.ChartID, smp.Key.DimensionID, smp.Value); err != nil {
			return fmt.Errorf("feed %s/%s: %w", smp.Key.ChartID, smp.Key.DimensionID, err)
		}
	}
	for _, def := range defs {
		if err := s.Commit(def.ChartID); err != nil {
			return fmt.Errorf("commit %s: %w", def.ChartID, err)
		}
	}
	return nil
}
