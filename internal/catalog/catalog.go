// Package catalog defines the fixed set of chart series collected from each
// smart plug and the unit-conversion policy for raw meter fields.
package catalog

import (
	"errors"
	"fmt"
)

// ChartType is the display style of a chart.
type ChartType string

const (
	ChartLine    ChartType = "line"
	ChartArea    ChartType = "area"
	ChartStacked ChartType = "stacked"
)

// TypePrefix groups every chart under one section in the dashboard.
const TypePrefix = "Smartplugs"

// SeriesDefinition maps one raw device field to one chart.
//
// Every device contributes one dimension to each chart, so a tick produces
// at most one sample per device per definition.
type SeriesDefinition struct {
	ChartID      string // e.g. "Smartplugs.power"
	Name         string // e.g. "Power"; also the dimension ID suffix
	Title        string
	Units        string
	Family       string
	Context      string
	Type         ChartType
	Priority     int
	SourceField  string // field name in the device reading
	ScaleDivisor int64  // raw value is divided by this before emission
}

// fieldDivisors maps known meter fields to the divisor that converts them to
// base units. Milli-unit fields divide by 1000; base-unit fields by 1.
var fieldDivisors = map[string]int64{
	// hardware revision 2+ reports integer milli-units
	"power_mw":   1000,
	"voltage_mv": 1000,
	"current_ma": 1000,
	"total_mwh":  1000,
	"total_wh":   1,

	// hardware revision 1 reports floats in base units
	"power":   1,
	"voltage": 1,
	"current": 1,
	"total":   1,
}

// DivisorFor returns the scale divisor for a raw field name. Fields absent
// from the table are treated as base units and divide by 1.
func DivisorFor(field string) int64 {
	if d, ok := fieldDivisors[field]; ok {
		return d
	}
	return 1
}

var definitions = []SeriesDefinition{
	{
		ChartID:     TypePrefix + ".power",
		Name:        "Power",
		Title:       "Power",
		Units:       "watts",
		Family:      "power",
		Context:     "smartplugpower.power",
		Type:        ChartArea,
		Priority:    90000,
		SourceField: "power_mw",
	},
	{
		ChartID:     TypePrefix + ".voltage",
		Name:        "Voltage",
		Title:       "Voltage",
		Units:       "volts",
		Family:      "voltage",
		Context:     "smartplugpower.voltage",
		Type:        ChartLine,
		Priority:    90010,
		SourceField: "voltage_mv",
	},
	{
		ChartID:     TypePrefix + ".current",
		Name:        "Current",
		Title:       "Current",
		Units:       "amps",
		Family:      "current",
		Context:     "smartplugpower.current",
		Type:        ChartLine,
		Priority:    90020,
		SourceField: "current_ma",
	},
	{
		ChartID:     TypePrefix + ".total-consumption",
		Name:        "Total",
		Title:       "Total consumption",
		Units:       "watt-hours",
		Family:      "consumption",
		Context:     "smartplugpower.total",
		Type:        ChartLine,
		Priority:    90030,
		SourceField: "total_wh",
	},
}

func init() {
	for i := range definitions {
		definitions[i].ScaleDivisor = DivisorFor(definitions[i].SourceField)
	}
	if err := Validate(definitions); err != nil {
		panic("catalog: " + err.Error())
	}
}

// Definitions returns the series definitions in registration order.
//
// The order is stable: charts are declared, and their dimensions fed, in
// exactly this order. The returned slice is a copy.
func Definitions() []SeriesDefinition {
	out := make([]SeriesDefinition, len(definitions))
	copy(out, definitions)
	return out
}

// DimensionID builds the per-device dimension identifier for a chart.
func DimensionID(prefix string, def SeriesDefinition) string {
	return prefix + "_" + def.Name
}

// Validate checks that defs can be declared without collisions.
func Validate(defs []SeriesDefinition) error {
	if len(defs) == 0 {
		return errors.New("no series definitions")
	}

	ids := make(map[string]struct{}, len(defs))
	names := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		if d.ChartID == "" {
			return fmt.Errorf("definitions[%d]: chart id is required", i)
		}
		if d.Name == "" {
			return fmt.Errorf("definitions[%d] (%s): name is required", i, d.ChartID)
		}
		if d.SourceField == "" {
			return fmt.Errorf("definitions[%d] (%s): source field is required", i, d.ChartID)
		}
		if d.ScaleDivisor <= 0 {
			return fmt.Errorf("definitions[%d] (%s): scale divisor must be positive, got %d", i, d.ChartID, d.ScaleDivisor)
		}
		if _, dup := ids[d.ChartID]; dup {
			return fmt.Errorf("definitions[%d]: duplicate chart id %q", i, d.ChartID)
		}
		if _, dup := names[d.Name]; dup {
			return fmt.Errorf("definitions[%d]: duplicate name %q", i, d.Name)
		}
		ids[d.ChartID] = struct{}{}
		names[d.Name] = struct{}{}
	}
	return nil
}
