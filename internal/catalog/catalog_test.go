package catalog

import (
	"strings"
	"testing"
)

func TestDefinitions_Order(t *testing.T) {
	defs := Definitions()

	want := []struct {
		chartID string
		field   string
		typ     ChartType
		prio    int
	}{
		{"Smartplugs.power", "power_mw", ChartArea, 90000},
		{"Smartplugs.voltage", "voltage_mv", ChartLine, 90010},
		{"Smartplugs.current", "current_ma", ChartLine, 90020},
		{"Smartplugs.total-consumption", "total_wh", ChartLine, 90030},
	}

	if len(defs) != len(want) {
		t.Fatalf("len(Definitions()) = %d, want %d", len(defs), len(want))
	}
	for i, w := range want {
		d := defs[i]
		if d.ChartID != w.chartID || d.SourceField != w.field || d.Type != w.typ || d.Priority != w.prio {
			t.Errorf("defs[%d] = {%s %s %s %d}, want {%s %s %s %d}",
				i, d.ChartID, d.SourceField, d.Type, d.Priority, w.chartID, w.field, w.typ, w.prio)
		}
	}
}

func TestDefinitions_ReturnsCopy(t *testing.T) {
	defs := Definitions()
	defs[0].ChartID = "mutated"
	defs[0].ScaleDivisor = 7

	again := Definitions()
	if again[0].ChartID != "Smartplugs.power" || again[0].ScaleDivisor != 1000 {
		t.Errorf("mutation of returned slice leaked into catalog: %+v", again[0])
	}
}

func TestDivisorFor(t *testing.T) {
	tests := []struct {
		field string
		want  int64
	}{
		{"power_mw", 1000},
		{"voltage_mv", 1000},
		{"current_ma", 1000},
		{"total_mwh", 1000},
		{"total_wh", 1},
		{"power", 1},
		{"voltage", 1},
		{"unknown_field", 1},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if got := DivisorFor(tt.field); got != tt.want {
				t.Errorf("DivisorFor(%q) = %d, want %d", tt.field, got, tt.want)
			}
		})
	}
}

func TestDivisorFor_TotalAndIdempotentOverCatalog(t *testing.T) {
	for _, d := range Definitions() {
		first := DivisorFor(d.SourceField)
		for i := 0; i < 3; i++ {
			if got := DivisorFor(d.SourceField); got != first {
				t.Fatalf("DivisorFor(%q) changed between calls: %d then %d", d.SourceField, first, got)
			}
		}
		if d.ScaleDivisor != first {
			t.Errorf("%s: ScaleDivisor = %d, DivisorFor = %d", d.ChartID, d.ScaleDivisor, first)
		}
	}
}

func TestDimensionID(t *testing.T) {
	def := Definitions()[0]
	if got, want := DimensionID("192_168_0_10", def), "192_168_0_10_Power"; got != want {
		t.Errorf("DimensionID() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	valid := SeriesDefinition{ChartID: "a.b", Name: "B", SourceField: "b", ScaleDivisor: 1}

	tests := []struct {
		name    string
		defs    []SeriesDefinition
		wantErr string
	}{
		{"empty", nil, "no series definitions"},
		{"missing chart id", []SeriesDefinition{{Name: "x", SourceField: "x", ScaleDivisor: 1}}, "chart id is required"},
		{"missing field", []SeriesDefinition{{ChartID: "a.x", Name: "x", ScaleDivisor: 1}}, "source field is required"},
		{"zero divisor", []SeriesDefinition{{ChartID: "a.x", Name: "x", SourceField: "x"}}, "divisor must be positive"},
		{"duplicate id", []SeriesDefinition{valid, {ChartID: "a.b", Name: "C", SourceField: "c", ScaleDivisor: 1}}, "duplicate chart id"},
		{"duplicate name", []SeriesDefinition{valid, {ChartID: "a.c", Name: "B", SourceField: "c", ScaleDivisor: 1}}, "duplicate name"},
		{"valid", []SeriesDefinition{valid}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.defs)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
