package round

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jpalmerr/meterpulse/internal/catalog"
	"github.com/jpalmerr/meterpulse/internal/device"
	"github.com/jpalmerr/meterpulse/internal/metrics"
	"github.com/jpalmerr/meterpulse/internal/poller"
	"github.com/jpalmerr/meterpulse/internal/sink/sinktest"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func plug(addr string) device.Device {
	return device.Device{
		Address:         addr,
		Alias:           "plug",
		DimensionPrefix: device.DimensionPrefix(addr),
	}
}

func polled(d device.Device, r device.Reading) poller.Result {
	return poller.Result{Device: d, Reading: r}
}

func failed(d device.Device) poller.Result {
	return poller.Result{Device: d, Err: &poller.PollError{
		Address: d.Address, Alias: d.Alias, Kind: poller.KindTimeout, Err: context.DeadlineExceeded,
	}}
}

func defsFor(fields ...string) []catalog.SeriesDefinition {
	var out []catalog.SeriesDefinition
	for _, f := range fields {
		out = append(out, catalog.SeriesDefinition{
			ChartID:      "t." + f,
			Name:         f,
			SourceField:  f,
			ScaleDivisor: catalog.DivisorFor(f),
		})
	}
	return out
}

func sampleMap(res Result) map[DimensionKey]int64 {
	out := make(map[DimensionKey]int64, len(res.Samples))
	for _, s := range res.Samples {
		out[s.Key] = s.Value
	}
	return out
}

// TestNormalize_MilliUnits covers the 1500 mW → 1 W and 2300 mV → 2 V case.
func TestNormalize_MilliUnits(t *testing.T) {
	d := plug("10.0.0.1")
	defs := defsFor("power_mw", "voltage_mv")
	res := Normalize([]poller.Result{
		polled(d, device.Reading{"power_mw": json.Number("1500"), "voltage_mv": json.Number("2300")}),
	}, defs)

	if len(res.Warnings) != 0 {
		t.Fatalf("Warnings = %v, want none", res.Warnings)
	}
	got := sampleMap(res)
	if v := got[DimensionKey{"t.power_mw", "10_0_0_1_power_mw"}]; v != 1 {
		t.Errorf("power = %d, want 1", v)
	}
	if v := got[DimensionKey{"t.voltage_mv", "10_0_0_1_voltage_mv"}]; v != 2 {
		t.Errorf("voltage = %d, want 2", v)
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		divisor int64
		want    int64
		ok      bool
	}{
		{"json int", json.Number("230412"), 1000, 230, true},
		{"json float", json.Number("12.9"), 1, 12, true},
		{"json negative truncates toward zero", json.Number("-1500"), 1000, -1, true},
		{"float negative truncates toward zero", -2.7, 1, -2, true},
		{"float milli", 1999.0, 1000, 1, true},
		{"int", 42, 1, 42, true},
		{"int64", int64(7000), 1000, 7, true},
		{"uint64 overflow", uint64(math.MaxUint64), 1, 0, false},
		{"zero divisor treated as 1", 5, 0, 5, true},
		{"string", "12", 1, 0, false},
		{"bool", true, 1, 0, false},
		{"nil", nil, 1, 0, false},
		{"object", map[string]any{"v": 1}, 1, 0, false},
		{"NaN", math.NaN(), 1, 0, false},
		{"Inf", math.Inf(1), 1, 0, false},
		{"huge float", 1e300, 1, 0, false},
		{"bad json number", json.Number("abc"), 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scale(tt.raw, tt.divisor)
			if ok != tt.ok || got != tt.want {
				t.Errorf("scale(%v, %d) = (%d, %v), want (%d, %v)", tt.raw, tt.divisor, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// TestNormalize_MissingVersusUnparseable verifies a missing field emits
// nothing while a non-numeric field emits 0, with distinct warning kinds.
func TestNormalize_MissingVersusUnparseable(t *testing.T) {
	d := plug("10.0.0.1")
	defs := defsFor("power_mw", "voltage_mv", "current_ma")
	res := Normalize([]poller.Result{
		polled(d, device.Reading{
			"power_mw":   json.Number("5000"),
			"voltage_mv": "n/a",
		}),
	}, defs)

	got := sampleMap(res)
	if len(got) != 2 {
		t.Fatalf("samples = %v, want power and voltage only", got)
	}
	if v, ok := got[DimensionKey{"t.voltage_mv", "10_0_0_1_voltage_mv"}]; !ok || v != 0 {
		t.Errorf("voltage sample = (%d, %v), want (0, true)", v, ok)
	}
	if _, ok := got[DimensionKey{"t.current_ma", "10_0_0_1_current_ma"}]; ok {
		t.Error("current_ma sample emitted for missing field")
	}

	kinds := map[string]WarningKind{}
	for _, w := range res.Warnings {
		kinds[w.Field] = w.Kind
	}
	if kinds["voltage_mv"] != KindFieldUnparseable {
		t.Errorf("voltage_mv warning = %q, want %q", kinds["voltage_mv"], KindFieldUnparseable)
	}
	if kinds["current_ma"] != KindFieldMissing {
		t.Errorf("current_ma warning = %q, want %q", kinds["current_ma"], KindFieldMissing)
	}
}

// TestNormalize_DeviceFailureIsolated verifies a failed device contributes
// one warning and no samples while others are unaffected.
func TestNormalize_DeviceFailureIsolated(t *testing.T) {
	defs := catalog.Definitions()
	good := plug("10.0.0.1")
	bad := plug("10.0.0.2")

	res := Normalize([]poller.Result{
		failed(bad),
		polled(good, device.Reading{
			"power_mw":   json.Number("12000"),
			"voltage_mv": json.Number("230000"),
			"current_ma": json.Number("52"),
			"total_wh":   json.Number("1234"),
		}),
	}, defs)

	if len(res.Warnings) != 1 || res.Warnings[0].Kind != KindDeviceFailed {
		t.Fatalf("Warnings = %v, want one device_failed", res.Warnings)
	}
	if res.Warnings[0].Device.Address != bad.Address {
		t.Errorf("warning device = %s, want %s", res.Warnings[0].Device.Address, bad.Address)
	}
	if len(res.Samples) != len(defs) {
		t.Fatalf("len(Samples) = %d, want %d", len(res.Samples), len(defs))
	}
	for _, s := range res.Samples {
		if !strings.HasPrefix(s.Key.DimensionID, good.DimensionPrefix+"_") {
			t.Errorf("sample %v belongs to the wrong device", s.Key)
		}
	}
	if v := sampleMap(res)[DimensionKey{"Smartplugs.current", "10_0_0_1_Current"}]; v != 0 {
		t.Errorf("current = %d, want 0 (52 mA truncates)", v)
	}
}

func TestDeclareAndEmit(t *testing.T) {
	defs := catalog.Definitions()
	devices := []device.Device{plug("10.0.0.1"), plug("10.0.0.2")}
	rec := &sinktest.Recorder{}

	if err := Declare(rec, defs, devices); err != nil {
		t.Fatalf("Declare() error = %v", err)
	}

	ids := rec.ChartIDs()
	for i, def := range defs {
		if ids[i] != def.ChartID {
			t.Errorf("chart[%d] = %s, want %s", i, ids[i], def.ChartID)
		}
		dims := rec.Dimensions(def.ChartID)
		if len(dims) != 2 || dims[0].Name != "plug (10.0.0.1)" || dims[1].ID != "10_0_0_2_"+def.Name {
			t.Errorf("%s dimensions = %+v", def.ChartID, dims)
		}
		if dims[0].Divisor != 1 {
			t.Errorf("%s divisor = %d, want 1", def.ChartID, dims[0].Divisor)
		}
	}

	res := Normalize([]poller.Result{
		polled(devices[0], device.Reading{"power_mw": json.Number("3000")}),
		failed(devices[1]),
	}, defs)
	if err := Emit(rec, defs, res); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	commits := rec.Commits()
	if len(commits) != len(defs) {
		t.Fatalf("commits = %d, want one per chart (%d)", len(commits), len(defs))
	}
	if v := commits[0].Values["10_0_0_1_Power"]; v != 3 {
		t.Errorf("power = %d, want 3", v)
	}
	if len(commits[1].Values) != 0 {
		t.Errorf("voltage commit values = %v, want none (field missing)", commits[1].Values)
	}
}

func TestEmit_SinkErrorReturned(t *testing.T) {
	defs := catalog.Definitions()
	rec := &sinktest.Recorder{}
	_ = Declare(rec, defs, []device.Device{plug("a")})
	rec.FailOn = "Commit"

	err := Emit(rec, defs, Result{})
	if err == nil || !strings.Contains(err.Error(), "commit Smartplugs.power") {
		t.Fatalf("Emit() error = %v, want commit error", err)
	}
}

func TestDeclare_UndeclaredFeed(t *testing.T) {
	rec := &sinktest.Recorder{}
	err := Emit(rec, defsFor("power_mw"), Result{Samples: []Sample{{Key: DimensionKey{"t.power_mw", "x"}, Value: 1}}})
	if err == nil {
		t.Fatal("Emit() error = nil, want undeclared error")
	}
}

// TestProcessor_LogsDistinguishMissingAndUnparseable verifies operators can
// tell a missing field from a bad one in the log stream.
func TestProcessor_LogsDistinguishMissingAndUnparseable(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	m := metrics.New(prometheus.NewRegistry())

	defs := defsFor("power_mw", "voltage_mv")
	d := plug("10.0.0.1")
	rec := &sinktest.Recorder{}
	if err := Declare(rec, defs, []device.Device{d}); err != nil {
		t.Fatalf("Declare() error = %v", err)
	}

	p := NewProcessor(defs, rec, logger, m)
	_, err := p.Process(context.Background(), []poller.Result{
		polled(d, device.Reading{"voltage_mv": false}),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	out := logs.String()
	if !strings.Contains(out, "kind=field_missing") || !strings.Contains(out, "field is not available") {
		t.Errorf("log missing field_missing entry:\n%s", out)
	}
	if !strings.Contains(out, "kind=field_unparseable") || !strings.Contains(out, "emitting 0") {
		t.Errorf("log missing field_unparseable entry:\n%s", out)
	}
	if got := testutil.ToFloat64(m.FieldWarnings.WithLabelValues("voltage_mv", "field_unparseable")); got != 1 {
		t.Errorf("unparseable counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FieldWarnings.WithLabelValues("power_mw", "field_missing")); got != 1 {
		t.Errorf("missing counter = %v, want 1", got)
	}
}

func TestProcessor_DeviceFailureLoggedOnce(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	defs := catalog.Definitions()
	d := plug("10.0.0.9")
	rec := &sinktest.Recorder{}
	_ = Declare(rec, defs, []device.Device{d})

	res, err := NewProcessor(defs, rec, logger, nil).Process(context.Background(), []poller.Result{failed(d)})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %d, want 1", len(res.Warnings))
	}
	if n := strings.Count(logs.String(), "unable to obtain meter values"); n != 1 {
		t.Errorf("device failure logged %d times, want 1", n)
	}
	if !errors.Is(res.Warnings[0].Err, context.DeadlineExceeded) {
		t.Errorf("warning error = %v, want to wrap DeadlineExceeded", res.Warnings[0].Err)
	}
}

func TestProcessor_QuietLogger(t *testing.T) {
	defs := defsFor("power_mw")
	rec := &sinktest.Recorder{}
	d := plug("x")
	_ = Declare(rec, defs, []device.Device{d})
	if _, err := NewProcessor(defs, rec, testLogger(), nil).Process(context.Background(), nil); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if n := len(rec.CommitsFor("t.power_mw")); n != 1 {
		t.Errorf("commits = %d, want 1 even with no results", n)
	}
}
