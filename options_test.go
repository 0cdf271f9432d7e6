package meterpulse

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/meterpulse/internal/kasa"
	"github.com/jpalmerr/meterpulse/internal/sink/sinktest"
)

func TestNew_Valid(t *testing.T) {
	c, err := New(WithHosts("192.168.0.124"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if len(c.Hosts()) != 1 {
		t.Errorf("len(Hosts()) = %v, want %v", len(c.Hosts()), 1)
	}
}

func TestNew_NoHosts(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("New() expected error for no hosts, got nil")
	}
	if !errors.Is(err, ErrNoDevices) {
		t.Errorf("New() error = %v, want ErrNoDevices", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(WithHosts("10.0.0.1"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.Period() != time.Second {
		t.Errorf("Period() = %v, want 1s", c.Period())
	}
	if c.maxConcurrency != 0 {
		t.Errorf("maxConcurrency = %d, want 0", c.maxConcurrency)
	}
	if c.listen != "" {
		t.Errorf("listen = %q, want empty", c.listen)
	}
	if c.Registry() == nil {
		t.Error("Registry() = nil, want a fresh registry")
	}

	// default client dials the plug port
	client, ok := c.clientFactory("10.0.0.1").(*kasa.Client)
	if !ok {
		t.Fatalf("default client = %T, want *kasa.Client", c.clientFactory("10.0.0.1"))
	}
	if client.Addr() != "10.0.0.1:9999" {
		t.Errorf("client.Addr() = %q, want %q", client.Addr(), "10.0.0.1:9999")
	}
}

func TestWithHosts_Accumulates(t *testing.T) {
	c, err := New(
		WithHosts("10.0.0.1"),
		WithHosts("10.0.0.2", "10.0.0.3"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	got := c.Hosts()
	if len(got) != len(want) {
		t.Fatalf("len(Hosts()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Hosts()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHosts_Immutability(t *testing.T) {
	c, err := New(WithHosts("10.0.0.1"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hosts := c.Hosts()
	hosts[0] = "mutated"

	if c.Hosts()[0] != "10.0.0.1" {
		t.Errorf("Hosts()[0] = %q after mutation, want %q", c.Hosts()[0], "10.0.0.1")
	}
}

func TestWithPort(t *testing.T) {
	c, err := New(WithHosts("10.0.0.1", "10.0.0.2:10000"), WithPort(9998))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		host string
		want string
	}{
		{"10.0.0.1", "10.0.0.1:9998"},
		{"10.0.0.2:10000", "10.0.0.2:10000"},
	}
	for _, tt := range tests {
		client := c.clientFactory(tt.host).(*kasa.Client)
		if client.Addr() != tt.want {
			t.Errorf("client(%q).Addr() = %q, want %q", tt.host, client.Addr(), tt.want)
		}
	}
}

func TestOptions_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		opt         Option
		wantErrLike string
	}{
		{"zero period", WithPeriod(0), "period must be positive"},
		{"negative period", WithPeriod(-time.Second), "period must be positive"},
		{"port zero", WithPort(0), "port must be between"},
		{"port too large", WithPort(65536), "port must be between"},
		{"negative concurrency", WithMaxConcurrency(-1), "max concurrency cannot be negative"},
		{"negative resolve timeout", WithResolveTimeout(-time.Second), "resolve timeout cannot be negative"},
		{"nil output", WithOutput(nil), "output writer cannot be nil"},
		{"nil sink", WithSink(nil), "sink cannot be nil"},
		{"nil factory", WithClientFactory(nil), "client factory cannot be nil"},
		{"nil callback", WithRoundCallback(nil), "round callback cannot be nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithHosts("10.0.0.1"), tt.opt)
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("New() error = %q, want to contain %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}

func TestOptions_Valid(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := &sinktest.Recorder{}
	var out bytes.Buffer

	c, err := New(
		WithHosts("10.0.0.1"),
		WithPeriod(5*time.Second),
		WithMaxConcurrency(4),
		WithResolveTimeout(2*time.Second),
		WithListen("127.0.0.1:0"),
		WithOutput(&out),
		WithSink(rec),
		WithRegistry(reg),
		WithRoundCallback(func(RoundReport) {}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.Period() != 5*time.Second {
		t.Errorf("Period() = %v, want 5s", c.Period())
	}
	if c.maxConcurrency != 4 {
		t.Errorf("maxConcurrency = %d, want 4", c.maxConcurrency)
	}
	if c.resolveTimeout != 2*time.Second {
		t.Errorf("resolveTimeout = %v, want 2s", c.resolveTimeout)
	}
	if c.listen != "127.0.0.1:0" {
		t.Errorf("listen = %q, want %q", c.listen, "127.0.0.1:0")
	}
	if c.out != &out {
		t.Error("out was not set by WithOutput")
	}
	if len(c.sinks) != 1 {
		t.Errorf("len(sinks) = %d, want 1", len(c.sinks))
	}
	if c.Registry() != reg || c.ownRegistry {
		t.Error("Registry() should be the registry passed to WithRegistry")
	}
	if len(c.roundCallbacks) != 1 {
		t.Errorf("len(roundCallbacks) = %d, want 1", len(c.roundCallbacks))
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	c, err := New(WithHosts("10.0.0.1"), WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.logger != logger {
		t.Error("WithLogger() did not set the logger")
	}
}

func TestWithLogger_DefaultsToSlogDefault(t *testing.T) {
	c, err := New(WithHosts("10.0.0.1"), WithLogger(nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
}
