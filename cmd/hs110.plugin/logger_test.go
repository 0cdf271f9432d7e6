package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr string
	}{
		{"text info", "info", "text", ""},
		{"json debug", "debug", "json", ""},
		{"upper case", "WARN", "JSON", ""},
		{"empty format", "error", "", ""},
		{"bad level", "loud", "text", "invalid log level"},
		{"bad format", "info", "xml", "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.level, tt.format)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("newLogger() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("newLogger() error = %v", err)
			}
			if logger == nil {
				t.Fatal("newLogger() = nil")
			}
		})
	}
}

func TestNewLogger_PluginAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "info", "json")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Info("hello", "component", "poller")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log record is not JSON: %v\n%s", err, buf.String())
	}
	if rec["plugin"] != pluginName {
		t.Errorf("plugin = %v, want %q", rec["plugin"], pluginName)
	}
	if rec["component"] != "poller" {
		t.Errorf("component = %v, want poller", rec["component"])
	}
	if _, ok := rec["time"]; !ok {
		t.Error("record has no timestamp")
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "text")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be enabled at warn level")
	}
}
