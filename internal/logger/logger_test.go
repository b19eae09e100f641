package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
		level      string
		wantErr    bool
	}{
		{name: "JSON output mode", jsonOutput: true, level: "info"},
		{name: "Console output mode", jsonOutput: false, level: "debug"},
		{name: "Default level", jsonOutput: false, level: ""},
		{name: "Unknown level", jsonOutput: true, level: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.jsonOutput, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if log == nil {
				t.Fatal("New() returned nil logger")
			}
			_ = log.Sync()
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for input, want := range tests {
		got, err := ParseLevel(input)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNamed(t *testing.T) {
	if Named(nil, "cache") == nil {
		t.Error("Named(nil) returned nil")
	}

	log, err := New(false, "info")
	if err != nil {
		t.Fatal(err)
	}
	if Named(log, "cache") == nil {
		t.Error("Named() returned nil")
	}
}
