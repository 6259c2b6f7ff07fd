package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewBuildsBothModes(t *testing.T) {
	for _, mode := range []string{"production", "development"} {
		log, err := New(mode, "debug")
		if err != nil {
			t.Fatalf("New(%q) error = %v", mode, err)
		}
		log.With("component", "test").Debug("built", "mode", mode)
	}
}
