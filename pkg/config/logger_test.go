package config

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		logger, err := NewLogger(level)
		if err != nil {
			t.Errorf("level %q: expected no error, got %v", level, err)
			continue
		}
		_ = logger.Sync()
	}

	_, err := NewLogger("verbose")
	if err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewCLILogger(t *testing.T) {
	logger, err := NewCLILogger("debug")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level to be enabled")
	}
}
