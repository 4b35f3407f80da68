package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewRespectsLevel(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	defer Sync(logger)

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn should be enabled")
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Level: "chatty", Format: "console"})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug should be disabled on fallback level")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be enabled on fallback level")
	}
}

func TestComponentNilParent(t *testing.T) {
	t.Parallel()

	logger := Component(nil, "session")
	if logger == nil {
		t.Fatalf("expected nop logger")
	}
	logger.Info("discarded")
	Sync(nil)
}
