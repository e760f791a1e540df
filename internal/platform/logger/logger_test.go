package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewInstallsGlobal(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	log, err := New("development", "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if zap.L() != log {
		t.Fatalf("global logger not replaced")
	}
	if log.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info enabled at warn level")
	}
	if !log.Core().Enabled(zap.WarnLevel) {
		t.Fatalf("warn disabled at warn level")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("production", "loud"); err == nil {
		t.Fatalf("New: expected error for unknown level")
	}
}
