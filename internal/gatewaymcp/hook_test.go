package gatewaymcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/redwire/redwire/internal/logging"
)

func newObservedHook(level zapcore.Level) (*zapHook, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return newZapHook(zap.New(core)), logs
}

func TestZapHookLogsWarnOnError(t *testing.T) {
	hook, logs := newObservedHook(zap.DebugLevel)

	hook.OnEvent(context.Background(), logging.Event{
		Step:      "dispatch_embedding",
		RequestID: "req-1",
		At:        time.Now(),
		Err:       errors.New("embedder unavailable"),
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
	if got := entries[0].ContextMap()["step"]; got != "dispatch_embedding" {
		t.Errorf("step field = %v, want dispatch_embedding", got)
	}
	if got := entries[0].ContextMap()["error"]; got != "embedder unavailable" {
		t.Errorf("error field = %v, want embedder unavailable", got)
	}
}

func TestZapHookLogsDebugWithoutError(t *testing.T) {
	hook, logs := newObservedHook(zap.DebugLevel)

	hook.OnEvent(context.Background(), logging.Event{
		Step:      "bump_last_activity",
		RequestID: "req-2",
		At:        time.Now(),
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].Level != zap.DebugLevel {
		t.Errorf("level = %v, want debug", entries[0].Level)
	}
	if _, hasErr := entries[0].ContextMap()["error"]; hasErr {
		t.Error("debug-level event should not carry an error field")
	}
}

func TestZapHookDebugSuppressedAboveDebugLevel(t *testing.T) {
	hook, logs := newObservedHook(zap.InfoLevel)

	hook.OnEvent(context.Background(), logging.Event{
		Step:      "bump_last_activity",
		RequestID: "req-3",
		At:        time.Now(),
	})

	if len(logs.All()) != 0 {
		t.Errorf("got %d entries at info level, want 0 for a debug-only event", len(logs.All()))
	}
}
