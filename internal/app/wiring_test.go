package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildServiceOptionsCacheDisabled(t *testing.T) {
	opts := buildServiceOptions(Config{CacheDisabled: true, RedisURL: "redis://127.0.0.1:1"}, discardLogger())
	if len(opts) != 1 {
		t.Fatalf("expected only the logger option, got %d", len(opts))
	}
}

func TestBuildServiceOptionsInvalidRedisFallsBackToMemory(t *testing.T) {
	opts := buildServiceOptions(Config{RedisURL: "://bad"}, discardLogger())
	if len(opts) != 2 {
		t.Fatalf("expected logger and memo options, got %d", len(opts))
	}
}

func TestBuildServiceOptionsWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := buildServiceOptions(Config{RedisURL: "redis://" + mr.Addr()}, discardLogger())
	if len(opts) != 2 {
		t.Fatalf("expected logger and memo options, got %d", len(opts))
	}
	// PING from the backend health check, then GET of the memo generation.
	if mr.CommandCount() < 2 {
		t.Fatalf("expected the backend to ping and load its generation, got %d commands", mr.CommandCount())
	}
}

func TestBuildServiceOptionsUnreachableRedisFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	opts := buildServiceOptions(Config{RedisURL: "redis://" + addr}, discardLogger())
	if len(opts) != 2 {
		t.Fatalf("expected logger and memo options, got %d", len(opts))
	}
}

func TestConnectEventsDisabledWithoutURL(t *testing.T) {
	if nc := ConnectEvents(Config{}, "test", discardLogger()); nc != nil {
		t.Fatalf("expected nil connection")
	}
}

func TestConnectEventsUnreachable(t *testing.T) {
	if nc := ConnectEvents(Config{NATSURL: "nats://127.0.0.1:1"}, "test", discardLogger()); nc != nil {
		nc.Close()
		t.Fatalf("expected nil connection for unreachable server")
	}
}
