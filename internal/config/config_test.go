package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_ParseEnvironment(t *testing.T) {

	clear := func(t *testing.T) {
		t.Helper()
		for _, key := range []string{
			"BOOKING_HTTP_PORT",
			"BOOKING_STORE",
			"BOOKING_SQLITE_DSN",
			"BOOKING_CHANNEL",
			"BOOKING_REDIS_ADDR",
			"BOOKING_PAST_GRACE",
			"BOOKING_POLL_INTERVAL",
		} {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}
	}

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clear(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Store != StoreMemory {
			t.Fatalf("expected default store %q, got %q", StoreMemory, cfg.Store)
		}
		if cfg.SQLiteDSN != "file:booking.db?_pragma=foreign_keys(1)" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.Channel != ChannelMemory {
			t.Fatalf("expected default channel %q, got %q", ChannelMemory, cfg.Channel)
		}
		if cfg.PastGrace != 5*time.Minute {
			t.Fatalf("expected default past grace 5m, got %s", cfg.PastGrace)
		}
		if cfg.PollInterval != 5*time.Second {
			t.Fatalf("expected default poll interval 5s, got %s", cfg.PollInterval)
		}
	})

	t.Run("parses explicit values", func(t *testing.T) {
		clear(t)
		t.Setenv("BOOKING_HTTP_PORT", "9090")
		t.Setenv("BOOKING_STORE", "sqlite")
		t.Setenv("BOOKING_SQLITE_DSN", "file:/tmp/booking.db")
		t.Setenv("BOOKING_CHANNEL", "redis")
		t.Setenv("BOOKING_REDIS_ADDR", "localhost:6379")
		t.Setenv("BOOKING_PAST_GRACE", "1m")
		t.Setenv("BOOKING_POLL_INTERVAL", "250ms")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.Store != StoreSQLite {
			t.Fatalf("expected store sqlite, got %q", cfg.Store)
		}
		if cfg.SQLiteDSN != "file:/tmp/booking.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.Channel != ChannelRedis {
			t.Fatalf("expected channel redis, got %q", cfg.Channel)
		}
		if cfg.RedisAddr != "localhost:6379" {
			t.Fatalf("unexpected redis address: %q", cfg.RedisAddr)
		}
		if cfg.PastGrace != time.Minute {
			t.Fatalf("expected past grace 1m, got %s", cfg.PastGrace)
		}
		if cfg.PollInterval != 250*time.Millisecond {
			t.Fatalf("expected poll interval 250ms, got %s", cfg.PollInterval)
		}
	})

	t.Run("errors when redis channel lacks an address", func(t *testing.T) {
		clear(t)
		t.Setenv("BOOKING_CHANNEL", "redis")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error when BOOKING_REDIS_ADDR is missing")
		}
		expected := "required environment variables are not set: BOOKING_REDIS_ADDR"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clear(t)
		t.Setenv("BOOKING_HTTP_PORT", "not-a-port")
		t.Setenv("BOOKING_STORE", "cassandra")
		t.Setenv("BOOKING_PAST_GRACE", "-5m")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for invalid values")
		}
		expected := "environment variables hold invalid values: BOOKING_HTTP_PORT, BOOKING_STORE, BOOKING_PAST_GRACE"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}
