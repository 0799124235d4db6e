package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable via BOOKING_STORE.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Channel backends selectable via BOOKING_CHANNEL.
const (
	ChannelMemory = "memory"
	ChannelSQLite = "sqlite"
	ChannelRedis  = "redis"
)

// Config captures environment driven configuration values for the booking
// service.
type Config struct {
	HTTPPort     int
	Store        string
	SQLiteDSN    string
	Channel      string
	RedisAddr    string
	PastGrace    time.Duration
	PollInterval time.Duration
}

// Load parses configuration values from the current process environment.
// A .env file in the working directory is read first when present.
//
// The loader applies defaults for optional fields while validating the
// remaining values and reporting every missing or invalid entry at once.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:     8080,
		Store:        StoreMemory,
		SQLiteDSN:    "file:booking.db?_pragma=foreign_keys(1)",
		Channel:      ChannelMemory,
		PastGrace:    5 * time.Minute,
		PollInterval: 5 * time.Second,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("BOOKING_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if store := strings.TrimSpace(os.Getenv("BOOKING_STORE")); store != "" {
		switch store {
		case StoreMemory, StoreSQLite:
			cfg.Store = store
		default:
			invalid = append(invalid, "BOOKING_STORE")
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("BOOKING_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if channel := strings.TrimSpace(os.Getenv("BOOKING_CHANNEL")); channel != "" {
		switch channel {
		case ChannelMemory, ChannelSQLite, ChannelRedis:
			cfg.Channel = channel
		default:
			invalid = append(invalid, "BOOKING_CHANNEL")
		}
	}

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("BOOKING_REDIS_ADDR"))
	if cfg.Channel == ChannelRedis && cfg.RedisAddr == "" {
		missing = append(missing, "BOOKING_REDIS_ADDR")
	}

	if graceValue := strings.TrimSpace(os.Getenv("BOOKING_PAST_GRACE")); graceValue != "" {
		grace, err := time.ParseDuration(graceValue)
		if err != nil || grace < 0 {
			invalid = append(invalid, "BOOKING_PAST_GRACE")
		} else {
			cfg.PastGrace = grace
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("BOOKING_POLL_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "BOOKING_POLL_INTERVAL")
		} else {
			cfg.PollInterval = interval
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables hold invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
