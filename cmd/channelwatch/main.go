package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/campus-booking/internal/config"
	"github.com/example/campus-booking/internal/notify"
)

// channelwatch tails the booking service's notification channel over HTTP
// and logs each message it observes. It is the reference consumer for
// downstream services that only need the freshest change notice.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	baseURL := os.Getenv("BOOKING_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	source := notify.NewHTTPSource(baseURL, nil)
	consumer := notify.NewConsumer(source, func(ctx context.Context, msg notify.Message) error {
		logger.Info("channel message",
			"version", msg.Version,
			"producer", msg.ProducerTag,
			"published_at", msg.PublishedAt,
			"payload", string(msg.Payload))
		return nil
	}, cfg.PollInterval, logger)

	logger.Info("watching notification channel", "url", baseURL, "interval", cfg.PollInterval)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}
