package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/config"
	httptransport "github.com/example/campus-booking/internal/http"
	"github.com/example/campus-booking/internal/metrics"
	"github.com/example/campus-booking/internal/notify"
	"github.com/example/campus-booking/internal/persistence/memory"
	"github.com/example/campus-booking/internal/persistence/sqlite"
)

// channelBackend is what every channel implementation provides: the booking
// service publishes into it and the HTTP poll endpoint reads from it.
type channelBackend interface {
	notify.Publisher
	notify.Poller
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var db *sqlite.DB
	if cfg.Store == config.StoreSQLite || cfg.Channel == config.ChannelSQLite {
		db, err = sqlite.Open(ctx, cfg.SQLiteDSN)
		if err != nil {
			logger.Error("failed to open storage", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.Error("failed to close storage", "error", cerr)
			}
		}()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	var directory application.Directory
	var events application.EventStore
	switch cfg.Store {
	case config.StoreSQLite:
		directory = sqlite.NewDirectoryRepository(db)
		events = sqlite.NewEventRepository(db)
	default:
		store := memory.NewStore()
		memory.SeedDemo(store)
		directory = store
		events = store
		logger.Info("using in-memory store with demo directory data")
	}

	var channel channelBackend
	switch cfg.Channel {
	case config.ChannelSQLite:
		channel = sqlite.NewChannelLog(db)
	case config.ChannelRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Error("failed to reach redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		cancel()
		channel = notify.NewRedisChannel(client)
	default:
		channel = notify.NewMemoryChannel()
	}

	m := metrics.New()
	idGenerator := uuid.NewString
	now := time.Now

	directoryService := application.NewDirectoryService(directory, logger)
	bookingService := application.NewBookingService(events, directory, directoryService, channel, m, cfg.PastGrace, idGenerator, now, logger)

	roomHandler := httptransport.NewRoomHandler(directoryService, bookingService, logger)
	eventHandler := httptransport.NewEventHandler(bookingService, logger)
	userHandler := httptransport.NewUserHandler(directoryService, logger)
	channelHandler := httptransport.NewChannelHandler(channel, m, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:   roomHandler,
		Events:  eventHandler,
		Users:   userHandler,
		Channel: channelHandler,
		Metrics: m.Handler(),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequestMetrics(m),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr, "store", cfg.Store, "channel", cfg.Channel)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
