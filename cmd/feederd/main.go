package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"fish-feeder-backend/config"
	"fish-feeder-backend/internal/api"
	"fish-feeder-backend/internal/db"
	"fish-feeder-backend/internal/device"
	"fish-feeder-backend/internal/feeder"
	"fish-feeder-backend/internal/notification"
	"fish-feeder-backend/internal/store"
	"fish-feeder-backend/internal/trigger"
)

func main() {
	// .env is optional; it holds SIMULATE and friends for local development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	logger.Info().Str("path", configPath).Msg("configuration loaded")

	gormDB, err := db.Init(&cfg.Database, logger.With().Str("component", "db").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	appStore := store.NewGormStore(gormDB)

	// Pick the real or simulated feeding hardware.
	var actuator device.Actuator
	if cfg.Device.Simulate {
		logger.Info().Msg("running with simulated feeder hardware")
		actuator = device.NewSimulated(logger.With().Str("component", "device").Logger())
	} else {
		gpio, err := device.NewGPIO(cfg.Device, logger.With().Str("component", "device").Logger())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize feeder hardware")
		}
		defer gpio.Close()
		actuator = gpio
	}

	loc := time.Local
	if cfg.Feeder.Timezone != "" {
		loaded, err := time.LoadLocation(cfg.Feeder.Timezone)
		if err != nil {
			logger.Warn().Err(err).Str("tz", cfg.Feeder.Timezone).Msg("invalid timezone, using local")
		} else {
			loc = loaded
		}
	}

	engine := trigger.New(logger.With().Str("component", "trigger").Logger(), loc)
	engine.Start()
	defer engine.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Push notifications are optional: without VAPID keys the feeder just
	// doesn't notify anyone.
	var webpushOptions *webpush.Options
	feederOpts := []feeder.Option{feeder.WithReverseAngle(cfg.Feeder.ReverseAngle)}
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions,
			logger.With().Str("component", "notification").Logger())
		pool.Start(ctx)
		feederOpts = append(feederOpts, feeder.WithNotifier(pool))
	} else {
		logger.Info().Msg("VAPID keys not configured, push notifications disabled")
	}

	feederSvc := feeder.New(appStore, actuator, engine,
		logger.With().Str("component", "feeder").Logger(), feederOpts...)

	// Arm every persisted schedule. Registration is idempotent, so this
	// also recovers schedules left unarmed by an earlier crash.
	if err := feederSvc.LoadScheduledFeedings(ctx); err != nil {
		logger.Error().Err(err).Msg("some schedules could not be armed")
	}

	handler := api.NewHandler(feederSvc, appStore, webpushOptions,
		logger.With().Str("component", "api").Logger())
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	logger.Info().Msg("server gracefully stopped")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = os.Stdout
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if cfg.Console {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	return logger
}
