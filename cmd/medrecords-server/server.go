package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/doctori/medrecords/internal/config"
	"github.com/doctori/medrecords/internal/domain/records"
	"github.com/doctori/medrecords/internal/platform/db"
	"github.com/doctori/medrecords/internal/platform/events"
	"github.com/doctori/medrecords/internal/platform/middleware"
	"github.com/doctori/medrecords/internal/platform/websocket"
)

const version = "0.1.0"

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg, os.Stdout)

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Events
	hub := websocket.NewHub(logger)
	bus, closeSinks, err := buildEventBus(cfg, logger, hub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up event sinks")
	}
	defer closeSinks()

	svc := records.NewService(records.NewPGStores(pool), bus, logger)
	e := newRouter(cfg, logger, svc, hub, db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// buildEventBus always logs events and streams them to websocket clients.
// Redis, webhook and MQTT delivery are enabled by their config keys. The
// returned func releases the sink connections.
func buildEventBus(cfg *config.Config, logger zerolog.Logger, hub *websocket.Hub) (*events.Bus, func(), error) {
	bus := events.NewBus(logger)
	bus.Attach("*", events.NewLogSink(logger))
	bus.Attach("*", hub)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RedisURL != "" {
		client, err := events.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		bus.Attach("*", events.NewRedisStreamSink(client, cfg.RedisStream, cfg.RedisStreamMax))
		logger.Info().Str("stream", cfg.RedisStream).Msg("redis event stream enabled")
	}

	if cfg.WebhookURL != "" {
		bus.Attach("*", events.NewWebhookSink(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout))
		logger.Info().Str("url", cfg.WebhookURL).Bool("signed", cfg.WebhookSecret != "").Msg("webhook delivery enabled")
	}

	if cfg.MQTTBrokerURL != "" {
		client, err := events.DialMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { disconnectMQTT(client) })
		bus.Attach("*", events.NewMQTTSink(client, cfg.MQTTTopicPrefix))
		logger.Info().Str("broker", cfg.MQTTBrokerURL).Str("prefix", cfg.MQTTTopicPrefix).Msg("mqtt publishing enabled")
	}

	return bus, closeAll, nil
}

func disconnectMQTT(client mqtt.Client) {
	client.Disconnect(250)
}

func newRouter(cfg *config.Config, logger zerolog.Logger, svc *records.Service, hub *websocket.Hub, dbHealth echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = records.NewValidator()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", dbHealth)

	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(e)

	api := e.Group("/api/v1/medical-records")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	records.NewHandler(svc).RegisterRoutes(api)

	return e
}
