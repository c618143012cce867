package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/database"
	"github.com/iliyamo/parking-slot-reservation/internal/events"
	"github.com/iliyamo/parking-slot-reservation/internal/handler"
	"github.com/iliyamo/parking-slot-reservation/internal/identity"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/middleware"
	"github.com/iliyamo/parking-slot-reservation/internal/router"
	"github.com/iliyamo/parking-slot-reservation/internal/sensor"
	"github.com/iliyamo/parking-slot-reservation/internal/slot"
	"github.com/iliyamo/parking-slot-reservation/internal/stream"
)

var (
	migrateOnStart bool
	seedOnStart    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the sensor feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStores()
		if err != nil {
			return err
		}
		defer st.Close()

		if migrateOnStart && st.db != nil {
			v, err := database.Migrate(st.db)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", "version", v)
		}
		// the memory backend starts empty
		if seedOnStart || st.db == nil {
			if err := runSeed(ctx, st); err != nil {
				return err
			}
		}

		rdb := config.NewRedisClient()
		if rdb == nil {
			logger.Warn("redis unavailable; rate limiting and response cache disabled")
		} else {
			defer rdb.Close()
		}
		cacheCfg := config.LoadCacheConfig()

		// Every transition fans out to the broker, the websocket hub and
		// the cache purger.
		hub := stream.NewHub(cfg.StreamOrigins, logger)
		go hub.Run(ctx)
		broker := newBroker(cfg.Events, logger)
		defer broker.Close()
		sinks := events.Multi{broker, hub, middleware.NewCachePurger(cacheCfg, rdb, logger)}

		manager := slot.NewManager(st.slots, sinks, slot.Policy{OpenPayment: cfg.OpenPayment()}, logger)
		startSensorFeeds(ctx, cfg.Sensor, manager)

		e := newEcho(logger)
		provider := identity.NewJWTProvider(cfg.JWTSecret)
		router.RegisterRoutes(e, handler.Health(healthDeps(st, rdb)))
		rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
		router.RegisterAuth(e, handler.NewAuthHandler(cfg, st.users, st.tokens, provider), provider, rl)
		router.RegisterSlots(e, handler.NewSlotHandler(manager, logger), hub.ServeWS, provider, router.SlotMiddleware{
			RateLimit: rl,
			Cache:     middleware.NewRedisCache(cacheCfg, rdb),
		})

		addr := ":" + cfg.Port
		go func() {
			logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreBackend, "events", cfg.Events.Backend)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
				stop()
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply database migrations before serving")
	serveCmd.Flags().BoolVar(&seedOnStart, "seed", false, "apply the seed fixture before serving")
}

func newEcho(log *logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	return e
}

// newBroker picks the event backend.  A broker that cannot be reached at
// startup is replaced by a NoopPublisher so the API still serves.
func newBroker(ec config.EventsConfig, log *logging.Logger) events.Publisher {
	switch ec.Backend {
	case "amqp":
		p, err := events.NewAMQPPublisher(ec, log)
		if err != nil {
			log.Warn("rabbitmq unavailable; slot events disabled", "error", err)
			return events.NoopPublisher{}
		}
		return p
	case "nats":
		p, err := events.NewNATSPublisher(ec.NATSURL, ec.NATSSubject)
		if err != nil {
			log.Warn("nats unavailable; slot events disabled", "error", err)
			return events.NoopPublisher{}
		}
		return p
	}
	return events.NoopPublisher{}
}

// startSensorFeeds starts the MQTT and SQS consumers that are configured.
// Both stop when ctx is cancelled.
func startSensorFeeds(ctx context.Context, sc config.SensorConfig, r sensor.Reporter) {
	if sc.MQTTEnabled() {
		sub, err := sensor.NewMQTTSubscriber(sc, r, logger)
		if err != nil {
			logger.Error("mqtt sensor feed disabled", "error", err)
		} else {
			go func() {
				<-ctx.Done()
				_ = sub.Close()
			}()
		}
	}
	if sc.SQSEnabled() {
		client, err := sensor.NewSQSClient(ctx, sc)
		if err != nil {
			logger.Error("sqs sensor feed disabled", "error", err)
			return
		}
		go sensor.NewSQSConsumer(client, sc, r, logger).Run(ctx)
	}
}

func healthDeps(st *stores, rdb *redis.Client) map[string]handler.Pinger {
	deps := map[string]handler.Pinger{}
	if st.db != nil {
		deps["mysql"] = st.db
	}
	if rdb != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	return deps
}
