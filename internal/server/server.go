// Package server wires configuration into a ready gin engine.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"telehealth-portal/internal/audit"
	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/cache"
	"telehealth-portal/internal/config"
	"telehealth-portal/internal/handlers"
	"telehealth-portal/internal/listing"
	"telehealth-portal/internal/metrics"
	"telehealth-portal/internal/middleware"
	"telehealth-portal/internal/models"
	"telehealth-portal/internal/payment"
	"telehealth-portal/internal/reschedule"
	"telehealth-portal/internal/routes"
)

// NewLogger builds the process logger. Development gets console output.
func NewLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Environment == "development" {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Server is the assembled gateway.
type Server struct {
	Router   *gin.Engine
	Registry *prometheus.Registry
	closers  []func() error
}

// Close releases the redis and database connections.
func (s *Server) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New connects the collaborators named by cfg and builds the router.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	srv := &Server{Registry: prometheus.NewRegistry()}
	srv.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(srv.Registry)

	loc := cfg.Timezone
	if loc == nil {
		loc = time.Local
	}
	clock := func() time.Time { return time.Now().In(loc) }

	client := backend.NewClient(cfg.Backend.URL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithMetrics(m),
		backend.WithLogger(logger.With().Str("component", "backend").Logger()),
	)

	var availability reschedule.AvailabilitySource = client
	var availabilityCache *cache.Availability
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, availability reads fall back to the backend")
		}
		srv.closers = append(srv.closers, rdb.Close)
		availabilityCache = cache.NewAvailability(rdb, client, cfg.Redis.TTL, m, logger.With().Str("component", "cache").Logger()).
			WithLoadTimeout(cfg.Backend.Timeout)
		availability = availabilityCache
	}

	var recorder audit.Recorder = audit.Nop{}
	if cfg.Database.Enabled {
		db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
		if err != nil {
			return nil, fmt.Errorf("connect audit database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			srv.closers = append(srv.closers, sqlDB.Close)
		}
		recorder = audit.NewStore(db)
	}

	mode, err := listing.ParseMode(cfg.Listing.Mode)
	if err != nil {
		return nil, err
	}
	var source listing.Source = listing.PagedSource{Lister: client}
	if mode == listing.ModeStatic {
		source = listing.StaticSource{All: client}
	}
	lists := listing.NewRegistry(source, clock, cfg.SessionTTL, logger.With().Str("component", "listing").Logger())

	var invalidator handlers.AvailabilityInvalidator
	if availabilityCache != nil {
		invalidator = availabilityCache
	}
	sessions := reschedule.NewManager(reschedule.Deps{
		Availability: availability,
		Slots:        client,
		Submitter:    client,
		Clock:        clock,
		OnSubmit:     handlers.RescheduleHook(lists, recorder, invalidator, m, logger),
		Metrics:      m,
		Logger:       logger.With().Str("component", "reschedule").Logger(),
	}, cfg.SessionTTL)

	poller := payment.NewPoller(client, payment.Policy{
		MaxAttempts: cfg.Payment.MaxAttempts,
		Interval:    cfg.Payment.Interval,
	}, logger.With().Str("component", "payment").Logger())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Handlers{
		Appointments: handlers.NewAppointmentHandler(client, lists, recorder, m, clock, logger),
		Reschedule:   handlers.NewRescheduleHandler(client, sessions, clock),
		Payments:     handlers.NewPaymentHandler(poller),
		Gatherer:     srv.Registry,
		JWTSecret:    cfg.JWTSecret,
	})
	srv.Router = router

	logger.Info().
		Str("backend", cfg.Backend.URL).
		Str("list_mode", string(mode)).
		Bool("cache", cfg.Redis.Addr != "").
		Bool("audit", cfg.Database.Enabled).
		Str("timezone", loc.String()).
		Msg("gateway configured")
	return srv, nil
}
