package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nikhilbhutani/eventdesk/internal/account"
	"github.com/nikhilbhutani/eventdesk/internal/api"
	"github.com/nikhilbhutani/eventdesk/internal/api/handlers"
	"github.com/nikhilbhutani/eventdesk/internal/audit"
	"github.com/nikhilbhutani/eventdesk/internal/auth"
	"github.com/nikhilbhutani/eventdesk/internal/cache"
	"github.com/nikhilbhutani/eventdesk/internal/clock"
	"github.com/nikhilbhutani/eventdesk/internal/config"
	"github.com/nikhilbhutani/eventdesk/internal/database"
	"github.com/nikhilbhutani/eventdesk/internal/events"
	"github.com/nikhilbhutani/eventdesk/internal/queue"
	"github.com/nikhilbhutani/eventdesk/internal/support"
	"github.com/nikhilbhutani/eventdesk/internal/telemetry"
	"github.com/nikhilbhutani/eventdesk/internal/tenant"
	"github.com/nikhilbhutani/eventdesk/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("", "")
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Env, cfg.Log.Level).With().Str("service", "api").Logger()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry, log)

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath, log); err != nil {
			log.Warn().Err(err).Msg("migrations failed")
		}
	}

	// Redis only caches the schema marker; the API keeps serving without it.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	var markerCache *cache.Cache
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, schema marker is read from the database")
	} else {
		markerCache = cache.NewCache(rdb, "eventdesk")
	}

	marker := database.NewMarker(db, markerCache, cfg.Schema.MarkerTTL, log)
	if err := marker.Invalidate(ctx); err != nil {
		log.Debug().Err(err).Msg("invalidate schema marker")
	}

	notifier, closeNotifier := newNotifier(cfg, log)
	defer closeNotifier()

	auditSvc := audit.NewService(db)
	tenantSvc := tenant.NewService(db)
	tickets := support.NewService(
		support.NewRepository(db, marker, log),
		tenant.NewMembershipResolver(db),
		notifier,
		auditSvc,
		clock.System,
		log,
	)
	accounts := account.NewService(
		account.NewPGStore(db),
		tenantSvc,
		auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		cfg.Auth.AdminAccessCode,
		log,
	)

	router := api.NewRouter(cfg, api.Deps{
		Accounts: accounts,
		Tickets:  tickets,
		Tenants:  tenantSvc,
		Audit:    auditSvc,
		DB:       db,
		Redis:    handlers.RedisPinger(rdb),
		Marker:   marker,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("flush traces")
	}
	log.Info().Msg("server stopped")
}

// newNotifier picks the event backend. Connection failures degrade to no
// events rather than refusing to start.
func newNotifier(cfg *config.Config, log zerolog.Logger) (events.Notifier, func()) {
	switch cfg.Events.Backend {
	case "asynq":
		c := queue.NewClient(cfg.Redis)
		return c, func() { c.Close() }
	case "nats":
		conn, err := events.Connect(cfg.Events.NATSURL, "eventdesk-api")
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable, ticket events disabled")
			return events.Nop{}, func() {}
		}
		return events.NewNATSNotifier(conn, cfg.Events.SubjectPrefix), func() { conn.Drain() }
	default:
		return events.Nop{}, func() {}
	}
}
