package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jwalitptl/vetclinic-api/internal/config"
	appointmentHandler "github.com/jwalitptl/vetclinic-api/internal/handler/appointment"
	auditHandler "github.com/jwalitptl/vetclinic-api/internal/handler/audit"
	directoryHandler "github.com/jwalitptl/vetclinic-api/internal/handler/directory"
	"github.com/jwalitptl/vetclinic-api/internal/handler/health"
	"github.com/jwalitptl/vetclinic-api/internal/lock"
	"github.com/jwalitptl/vetclinic-api/internal/middleware"
	"github.com/jwalitptl/vetclinic-api/internal/repository/cached"
	"github.com/jwalitptl/vetclinic-api/internal/repository/postgres"
	"github.com/jwalitptl/vetclinic-api/internal/router"
	appointmentService "github.com/jwalitptl/vetclinic-api/internal/service/appointment"
	auditService "github.com/jwalitptl/vetclinic-api/internal/service/audit"
	directoryService "github.com/jwalitptl/vetclinic-api/internal/service/directory"
	eventService "github.com/jwalitptl/vetclinic-api/internal/service/event"
	"github.com/jwalitptl/vetclinic-api/pkg/auth"
	"github.com/jwalitptl/vetclinic-api/pkg/event"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/vetclinic-api/pkg/metrics"
	"github.com/jwalitptl/vetclinic-api/pkg/validator"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply the database schema before serving")
	configDir := flag.String("config", "", "directory holding config.yml")
	flag.Parse()

	var dirs []string
	if *configDir != "" {
		dirs = append(dirs, *configDir)
	}
	cfg, err := config.LoadConfig(dirs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Log.Pretty,
	})

	if err := run(cfg, log, *migrate); err != nil {
		log.Fatal(err, "api server stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger, migrate bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("database schema applied")
	}

	gin.SetMode(gin.ReleaseMode)
	m := metrics.NewMetrics("vetclinic")

	// Repositories
	base := postgres.NewBaseRepository(db)
	cacheCfg := cached.Config{TTL: cfg.Cache.TTL, CleanupInterval: cfg.Cache.CleanupInterval}
	appointmentRepo := postgres.NewAppointmentRepository(base)
	partyRepo := cached.NewPartyRepository(postgres.NewPartyRepository(base), cacheCfg)
	patientRepo := cached.NewPatientRepository(postgres.NewPatientRepository(base), cacheCfg)
	outboxRepo := postgres.NewOutboxRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	checks := map[string]health.Check{"database": health.DatabaseCheck(db)}

	var locker lock.Locker
	switch cfg.Scheduling.LockBackend {
	case "redis":
		client, err := redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
		if err != nil {
			return err
		}
		defer func(c *goredis.Client) { _ = c.Close() }(client)
		locker = lock.NewRedisLocker(client, cfg.Scheduling.LockTTL, cfg.Scheduling.LockWait)
		checks["redis"] = health.RedisCheck(client)
	default:
		log.Warn("using in-process schedule locks, run a single api instance")
		locker = lock.NewLocalLocker(cfg.Scheduling.LockWait)
	}

	// Event bus: outbox recorder and log consumer
	bus := event.NewBus(event.BusConfig{QueueSize: cfg.Events.QueueSize}, log, m)
	if err := eventService.Register(bus, eventService.NewEventService(outboxRepo, log), log); err != nil {
		return fmt.Errorf("failed to register event consumers: %w", err)
	}
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()
	bus.Start(busCtx)

	// Services
	v := validator.New()
	auditSvc := auditService.NewService(auditRepo)
	auditor := auditService.NewAuditLogger(auditSvc, log)
	appointmentSvc := appointmentService.NewService(
		appointmentRepo, partyRepo, patientRepo,
		locker, bus, auditor, m, log,
		appointmentService.Options{ConflictWindow: cfg.Scheduling.ConflictWindow},
	)
	directorySvc := directoryService.NewService(partyRepo, patientRepo, v, auditor)

	jwt := auth.NewJWTService(auth.JWTConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiry,
	})

	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwt),
		appointmentHandler.NewHandler(appointmentSvc, v),
		directoryHandler.NewHandler(directorySvc),
		auditHandler.NewHandler(auditSvc),
		health.NewHandler(checks, m.Handler()),
		m,
		log,
		router.RouterConfig{
			Timeout:          cfg.Server.Timeout,
			AllowedOrigins:   cfg.Security.AllowedOrigins,
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit: middleware.RateLimiterConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				Burst:             cfg.RateLimit.Burst,
			},
		},
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down api server", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	// drain queued events into the outbox before the consumers lose their context
	bus.Close()
	stopBus()

	log.Info("api server exited properly")
	return nil
}
