package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vetclinic-api/internal/config"
	"github.com/jwalitptl/vetclinic-api/internal/email"
	"github.com/jwalitptl/vetclinic-api/internal/handler/health"
	"github.com/jwalitptl/vetclinic-api/internal/middleware"
	"github.com/jwalitptl/vetclinic-api/internal/repository/cached"
	"github.com/jwalitptl/vetclinic-api/internal/repository/postgres"
	auditService "github.com/jwalitptl/vetclinic-api/internal/service/audit"
	"github.com/jwalitptl/vetclinic-api/internal/service/notification"
	internalWorker "github.com/jwalitptl/vetclinic-api/internal/worker"
	"github.com/jwalitptl/vetclinic-api/pkg/logger"
	"github.com/jwalitptl/vetclinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/vetclinic-api/pkg/metrics"
	"github.com/jwalitptl/vetclinic-api/pkg/worker"
)

func main() {
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
	}).WithFields(map[string]interface{}{"worker_id": workerID()})

	if err := run(cfg, log); err != nil {
		log.Fatal(err, "worker stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	client, err := redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
	if err != nil {
		return err
	}
	defer client.Close()

	broker := redis.NewRedisBroker(client, cfg.Redis.ToBrokerConfig(), log)
	defer broker.Close()

	m := metrics.NewMetrics("vetclinic_worker")

	base := postgres.NewBaseRepository(db)
	cacheCfg := cached.Config{TTL: cfg.Cache.TTL, CleanupInterval: cfg.Cache.CleanupInterval}
	outboxRepo := postgres.NewOutboxRepository(base)
	partyRepo := cached.NewPartyRepository(postgres.NewPartyRepository(base), cacheCfg)
	patientRepo := cached.NewPatientRepository(postgres.NewPatientRepository(base), cacheCfg)
	auditSvc := auditService.NewService(postgres.NewAuditRepository(base))

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToWorkerConfig(), log, m)
	if err != nil {
		return fmt.Errorf("invalid outbox configuration: %w", err)
	}

	mailer := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	notifier := notification.NewService(
		postgres.NewNotificationRepository(base),
		partyRepo, patientRepo, mailer, m, log,
	)

	cleaners := []*internalWorker.CleanupWorker{
		internalWorker.NewCleanupWorker("audit_logs", auditSvc.Cleanup,
			time.Duration(cfg.Audit.RetentionDays)*24*time.Hour, cfg.Audit.CleanupInterval, log),
		internalWorker.NewCleanupWorker("outbox_events", outboxRepo.DeleteProcessedBefore,
			cfg.Outbox.Retention, cfg.Audit.CleanupInterval, log),
	}

	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	start(func() { processor.Start(ctx) })
	start(func() {
		if err := notifier.Run(ctx, broker); err != nil {
			log.Error(err, "notification consumer failed")
			cancel()
		}
	})
	for _, c := range cleaners {
		c := c
		start(func() { c.Start(ctx) })
	}

	srv := healthServer(cfg, log, m, health.NewHandler(map[string]health.Check{
		"database": health.DatabaseCheck(db),
		"redis":    health.RedisCheck(client),
	}, m.Handler()))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "health server failed")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down worker", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health server forced to shutdown")
	}

	log.Info("worker exited properly")
	return nil
}

func healthServer(cfg *config.Config, log *logger.Logger, m *metrics.Metrics, h *health.Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery(log), middleware.Metrics(m))
	h.RegisterRoutes(engine)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}
