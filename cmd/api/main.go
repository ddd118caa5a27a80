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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/EstateFlowDigital/photoproos-sub008/api"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/alert"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/auth"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/config"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/handler"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/logging"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/middleware"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/repository"
	"github.com/EstateFlowDigital/photoproos-sub008/internal/service/retainer"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("retainer-api", cfg.LogLevel, cfg.AppEnv)

	if err := run(cfg, logger); err != nil {
		logger.Error("retainer api exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}, cfg.DBConnectAttempts)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	alertRepo := repository.NewAlertEventRepository(db)

	checks := map[string]handler.Check{"database": db.PingContext}

	var (
		idemStore   middleware.IdempotencyStore
		pgIdemStore *repository.IdempotencyRepository
	)
	switch cfg.IdempotencyStore {
	case "redis":
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		idemStore = repository.NewRedisIdempotencyStore(rdb)
		checks["redis"] = redisCheck(rdb)
	default:
		pgIdemStore = repository.NewIdempotencyRepository(db)
		idemStore = pgIdemStore
	}

	retainerSvc := retainer.NewService(accountRepo, transactionRepo, invoiceRepo, db, cfg.LedgerMaxRetries)
	monitor := alert.NewMonitor(alertRepo)
	dispatcher := alert.NewDispatcher(alertRepo, alert.NewWebhookClient(cfg.AlertWebhookURL), db, logger, alert.DispatcherConfig{
		Interval:    cfg.AlertPollInterval,
		BatchSize:   cfg.AlertBatchSize,
		MaxAttempts: cfg.AlertMaxAttempts,
	})

	retainerHandler := handler.NewRetainerHandler(retainerSvc, monitor)
	invoiceHandler := handler.NewInvoiceHandler(invoiceRepo)
	healthHandler := handler.NewHealthHandler(version, checks)

	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Idempotent-Replayed"},
		MaxAge:         300,
	}))

	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Get("/docs", handler.ServeDocs("/docs/openapi.yaml"))
	r.Get("/docs/openapi.yaml", handler.ServeSpec(api.OpenAPISpec))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.Idempotency(idemStore))

		r.Post("/retainers", retainerHandler.Create)
		r.Get("/clients/{clientID}/retainer", retainerHandler.GetByClient)
		r.Get("/invoices/{id}", invoiceHandler.Get)

		r.Route("/retainers/{id}", func(r chi.Router) {
			r.Get("/", retainerHandler.Get)
			r.Get("/transactions", retainerHandler.ListTransactions)
			r.Get("/verification", retainerHandler.Verify)
			r.Post("/deposits", retainerHandler.Deposit)
			r.Post("/invoice-applications", retainerHandler.ApplyToInvoice)
			r.Post("/refunds", retainerHandler.Refund)
			r.Put("/threshold", retainerHandler.SetThreshold)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleAdmin))
				r.Post("/adjustments", retainerHandler.Adjust)
				r.Put("/status", retainerHandler.SetStatus)
			})
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})

	if pgIdemStore != nil {
		g.Go(func() error {
			cleanIdempotencyCache(gctx, pgIdemStore, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}

func redisCheck(rdb *redis.Client) handler.Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

func cleanIdempotencyCache(ctx context.Context, repo *repository.IdempotencyRepository, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				logger.Error("idempotency cache cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("idempotency cache cleaned", "removed", n)
			}
		}
	}
}
