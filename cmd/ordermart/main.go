// Package main запускает HTTP-сервер сервиса ordermart.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ordermart/internal/config"
	"github.com/mmeshcher/ordermart/internal/handler"
	"github.com/mmeshcher/ordermart/internal/metrics"
	"github.com/mmeshcher/ordermart/internal/middleware"
	"github.com/mmeshcher/ordermart/internal/money"
	"github.com/mmeshcher/ordermart/internal/orderapi"
	"github.com/mmeshcher/ordermart/internal/repository"
	"github.com/mmeshcher/ordermart/internal/service"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func newRepository(cfg *config.Config, sugar *zap.SugaredLogger) (service.Repository, error) {
	if cfg.DatabaseURI == "" {
		sugar.Warn("DATABASE_URI is not set, using in-memory storage")
		return repository.NewMemoryRepository(), nil
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func main() {
	// .env необязателен, переменные окружения имеют приоритет.
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	minAmount, err := money.Parse(cfg.MinOperationAmount)
	if err != nil {
		sugar.Fatalw("invalid minimum operation amount", "value", cfg.MinOperationAmount, "error", err.Error())
	}

	if cfg.AuthSecret == "" {
		sugar.Fatal("AUTH_SECRET is required")
	}

	repo, err := newRepository(cfg, sugar)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var submitter service.OrderSubmitter
	if cfg.OrderAPIAddress != "" {
		submitter = orderapi.NewClient(cfg.OrderAPIAddress)
	}

	svc := service.NewService(repo, submitter, service.Options{
		MinOperationAmount:   minAmount,
		AllowNegativeBalance: cfg.AllowNegativeBalance,
		StoreTimeout:         cfg.StoreTimeout,
		Logger:               logger,
		Metrics:              m,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, metrics.Handler(reg))

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting ordermart server",
			"addr", cfg.RunAddress,
			"order_api", cfg.OrderAPIAddress,
			"min_amount", money.Format(minAmount),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Остановка сервера по сигналу или ошибке в другой горутине.
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}
