package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/adapters/bus"
	"github.com/DanielPopoola/payment-ledger/internal/adapters/handler"
	"github.com/DanielPopoola/payment-ledger/internal/adapters/merchant"
	"github.com/DanielPopoola/payment-ledger/internal/adapters/postgres"
	"github.com/DanielPopoola/payment-ledger/internal/config"
	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/DanielPopoola/payment-ledger/internal/core/service"
	"github.com/DanielPopoola/payment-ledger/internal/worker"
	"github.com/spf13/cobra"
)

const (
	sagaGroup     = "payment-saga"
	merchantGroup = "merchant-credits"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the saga consumer and the reconciler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before starting")

	return cmd
}

type eventBus interface {
	ports.EventPublisher
	ports.EventSubscriber
}

func runServe(migrate bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payments service",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"bus", cfg.Bus.Driver,
		"log_level", cfg.Logger.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrate {
		if err := withMigrator(func(m *postgres.Migrator) error { return m.Up() }); err != nil {
			return err
		}
	}

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	eb, closeBus, err := newBus(ctx, cfg.Bus, logger)
	if err != nil {
		return err
	}
	defer closeBus()

	paymentStore := postgres.NewPaymentStore(db)
	merchantService := service.NewMerchantService(postgres.NewMerchantStore(db), logger)

	// A remote collaborator owns payee credits too, so this process only
	// consumes payment-completed when balances are local.
	var collaborator ports.BalanceCollaborator = merchantService
	localBalances := cfg.MerchantClient.BaseURL == ""
	if !localBalances {
		logger.Info("using remote balance collaborator", "base_url", cfg.MerchantClient.BaseURL)
		collaborator = merchant.NewRetryClient(merchant.NewHTTPClient(cfg.MerchantClient), cfg.Retry, logger)
	}

	paymentService := service.NewPaymentService(paymentStore, eb, logger)
	queryService := service.NewQueryService(paymentStore)
	saga := service.NewPaymentSaga(paymentStore, collaborator, eb, logger)
	trigger := service.NewSagaTrigger(saga, logger)

	reconciler := worker.NewReconciler(
		paymentStore.Payments(),
		paymentService,
		cfg.Worker.Interval,
		cfg.Worker.StaleAfter,
		cfg.Worker.BatchSize,
		logger,
	)

	var wg sync.WaitGroup
	consume := func(topic, group string, h ports.MessageHandler) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := eb.Subscribe(ctx, topic, group, h); err != nil {
				logger.Error("subscription ended", "topic", topic, "group", group, "error", err)
				stop()
			}
		}()
	}

	consume(domain.TopicPaymentCreated, sagaGroup, trigger.HandlePaymentCreated)
	if localBalances {
		consume(domain.TopicPaymentCompleted, merchantGroup, merchantService.HandlePaymentCompleted)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Start(ctx)
	}()

	server, err := newServer(cfg, paymentService, queryService, merchantService, logger)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
		stop()
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	wg.Wait()
	logger.Info("server exited")
	return nil
}

func newBus(ctx context.Context, cfg config.BusConfig, logger *slog.Logger) (eventBus, func(), error) {
	switch cfg.Driver {
	case "redis":
		client, err := bus.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}
		return bus.NewRedisBus(client, cfg, logger), closeFn, nil
	default:
		logger.Warn("using in-memory event bus; messages are lost on restart")
		return bus.NewMemoryBus(cfg.Partitions, logger), func() {}, nil
	}
}

func newServer(
	cfg *config.Config,
	payments handler.PaymentIntake,
	query handler.PaymentQuery,
	merchants handler.MerchantOperations,
	logger *slog.Logger,
) (*http.Server, error) {
	intake := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimit.Rate != "" {
		lim, err := handler.NewRateLimiter(cfg.RateLimit.Rate)
		if err != nil {
			return nil, err
		}
		intake = handler.RateLimit(lim, logger)
	}

	mux := http.NewServeMux()
	handler.NewHandler(payments, query, merchants, logger).RegisterRoutes(mux, intake)

	h := handler.Chain(mux,
		handler.Timeout(cfg.Server.ReadTimeout),
		handler.Logging(logger),
		handler.Recovery(logger),
	)

	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, nil
}
