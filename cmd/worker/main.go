package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restockly/internal/config"
	"restockly/internal/domain/backinstock"
	"restockly/internal/infra/catalog"
	"restockly/internal/infra/email"
	"restockly/internal/infra/queue"
	"restockly/internal/infra/store"

	"github.com/hibiken/asynq"
)

// queueEnqueuer adapts the asynq client to the backinstock.Enqueuer interface.
// Used by the reaper to re-enqueue stale restock events.
type queueEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func (q *queueEnqueuer) EnqueueDispatchRestock(eventID string) error {
	return queue.EnqueueDispatchRestock(q.client, eventID, q.maxRetry)
}

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("worker configuration loaded")

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Subscription store
	subStore, err := newStore(cfg)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	slog.Info("store initialized", "driver", cfg.Store.Driver)

	// Catalog client (Shopify Admin API)
	catalogClient := catalog.NewShopifyCatalog(cfg.Shopify.AccessToken, cfg.Shopify.APIVersion)

	// Email sender (Resend)
	sender := email.NewResendSender(
		cfg.Email.APIKey,
		cfg.Email.FromAddress,
		cfg.Email.FromName,
	)

	// Dispatch engine
	matcher := backinstock.NewMatchResolver(subStore)
	dispatcher := backinstock.NewDispatcher(subStore, sender, cfg.Dispatch.Concurrency)
	restockHandler := backinstock.NewRestockEventHandler(catalogClient, matcher, dispatcher, subStore)
	worker := backinstock.NewWorker(subStore, restockHandler)

	// Asynq client (for reaper re-enqueuing)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()

	enqueuer := &queueEnqueuer{
		client:   asynqClient,
		maxRetry: cfg.Queue.MaxRetry,
	}

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(backinstock.TaskTypeDispatchRestock, func(ctx context.Context, task *asynq.Task) error {
		payload, err := backinstock.ParseDispatchRestockPayload(task.Payload())
		if err != nil {
			return err
		}
		return worker.ProcessDispatchTask(ctx, payload.EventID)
	})

	// Start the asynq worker in a goroutine
	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Stale Event Reaper
	// ==========================================

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	reaper := backinstock.NewReaper(subStore, enqueuer, backinstock.ReaperConfig{
		Interval:       time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		StaleThreshold: time.Duration(cfg.Reaper.StaleThresholdSec) * time.Second,
		BatchSize:      cfg.Reaper.BatchSize,
	})

	go reaper.Run(reaperCtx)

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	reaperCancel() // Stop the reaper first
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}

// newStore builds the configured SubscriptionStore backend.
func newStore(cfg *config.Config) (backinstock.SubscriptionStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	}
}
