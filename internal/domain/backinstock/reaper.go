package backinstock

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the stale event reaper.
type ReaperConfig struct {
	// Interval is how often the reaper scans for stale events.
	Interval time.Duration

	// StaleThreshold is how long an event can stay in queued/processing
	// before the reaper considers it stale and re-enqueues it.
	StaleThreshold time.Duration

	// BatchSize is the maximum number of stale events to recover per cycle.
	BatchSize int
}

// Reaper periodically scans the store for restock events stuck in
// queued/processing and re-enqueues them, so no accepted webhook is ever
// permanently lost even if Redis data is wiped or a worker crashes mid-batch.
//
// The store is the source of truth and the reaper reconciles it with the
// queue on a timer. Re-dispatching a half-finished event is safe: already
// notified subscribers are filtered out when eligibility is re-queried.
type Reaper struct {
	store    SubscriptionStore
	enqueuer Enqueuer
	config   ReaperConfig
}

// NewReaper creates a new stale event reaper.
func NewReaper(store SubscriptionStore, enqueuer Enqueuer, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Reaper{
		store:    store,
		enqueuer: enqueuer,
		config:   cfg,
	}
}

// Run starts the reaper loop. It blocks until the context is cancelled.
// Should be called in a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("reaper started",
		"interval", r.config.Interval,
		"stale_threshold", r.config.StaleThreshold,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep performs one reaper cycle: find stale events and re-enqueue them.
func (r *Reaper) sweep(ctx context.Context) {
	olderThan := time.Now().Add(-r.config.StaleThreshold)

	stale, err := r.store.ListStaleRestockEvents(ctx, olderThan, r.config.BatchSize)
	if err != nil {
		slog.Error("reaper: failed to list stale events", "error", err)
		return
	}

	if len(stale) == 0 {
		return // Nothing to do, the common case
	}

	slog.Warn("reaper: found stale restock events", "count", len(stale))

	recovered := 0
	for _, ev := range stale {
		// Reset to queued before re-enqueuing so the worker picks it up cleanly.
		if err := r.store.UpdateRestockEventStatus(ctx, ev.ID, EventQueued, "", 0, 0); err != nil {
			slog.Error("reaper: failed to reset event status",
				"event_id", ev.ID,
				"error", err,
			)
			continue
		}

		if err := r.enqueuer.EnqueueDispatchRestock(ev.ID); err != nil {
			slog.Error("reaper: failed to re-enqueue event",
				"event_id", ev.ID,
				"error", err,
			)
			continue
		}

		recovered++
		slog.Info("reaper: recovered stale event",
			"event_id", ev.ID,
			"shop", ev.Shop,
			"original_status", ev.Status,
			"age", time.Since(ev.UpdatedAt).Round(time.Second),
		)
	}

	if recovered > 0 {
		slog.Info("reaper: sweep complete", "recovered", recovered, "total_stale", len(stale))
	}
}
