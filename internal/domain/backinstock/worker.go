package backinstock

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Worker processes dispatch tasks from the queue: load the restock event,
// mark it processing, run the restock handler, record the terminal status.
type Worker struct {
	store   SubscriptionStore
	handler *RestockEventHandler
}

// NewWorker creates a new dispatch worker.
func NewWorker(store SubscriptionStore, handler *RestockEventHandler) *Worker {
	return &Worker{store: store, handler: handler}
}

// ProcessDispatchTask handles one dispatch task. Returning an error lets
// asynq retry; duplicate deliveries are harmless because a finished event is
// skipped here and eligibility is re-queried against the notified flag.
func (w *Worker) ProcessDispatchTask(ctx context.Context, eventID string) error {
	start := time.Now()

	ev, err := w.store.GetRestockEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("fetching restock event %s: %w", eventID, err)
	}
	if ev == nil {
		return fmt.Errorf("restock event not found: %s", eventID)
	}

	switch ev.Status {
	case EventCompleted, EventNoOp:
		slog.Info("restock event already finished, skipping",
			"event_id", eventID,
			"status", ev.Status,
		)
		return nil
	}

	if err := w.store.UpdateRestockEventStatus(ctx, eventID, EventProcessing, "", 0, 0); err != nil {
		slog.Error("failed to mark event processing", "event_id", eventID, "error", err)
	}

	outcome := w.handler.Handle(ctx, &InventoryAvailabilityEvent{
		Shop:            ev.Shop,
		InventoryItemID: ev.InventoryItemID,
		LocationID:      ev.LocationID,
		Available:       ev.Available,
	})

	if outcome.NoOp() {
		if err := w.store.UpdateRestockEventStatus(ctx, eventID, EventNoOp, outcome.NoOpReason, 0, 0); err != nil {
			slog.Error("failed to mark event noop", "event_id", eventID, "error", err)
		}
		slog.Info("restock event produced no dispatch",
			"event_id", eventID,
			"shop", ev.Shop,
			"reason", outcome.NoOpReason,
			"duration", time.Since(start),
		)
		return nil
	}

	report := outcome.Report
	if err := w.store.UpdateRestockEventStatus(ctx, eventID, EventCompleted, "", report.SentCount, report.FailedCount); err != nil {
		slog.Error("failed to mark event completed", "event_id", eventID, "error", err)
	}

	slog.Info("restock event dispatched",
		"event_id", eventID,
		"shop", ev.Shop,
		"sent", report.SentCount,
		"failed", report.FailedCount,
		"skipped", report.SkippedCount,
		"duration", time.Since(start),
	)

	return nil
}
