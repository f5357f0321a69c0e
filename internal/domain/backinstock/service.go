package backinstock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"restockly/internal/common"

	"github.com/google/uuid"
)

// Enqueuer defines the contract for handing restock events to the queue.
// Keeps the service decoupled from the concrete queue implementation.
type Enqueuer interface {
	EnqueueDispatchRestock(eventID string) error
}

// Service is the webhook-side orchestration: validate the inventory event,
// persist a restock event log row, enqueue it for async dispatch. It also
// serves the thin admin reads over the store.
type Service struct {
	store    SubscriptionStore
	enqueuer Enqueuer
}

// NewService creates a new restock service.
func NewService(store SubscriptionStore, enqueuer Enqueuer) *Service {
	return &Service{store: store, enqueuer: enqueuer}
}

// AcceptEvent records an inventory availability event and enqueues it for
// dispatch. Zero or negative availability is logged as a no-op row without
// touching the queue.
func (s *Service) AcceptEvent(ctx context.Context, event *InventoryAvailabilityEvent) (*RestockEvent, error) {
	if event.Shop == "" || event.InventoryItemID == "" {
		return nil, common.NewValidationError("shop and inventory_item_id are required")
	}

	now := time.Now().UTC()
	ev := &RestockEvent{
		ID:              uuid.New().String(),
		Shop:            event.Shop,
		InventoryItemID: event.InventoryItemID,
		LocationID:      event.LocationID,
		Available:       event.Available,
		Status:          EventQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if event.Available <= 0 {
		ev.Status = EventNoOp
		ev.Detail = NoOpNotAvailable
	}

	if err := s.store.CreateRestockEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("creating restock event: %w", err)
	}

	if ev.Status == EventNoOp {
		return ev, nil
	}

	if err := s.enqueuer.EnqueueDispatchRestock(ev.ID); err != nil {
		// Mark failed so the row does not sit in queued forever; the
		// upstream platform redelivers webhooks at least once.
		_ = s.store.UpdateRestockEventStatus(ctx, ev.ID, EventFailed, "failed to enqueue: "+err.Error(), 0, 0)
		return nil, fmt.Errorf("enqueuing restock event: %w", err)
	}

	slog.Info("restock event enqueued",
		"event_id", ev.ID,
		"shop", ev.Shop,
		"inventory_item_id", ev.InventoryItemID,
		"available", ev.Available,
	)

	return ev, nil
}

// GetEvent retrieves a restock event by ID.
func (s *Service) GetEvent(ctx context.Context, id string) (*RestockEvent, error) {
	ev, err := s.store.GetRestockEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching restock event: %w", err)
	}
	if ev == nil {
		return nil, common.NewNotFoundError("restock event", id)
	}
	return ev, nil
}

// SubscriptionPage wraps a paginated admin subscription list.
type SubscriptionPage struct {
	Subscriptions []*Subscription `json:"subscriptions"`
	Total         int             `json:"total"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}

// ListSubscriptions retrieves subscriptions for the admin surface.
func (s *Service) ListSubscriptions(ctx context.Context, filter SubscriptionFilter) (*SubscriptionPage, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	subs, total, err := s.store.ListSubscriptions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return &SubscriptionPage{
		Subscriptions: subs,
		Total:         total,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	}, nil
}

// DeleteSubscription removes a subscription on behalf of the admin surface.
func (s *Service) DeleteSubscription(ctx context.Context, id string) error {
	if err := s.store.DeleteSubscription(ctx, id); err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	slog.Info("subscription deleted", "subscription_id", id)
	return nil
}

// RecordPage wraps a paginated notification record list.
type RecordPage struct {
	Records  []*NotificationRecord `json:"records"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// ListNotificationRecords retrieves delivery audit rows.
func (s *Service) ListNotificationRecords(ctx context.Context, filter RecordFilter) (*RecordPage, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	recs, total, err := s.store.ListNotificationRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing notification records: %w", err)
	}
	return &RecordPage{
		Records:  recs,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// WidgetSettings retrieves the storefront-facing slice of a shop's settings,
// falling back to the defaults when the shop never saved any.
func (s *Service) WidgetSettings(ctx context.Context, shop string) (*NotificationSettings, error) {
	if shop == "" {
		return nil, common.NewValidationError("shop parameter is required")
	}
	settings, err := s.store.GetSettings(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("loading settings for %s: %w", shop, err)
	}
	if settings == nil {
		settings = DefaultSettings(shop)
	}
	return settings.withDefaults(), nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 25
	}
	return page, pageSize
}
