package backinstock

import (
	"context"
	"time"
)

// SubscriptionStore defines the persistence contract for subscriptions,
// notification records, per-shop settings and restock event logs.
// Implementations live in infra/store/ (Supabase, in-memory).
type SubscriptionStore interface {
	// FindByIdentity retrieves the subscription for the identity tuple.
	// Returns nil, nil when no row exists.
	FindByIdentity(ctx context.Context, shop, email, productID, variantID string) (*Subscription, error)

	// CreateSubscription inserts a new subscription row.
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// ReactivateSubscription resets an already-notified subscription back to
	// pending: notified=false, notifiedAt cleared, createdAt refreshed to now.
	ReactivateSubscription(ctx context.Context, id string, now time.Time) error

	// QueryEligible returns unnotified subscriptions for the shop and product
	// whose variant is either the restocked variant or the all-variants
	// sentinel, ordered oldest createdAt first.
	QueryEligible(ctx context.Context, shop, productID, variantID string) ([]*Subscription, error)

	// ConditionalMarkNotified sets notified=true and notifiedAt=now only if
	// notified is still false. Returns whether the update was applied.
	// This is the linearization point that keeps concurrent dispatches from
	// both mailing the same subscriber.
	ConditionalMarkNotified(ctx context.Context, id string, now time.Time) (bool, error)

	// ClearNotified reverts the notified flag after a failed send so the
	// subscription stays eligible for the next restock.
	ClearNotified(ctx context.Context, id string) error

	// DeleteSubscription removes a subscription row. Admin surface only;
	// the dispatch engine never deletes.
	DeleteSubscription(ctx context.Context, id string) error

	// ListSubscriptions retrieves subscriptions with pagination and filtering,
	// newest first. Returns the page and the total match count.
	ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]*Subscription, int, error)

	// AppendNotificationRecord inserts one immutable delivery audit row.
	AppendNotificationRecord(ctx context.Context, rec *NotificationRecord) error

	// ListNotificationRecords retrieves audit rows with pagination and
	// filtering, newest first.
	ListNotificationRecords(ctx context.Context, filter RecordFilter) ([]*NotificationRecord, int, error)

	// GetSettings retrieves the shop's notification settings.
	// Returns nil, nil when the shop has never saved settings.
	GetSettings(ctx context.Context, shop string) (*NotificationSettings, error)

	// CreateRestockEvent inserts a restock event log row.
	CreateRestockEvent(ctx context.Context, ev *RestockEvent) error

	// GetRestockEvent retrieves a restock event by ID. Returns nil, nil when
	// no row exists.
	GetRestockEvent(ctx context.Context, id string) (*RestockEvent, error)

	// UpdateRestockEventStatus transitions a restock event and records the
	// dispatch counters.
	UpdateRestockEventStatus(ctx context.Context, id string, status EventStatus, detail string, sent, failed int) error

	// ListStaleRestockEvents retrieves events stuck in queued/processing for
	// longer than olderThan, oldest first. Used by the reaper.
	ListStaleRestockEvents(ctx context.Context, olderThan time.Time, limit int) ([]*RestockEvent, error)
}
