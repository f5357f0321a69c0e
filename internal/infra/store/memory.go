package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"restockly/internal/domain/backinstock"
)

var _ backinstock.SubscriptionStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory SubscriptionStore for local development and
// tests. Same conditional-update semantics as the Supabase store, guarded by
// a single mutex.
type MemoryStore struct {
	mu            sync.RWMutex
	seq           int64
	subscriptions map[string]*backinstock.Subscription
	records       []*backinstock.NotificationRecord
	settings      map[string]*backinstock.NotificationSettings
	events        map[string]*backinstock.RestockEvent
	insertOrder   map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]*backinstock.Subscription),
		settings:      make(map[string]*backinstock.NotificationSettings),
		events:        make(map[string]*backinstock.RestockEvent),
		insertOrder:   make(map[string]int64),
	}
}

// FindByIdentity retrieves the subscription for the identity tuple.
func (s *MemoryStore) FindByIdentity(ctx context.Context, shop, email, productID, variantID string) (*backinstock.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.Shop == shop && sub.Email == email && sub.ProductID == productID && sub.VariantID == variantID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

// CreateSubscription inserts a new subscription row.
func (s *MemoryStore) CreateSubscription(ctx context.Context, sub *backinstock.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sub
	s.subscriptions[sub.ID] = &cp
	s.seq++
	s.insertOrder[sub.ID] = s.seq
	return nil
}

// ReactivateSubscription resets an already-notified subscription to pending.
func (s *MemoryStore) ReactivateSubscription(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return nil
	}
	sub.Notified = false
	sub.NotifiedAt = nil
	sub.CreatedAt = now
	return nil
}

// QueryEligible returns unnotified subscriptions matching the restocked
// product, oldest first with insertion order breaking ties.
func (s *MemoryStore) QueryEligible(ctx context.Context, shop, productID, variantID string) ([]*backinstock.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*backinstock.Subscription
	for _, sub := range s.subscriptions {
		if backinstock.Eligible(sub, shop, productID, variantID) {
			cp := *sub
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.insertOrder[out[i].ID] < s.insertOrder[out[j].ID]
	})
	return out, nil
}

// ConditionalMarkNotified flips the notified flag only when it is still false.
func (s *MemoryStore) ConditionalMarkNotified(ctx context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok || sub.Notified {
		return false, nil
	}
	sub.Notified = true
	t := now
	sub.NotifiedAt = &t
	return true, nil
}

// ClearNotified reverts the notified flag after a failed send.
func (s *MemoryStore) ClearNotified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscriptions[id]; ok {
		sub.Notified = false
		sub.NotifiedAt = nil
	}
	return nil
}

// DeleteSubscription removes a subscription row.
func (s *MemoryStore) DeleteSubscription(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscriptions, id)
	delete(s.insertOrder, id)
	return nil
}

// ListSubscriptions retrieves subscriptions with pagination and filtering,
// newest first.
func (s *MemoryStore) ListSubscriptions(ctx context.Context, filter backinstock.SubscriptionFilter) ([]*backinstock.Subscription, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 25
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*backinstock.Subscription
	for _, sub := range s.subscriptions {
		if filter.Shop != "" && sub.Shop != filter.Shop {
			continue
		}
		if filter.Status == "active" && sub.Notified {
			continue
		}
		if filter.Status == "notified" && !sub.Notified {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(sub.Email), needle) && sub.ProductID != filter.Search {
				continue
			}
		}
		cp := *sub
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []*backinstock.Subscription{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// AppendNotificationRecord inserts one delivery audit row.
func (s *MemoryStore) AppendNotificationRecord(ctx context.Context, rec *backinstock.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

// ListNotificationRecords retrieves audit rows, newest first.
func (s *MemoryStore) ListNotificationRecords(ctx context.Context, filter backinstock.RecordFilter) ([]*backinstock.NotificationRecord, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 25
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*backinstock.NotificationRecord
	for _, rec := range s.records {
		if filter.Shop != "" && rec.Shop != filter.Shop {
			continue
		}
		if filter.Email != "" && rec.Email != filter.Email {
			continue
		}
		if filter.Status != "" && string(rec.Status) != filter.Status {
			continue
		}
		cp := *rec
		matched = append(matched, &cp)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []*backinstock.NotificationRecord{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// GetSettings retrieves the shop's notification settings.
func (s *MemoryStore) GetSettings(ctx context.Context, shop string) (*backinstock.NotificationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[shop]
	if !ok {
		return nil, nil
	}
	cp := *settings
	return &cp, nil
}

// PutSettings stores settings for a shop. Test and local-dev seeding helper;
// the admin surface that owns settings writes to the real store directly.
func (s *MemoryStore) PutSettings(settings *backinstock.NotificationSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *settings
	s.settings[settings.Shop] = &cp
}

// CreateRestockEvent inserts a restock event log row.
func (s *MemoryStore) CreateRestockEvent(ctx context.Context, ev *backinstock.RestockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ev
	s.events[ev.ID] = &cp
	return nil
}

// GetRestockEvent retrieves a restock event by ID.
func (s *MemoryStore) GetRestockEvent(ctx context.Context, id string) (*backinstock.RestockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

// UpdateRestockEventStatus transitions a restock event.
func (s *MemoryStore) UpdateRestockEventStatus(ctx context.Context, id string, status backinstock.EventStatus, detail string, sent, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return nil
	}
	ev.Status = status
	if detail != "" {
		ev.Detail = detail
	}
	ev.SentCount = sent
	ev.FailedCount = failed
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

// ListStaleRestockEvents retrieves events stuck in queued/processing.
func (s *MemoryStore) ListStaleRestockEvents(ctx context.Context, olderThan time.Time, limit int) ([]*backinstock.RestockEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*backinstock.RestockEvent
	for _, ev := range s.events {
		if ev.Status != backinstock.EventQueued && ev.Status != backinstock.EventProcessing {
			continue
		}
		if !ev.UpdatedAt.Before(olderThan) {
			continue
		}
		cp := *ev
		stale = append(stale, &cp)
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}
