package backinstock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ==========================
// Fake collaborators
// ==========================

// fakeStore is a map-backed SubscriptionStore with optional error hooks.
type fakeStore struct {
	mu       sync.Mutex
	subs     map[string]*Subscription
	records  []*NotificationRecord
	settings map[string]*NotificationSettings
	events   map[string]*RestockEvent

	findErr        error
	claimErr       error
	appendErr      error
	queryErr       error
	getSettingsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:     make(map[string]*Subscription),
		settings: make(map[string]*NotificationSettings),
		events:   make(map[string]*RestockEvent),
	}
}

func (f *fakeStore) putSub(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *sub
	f.subs[sub.ID] = &cp
}

func (f *fakeStore) sub(id string) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[id]; ok {
		cp := *sub
		return &cp
	}
	return nil
}

func (f *fakeStore) putSettings(s *NotificationSettings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.settings[s.Shop] = &cp
}

func (f *fakeStore) recordsFor(subID string) []*NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*NotificationRecord
	for _, r := range f.records {
		if r.SubscriptionID == subID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakeStore) FindByIdentity(ctx context.Context, shop, email, productID, variantID string) (*Subscription, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.Shop == shop && sub.Email == email && sub.ProductID == productID && sub.VariantID == variantID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *sub
	f.subs[sub.ID] = &cp
	return nil
}

func (f *fakeStore) ReactivateSubscription(ctx context.Context, id string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[id]; ok {
		sub.Notified = false
		sub.NotifiedAt = nil
		sub.CreatedAt = now
	}
	return nil
}

func (f *fakeStore) QueryEligible(ctx context.Context, shop, productID, variantID string) ([]*Subscription, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Subscription
	for _, sub := range f.subs {
		if Eligible(sub, shop, productID, variantID) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ConditionalMarkNotified(ctx context.Context, id string, now time.Time) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok || sub.Notified {
		return false, nil
	}
	sub.Notified = true
	t := now
	sub.NotifiedAt = &t
	return true, nil
}

func (f *fakeStore) ClearNotified(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[id]; ok {
		sub.Notified = false
		sub.NotifiedAt = nil
	}
	return nil
}

func (f *fakeStore) DeleteSubscription(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	return nil
}

func (f *fakeStore) ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]*Subscription, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Subscription
	for _, sub := range f.subs {
		cp := *sub
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeStore) AppendNotificationRecord(ctx context.Context, rec *NotificationRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records = append(f.records, &cp)
	return nil
}

func (f *fakeStore) ListNotificationRecords(ctx context.Context, filter RecordFilter) ([]*NotificationRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*NotificationRecord
	for _, rec := range f.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeStore) GetSettings(ctx context.Context, shop string) (*NotificationSettings, error) {
	if f.getSettingsErr != nil {
		return nil, f.getSettingsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.settings[shop]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateRestockEvent(ctx context.Context, ev *RestockEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ev
	f.events[ev.ID] = &cp
	return nil
}

func (f *fakeStore) GetRestockEvent(ctx context.Context, id string) (*RestockEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[id]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateRestockEventStatus(ctx context.Context, id string, status EventStatus, detail string, sent, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[id]; ok {
		ev.Status = status
		if detail != "" {
			ev.Detail = detail
		}
		ev.SentCount = sent
		ev.FailedCount = failed
		ev.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (f *fakeStore) ListStaleRestockEvents(ctx context.Context, olderThan time.Time, limit int) ([]*RestockEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*RestockEvent
	for _, ev := range f.events {
		if (ev.Status == EventQueued || ev.Status == EventProcessing) && ev.UpdatedAt.Before(olderThan) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeSender records sends and fails per configured recipient.
type fakeSender struct {
	mu       sync.Mutex
	sent     []*Message
	failFor  map[string]error
	sendFunc func(ctx context.Context, msg *Message) (string, error)
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]error)}
}

func (f *fakeSender) Send(ctx context.Context, msg *Message) (string, error) {
	if f.sendFunc != nil {
		return f.sendFunc(ctx, msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[msg.To]; ok {
		return "", err
	}
	cp := *msg
	f.sent = append(f.sent, &cp)
	return "msg-" + msg.To, nil
}

func (f *fakeSender) sentMessages() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeCatalog resolves from canned data.
type fakeCatalog struct {
	mu          sync.Mutex
	resolveFunc func(ctx context.Context, shop, inventoryItemID string) (*ResolvedRestock, error)
	shopName    string
	shopDomain  string
	profileErr  error
	resolveN    int
}

func (f *fakeCatalog) ResolveVariantByInventoryItem(ctx context.Context, shop, inventoryItemID string) (*ResolvedRestock, error) {
	f.mu.Lock()
	f.resolveN++
	f.mu.Unlock()
	if f.resolveFunc != nil {
		return f.resolveFunc(ctx, shop, inventoryItemID)
	}
	return nil, ErrVariantNotFound
}

func (f *fakeCatalog) GetShopProfile(ctx context.Context, shop string) (string, string, error) {
	if f.profileErr != nil {
		return "", "", f.profileErr
	}
	return f.shopName, f.shopDomain, nil
}

func (f *fakeCatalog) resolveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveN
}

// fakeEnqueuer records enqueued event IDs.
type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (f *fakeEnqueuer) EnqueueDispatchRestock(eventID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, eventID)
	return nil
}

func (f *fakeEnqueuer) enqueuedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.enqueued))
	copy(out, f.enqueued)
	return out
}
