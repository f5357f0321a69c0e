package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restockly/internal/domain/backinstock"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	subscriptionsTable = "back_in_stock_subscriptions"
	notificationsTable = "back_in_stock_notifications"
	settingsTable      = "back_in_stock_settings"
	eventsTable        = "restock_events"
)

var _ backinstock.SubscriptionStore = (*SupabaseStore)(nil)

// SupabaseStore implements SubscriptionStore using the Supabase Go SDK.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed subscription store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// subscriptionRow is the PostgREST representation of a subscription.
type subscriptionRow struct {
	ID         string  `json:"id"`
	Shop       string  `json:"shop"`
	Email      string  `json:"email"`
	ProductID  string  `json:"product_id"`
	VariantID  string  `json:"variant_id"`
	Quantity   int     `json:"quantity"`
	Notified   bool    `json:"notified"`
	NotifiedAt *string `json:"notified_at,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

type notificationRow struct {
	ID             string  `json:"id"`
	SubscriptionID string  `json:"subscription_id"`
	Email          string  `json:"email"`
	ProductID      string  `json:"product_id"`
	VariantID      string  `json:"variant_id"`
	Shop           string  `json:"shop"`
	Status         string  `json:"status"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

type settingsRow struct {
	Shop           string `json:"shop"`
	Enabled        bool   `json:"enabled"`
	EmailSubject   string `json:"email_subject"`
	EmailTemplate  string `json:"email_template"`
	ButtonText     string `json:"button_text"`
	SuccessMessage string `json:"success_message"`
}

type eventRow struct {
	ID              string `json:"id"`
	Shop            string `json:"shop"`
	InventoryItemID string `json:"inventory_item_id"`
	LocationID      string `json:"location_id"`
	Available       int    `json:"available"`
	Status          string `json:"status"`
	Detail          string `json:"detail,omitempty"`
	SentCount       int    `json:"sent_count"`
	FailedCount     int    `json:"failed_count"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// FindByIdentity retrieves the subscription for the identity tuple.
func (s *SupabaseStore) FindByIdentity(ctx context.Context, shop, email, productID, variantID string) (*backinstock.Subscription, error) {
	data, _, err := s.client.From(subscriptionsTable).
		Select("*", "exact", false).
		Eq("shop", shop).
		Eq("email", email).
		Eq("product_id", productID).
		Eq("variant_id", variantID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching subscription: %w", err)
	}

	var rows []subscriptionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing subscription: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToSubscription(&rows[0]), nil
}

// CreateSubscription inserts a new subscription row.
func (s *SupabaseStore) CreateSubscription(ctx context.Context, sub *backinstock.Subscription) error {
	row := subscriptionRow{
		ID:        sub.ID,
		Shop:      sub.Shop,
		Email:     sub.Email,
		ProductID: sub.ProductID,
		VariantID: sub.VariantID,
		Quantity:  sub.Quantity,
		Notified:  sub.Notified,
		CreatedAt: sub.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	_, _, err := s.client.From(subscriptionsTable).Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

// ReactivateSubscription resets an already-notified subscription to pending.
func (s *SupabaseStore) ReactivateSubscription(ctx context.Context, id string, now time.Time) error {
	update := map[string]any{
		"notified":    false,
		"notified_at": nil,
		"created_at":  now.UTC().Format(time.RFC3339Nano),
	}

	_, _, err := s.client.From(subscriptionsTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("reactivating subscription: %w", err)
	}
	return nil
}

// QueryEligible returns unnotified subscriptions for the restocked product,
// covering both the exact variant and the all-variants sentinel.
func (s *SupabaseStore) QueryEligible(ctx context.Context, shop, productID, variantID string) ([]*backinstock.Subscription, error) {
	variants := []string{backinstock.VariantAll}
	if variantID != backinstock.VariantAll {
		variants = append(variants, variantID)
	}

	data, _, err := s.client.From(subscriptionsTable).
		Select("*", "exact", false).
		Eq("shop", shop).
		Eq("product_id", productID).
		Eq("notified", "false").
		In("variant_id", variants).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("querying eligible subscriptions: %w", err)
	}

	var rows []subscriptionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing eligible subscriptions: %w", err)
	}

	subs := make([]*backinstock.Subscription, len(rows))
	for i := range rows {
		subs[i] = rowToSubscription(&rows[i])
	}
	return subs, nil
}

// ConditionalMarkNotified flips the notified flag only when it is still
// false. The filtered update with representation reveals whether this caller
// won the race.
func (s *SupabaseStore) ConditionalMarkNotified(ctx context.Context, id string, now time.Time) (bool, error) {
	update := map[string]any{
		"notified":    true,
		"notified_at": now.UTC().Format(time.RFC3339Nano),
	}

	data, _, err := s.client.From(subscriptionsTable).
		Update(update, "representation", "").
		Eq("id", id).
		Eq("notified", "false").
		Execute()
	if err != nil {
		return false, fmt.Errorf("marking subscription notified: %w", err)
	}

	var rows []subscriptionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("parsing conditional update result: %w", err)
	}
	return len(rows) > 0, nil
}

// ClearNotified reverts the notified flag after a failed send.
func (s *SupabaseStore) ClearNotified(ctx context.Context, id string) error {
	update := map[string]any{
		"notified":    false,
		"notified_at": nil,
	}

	_, _, err := s.client.From(subscriptionsTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("clearing notified flag: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription row.
func (s *SupabaseStore) DeleteSubscription(ctx context.Context, id string) error {
	_, _, err := s.client.From(subscriptionsTable).Delete("", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}

// ListSubscriptions retrieves subscriptions with pagination and filtering.
func (s *SupabaseStore) ListSubscriptions(ctx context.Context, filter backinstock.SubscriptionFilter) ([]*backinstock.Subscription, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 25
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := s.client.From(subscriptionsTable).Select("*", "exact", false)

	if filter.Shop != "" {
		query = query.Eq("shop", filter.Shop)
	}
	switch filter.Status {
	case "active":
		query = query.Eq("notified", "false")
	case "notified":
		query = query.Eq("notified", "true")
	}
	if filter.Search != "" {
		query = query.Or(fmt.Sprintf("email.ilike.*%s*,product_id.eq.%s", filter.Search, filter.Search), "")
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing subscriptions: %w", err)
	}

	var rows []subscriptionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing subscription list: %w", err)
	}

	subs := make([]*backinstock.Subscription, len(rows))
	for i := range rows {
		subs[i] = rowToSubscription(&rows[i])
	}
	return subs, int(count), nil
}

// AppendNotificationRecord inserts one delivery audit row.
func (s *SupabaseStore) AppendNotificationRecord(ctx context.Context, rec *backinstock.NotificationRecord) error {
	row := notificationRow{
		ID:             rec.ID,
		SubscriptionID: rec.SubscriptionID,
		Email:          rec.Email,
		ProductID:      rec.ProductID,
		VariantID:      rec.VariantID,
		Shop:           rec.Shop,
		Status:         string(rec.Status),
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if rec.ErrorMessage != "" {
		row.ErrorMessage = &rec.ErrorMessage
	}

	_, _, err := s.client.From(notificationsTable).Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting notification record: %w", err)
	}
	return nil
}

// ListNotificationRecords retrieves audit rows with pagination and filtering.
func (s *SupabaseStore) ListNotificationRecords(ctx context.Context, filter backinstock.RecordFilter) ([]*backinstock.NotificationRecord, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 25
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := s.client.From(notificationsTable).Select("*", "exact", false)

	if filter.Shop != "" {
		query = query.Eq("shop", filter.Shop)
	}
	if filter.Email != "" {
		query = query.Eq("email", filter.Email)
	}
	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing notification records: %w", err)
	}

	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing notification records: %w", err)
	}

	recs := make([]*backinstock.NotificationRecord, len(rows))
	for i := range rows {
		recs[i] = rowToRecord(&rows[i])
	}
	return recs, int(count), nil
}

// GetSettings retrieves the shop's notification settings.
func (s *SupabaseStore) GetSettings(ctx context.Context, shop string) (*backinstock.NotificationSettings, error) {
	data, _, err := s.client.From(settingsTable).
		Select("*", "exact", false).
		Eq("shop", shop).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching settings: %w", err)
	}

	var rows []settingsRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &backinstock.NotificationSettings{
		Shop:           row.Shop,
		Enabled:        row.Enabled,
		EmailSubject:   row.EmailSubject,
		EmailTemplate:  row.EmailTemplate,
		ButtonText:     row.ButtonText,
		SuccessMessage: row.SuccessMessage,
	}, nil
}

// CreateRestockEvent inserts a restock event log row.
func (s *SupabaseStore) CreateRestockEvent(ctx context.Context, ev *backinstock.RestockEvent) error {
	row := eventRow{
		ID:              ev.ID,
		Shop:            ev.Shop,
		InventoryItemID: ev.InventoryItemID,
		LocationID:      ev.LocationID,
		Available:       ev.Available,
		Status:          string(ev.Status),
		Detail:          ev.Detail,
		CreatedAt:       ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       ev.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	_, _, err := s.client.From(eventsTable).Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting restock event: %w", err)
	}
	return nil
}

// GetRestockEvent retrieves a restock event by ID.
func (s *SupabaseStore) GetRestockEvent(ctx context.Context, id string) (*backinstock.RestockEvent, error) {
	data, _, err := s.client.From(eventsTable).
		Select("*", "exact", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching restock event: %w", err)
	}

	var rows []eventRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing restock event: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToEvent(&rows[0]), nil
}

// UpdateRestockEventStatus transitions a restock event.
func (s *SupabaseStore) UpdateRestockEventStatus(ctx context.Context, id string, status backinstock.EventStatus, detail string, sent, failed int) error {
	update := map[string]any{
		"status":       string(status),
		"sent_count":   sent,
		"failed_count": failed,
		"updated_at":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if detail != "" {
		update["detail"] = detail
	}

	_, _, err := s.client.From(eventsTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("updating restock event status: %w", err)
	}
	return nil
}

// ListStaleRestockEvents retrieves events stuck in queued/processing.
func (s *SupabaseStore) ListStaleRestockEvents(ctx context.Context, olderThan time.Time, limit int) ([]*backinstock.RestockEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	threshold := olderThan.UTC().Format(time.RFC3339Nano)

	data, _, err := s.client.From(eventsTable).
		Select("*", "exact", false).
		In("status", []string{string(backinstock.EventQueued), string(backinstock.EventProcessing)}).
		Lt("updated_at", threshold).
		Order("updated_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing stale restock events: %w", err)
	}

	var rows []eventRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing stale restock events: %w", err)
	}

	events := make([]*backinstock.RestockEvent, len(rows))
	for i := range rows {
		events[i] = rowToEvent(&rows[i])
	}
	return events, nil
}

func rowToSubscription(row *subscriptionRow) *backinstock.Subscription {
	sub := &backinstock.Subscription{
		ID:        row.ID,
		Shop:      row.Shop,
		Email:     row.Email,
		ProductID: row.ProductID,
		VariantID: row.VariantID,
		Quantity:  row.Quantity,
		Notified:  row.Notified,
	}
	if t, ok := parseTime(row.CreatedAt); ok {
		sub.CreatedAt = t
	}
	if row.NotifiedAt != nil {
		if t, ok := parseTime(*row.NotifiedAt); ok {
			sub.NotifiedAt = &t
		}
	}
	return sub
}

func rowToRecord(row *notificationRow) *backinstock.NotificationRecord {
	rec := &backinstock.NotificationRecord{
		ID:             row.ID,
		SubscriptionID: row.SubscriptionID,
		Email:          row.Email,
		ProductID:      row.ProductID,
		VariantID:      row.VariantID,
		Shop:           row.Shop,
		Status:         backinstock.RecordStatus(row.Status),
	}
	if row.ErrorMessage != nil {
		rec.ErrorMessage = *row.ErrorMessage
	}
	if t, ok := parseTime(row.CreatedAt); ok {
		rec.CreatedAt = t
	}
	return rec
}

func rowToEvent(row *eventRow) *backinstock.RestockEvent {
	ev := &backinstock.RestockEvent{
		ID:              row.ID,
		Shop:            row.Shop,
		InventoryItemID: row.InventoryItemID,
		LocationID:      row.LocationID,
		Available:       row.Available,
		Status:          backinstock.EventStatus(row.Status),
		Detail:          row.Detail,
		SentCount:       row.SentCount,
		FailedCount:     row.FailedCount,
	}
	if t, ok := parseTime(row.CreatedAt); ok {
		ev.CreatedAt = t
	}
	if t, ok := parseTime(row.UpdatedAt); ok {
		ev.UpdatedAt = t
	}
	return ev
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
