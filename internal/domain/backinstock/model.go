package backinstock

import "time"

// VariantAll is the sentinel variant ID meaning "any variant of the product".
// Stored as the empty string so the identity tuple stays a plain unique key.
const VariantAll = ""

// Subscription is a shopper's standing request to be emailed when a
// product (or a specific variant of it) comes back in stock.
// At most one live subscription exists per (shop, email, productID, variantID).
type Subscription struct {
	ID         string     `json:"id"`
	Shop       string     `json:"shop"`
	Email      string     `json:"email"`
	ProductID  string     `json:"product_id"`
	VariantID  string     `json:"variant_id"`
	Quantity   int        `json:"quantity"`
	Notified   bool       `json:"notified"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NotificationSettings is the per-shop configuration owned by the admin
// surface. This service only ever reads it.
type NotificationSettings struct {
	Shop           string `json:"shop"`
	Enabled        bool   `json:"enabled"`
	EmailSubject   string `json:"email_subject"`
	EmailTemplate  string `json:"email_template"`
	ButtonText     string `json:"button_text"`
	SuccessMessage string `json:"success_message"`
}

// DefaultSettings returns the built-in configuration used when a shop has
// never saved settings. Notifications stay disabled until a merchant
// explicitly turns them on.
func DefaultSettings(shop string) *NotificationSettings {
	return &NotificationSettings{
		Shop:           shop,
		Enabled:        false,
		EmailSubject:   "{{product_title}} is back in stock!",
		EmailTemplate:  "Hi {{customer_email}},\n\nGood news! {{product_title}} is back in stock at {{shop_name}}.\n\nGet yours before it sells out again: {{product_url}}",
		ButtonText:     "Notify Me When Available",
		SuccessMessage: "Thanks! We'll notify you when this product is back in stock.",
	}
}

// withDefaults fills any blank template fields from the built-in defaults,
// so a merchant who saved only a subject still gets a usable email body.
func (s *NotificationSettings) withDefaults() *NotificationSettings {
	def := DefaultSettings(s.Shop)
	out := *s
	if out.EmailSubject == "" {
		out.EmailSubject = def.EmailSubject
	}
	if out.EmailTemplate == "" {
		out.EmailTemplate = def.EmailTemplate
	}
	if out.ButtonText == "" {
		out.ButtonText = def.ButtonText
	}
	if out.SuccessMessage == "" {
		out.SuccessMessage = def.SuccessMessage
	}
	return &out
}

// RecordStatus is the terminal outcome of one delivery attempt.
type RecordStatus string

const (
	RecordSent   RecordStatus = "sent"
	RecordFailed RecordStatus = "failed"
)

// NotificationRecord is the immutable audit row for one delivery attempt.
// Many records may reference one subscription over its lifetime
// (subscribe, notify, resubscribe, notify again).
type NotificationRecord struct {
	ID             string       `json:"id"`
	SubscriptionID string       `json:"subscription_id"`
	Email          string       `json:"email"`
	ProductID      string       `json:"product_id"`
	VariantID      string       `json:"variant_id"`
	Shop           string       `json:"shop"`
	Status         RecordStatus `json:"status"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// InventoryAvailabilityEvent is the parsed inventory-level webhook payload.
// Transport and signature verification happen upstream.
type InventoryAvailabilityEvent struct {
	Shop            string `json:"shop"`
	InventoryItemID string `json:"inventory_item_id"`
	LocationID      string `json:"location_id"`
	Available       int    `json:"available"`
}

// ResolvedRestock is the transient product context a restock event resolves
// to before matching and dispatch. Never persisted.
type ResolvedRestock struct {
	Shop            string
	ProductID       string
	VariantID       string
	ProductTitle    string
	ProductHandle   string
	ProductImageURL string
	ShopName        string
	ShopDomain      string
}

// DispatchFailure describes one subscriber whose notification attempt failed.
type DispatchFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// DispatchReport is the merged outcome of one dispatch batch.
// Skipped counts subscribers whose claim was lost to a concurrent dispatch;
// they receive no mail and no audit record.
type DispatchReport struct {
	SentCount    int               `json:"sent_count"`
	FailedCount  int               `json:"failed_count"`
	SkippedCount int               `json:"skipped_count"`
	Failures     []DispatchFailure `json:"failures,omitempty"`
}

// NoOp reasons surfaced by the restock event handler.
const (
	NoOpNotAvailable  = "inventory not available"
	NoOpUnresolved    = "inventory item not resolved"
	NoOpCatalogError  = "catalog resolution failed"
	NoOpDisabled      = "notifications disabled"
	NoOpNoSubscribers = "no eligible subscriptions"
	NoOpStoreError    = "eligibility query failed"
)

// HandleOutcome is the result of processing one restock event. Either
// Report is set (a dispatch ran) or NoOpReason explains why nothing was sent.
type HandleOutcome struct {
	NoOpReason string          `json:"no_op_reason,omitempty"`
	Report     *DispatchReport `json:"report,omitempty"`
}

// NoOp reports whether the event produced no dispatch.
func (o *HandleOutcome) NoOp() bool { return o.Report == nil }

// EventStatus is the lifecycle state of a persisted restock event.
type EventStatus string

const (
	EventQueued     EventStatus = "queued"
	EventProcessing EventStatus = "processing"
	EventCompleted  EventStatus = "completed"
	EventNoOp       EventStatus = "noop"
	EventFailed     EventStatus = "failed"
)

// RestockEvent is the durable log row for one accepted inventory webhook.
// The store is the source of truth for which events still need dispatching;
// the reaper reconciles it against the queue.
type RestockEvent struct {
	ID              string      `json:"id"`
	Shop            string      `json:"shop"`
	InventoryItemID string      `json:"inventory_item_id"`
	LocationID      string      `json:"location_id"`
	Available       int         `json:"available"`
	Status          EventStatus `json:"status"`
	Detail          string      `json:"detail,omitempty"`
	SentCount       int         `json:"sent_count"`
	FailedCount     int         `json:"failed_count"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// SubscriptionFilter defines pagination and filtering for the admin
// subscription list.
type SubscriptionFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Shop     string `form:"shop"`
	Search   string `form:"search"`
	Status   string `form:"status"` // "active", "notified" or empty
}

// RecordFilter defines pagination and filtering for the notification
// record list.
type RecordFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Shop     string `form:"shop"`
	Email    string `form:"email"`
	Status   string `form:"status"`
}

// SubscribeRequest is the storefront intake payload.
type SubscribeRequest struct {
	Shop      string `json:"shop"`
	Email     string `json:"email"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// SubscribeResult reports what the intake did with a request.
type SubscribeResult struct {
	Created           bool   `json:"created"`
	AlreadySubscribed bool   `json:"already_subscribed"`
	Message           string `json:"message"`
}
