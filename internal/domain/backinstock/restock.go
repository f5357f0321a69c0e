package backinstock

import (
	"context"
	"errors"
	"log/slog"
)

// RestockEventHandler is the entry point for a parsed inventory event:
// gate on availability, resolve the catalog data, check the shop's
// settings, match subscribers and dispatch. It never propagates an error
// to its trigger; webhook-style callers have nobody to hand a failure to.
type RestockEventHandler struct {
	catalog    CatalogClient
	matcher    *MatchResolver
	dispatcher *Dispatcher
	store      SubscriptionStore
}

// NewRestockEventHandler creates a new restock event handler.
func NewRestockEventHandler(catalog CatalogClient, matcher *MatchResolver, dispatcher *Dispatcher, store SubscriptionStore) *RestockEventHandler {
	return &RestockEventHandler{
		catalog:    catalog,
		matcher:    matcher,
		dispatcher: dispatcher,
		store:      store,
	}
}

// Handle processes one inventory availability event.
func (h *RestockEventHandler) Handle(ctx context.Context, event *InventoryAvailabilityEvent) *HandleOutcome {
	// Only transitions to positive availability matter.
	if event.Available <= 0 {
		return &HandleOutcome{NoOpReason: NoOpNotAvailable}
	}

	restock, err := h.catalog.ResolveVariantByInventoryItem(ctx, event.Shop, event.InventoryItemID)
	if err != nil {
		if errors.Is(err, ErrVariantNotFound) {
			// Untracked inventory items are expected; nothing to do.
			slog.Info("inventory item not resolved",
				"shop", event.Shop,
				"inventory_item_id", event.InventoryItemID,
			)
			return &HandleOutcome{NoOpReason: NoOpUnresolved}
		}
		slog.Error("catalog resolution failed",
			"shop", event.Shop,
			"inventory_item_id", event.InventoryItemID,
			"error", err,
		)
		return &HandleOutcome{NoOpReason: NoOpCatalogError}
	}

	// The enabled switch is checked at matching time, not subscribe time:
	// a shop may have disabled notifications since the subscription was made.
	settings, err := h.store.GetSettings(ctx, event.Shop)
	if err != nil {
		slog.Error("loading settings failed", "shop", event.Shop, "error", err)
		return &HandleOutcome{NoOpReason: NoOpStoreError}
	}
	if settings == nil {
		settings = DefaultSettings(event.Shop)
	}
	if !settings.Enabled {
		return &HandleOutcome{NoOpReason: NoOpDisabled}
	}
	settings = settings.withDefaults()

	subs, err := h.matcher.FindEligible(ctx, event.Shop, restock.ProductID, restock.VariantID)
	if err != nil {
		slog.Error("eligibility query failed",
			"shop", event.Shop,
			"product_id", restock.ProductID,
			"error", err,
		)
		return &HandleOutcome{NoOpReason: NoOpStoreError}
	}
	if len(subs) == 0 {
		return &HandleOutcome{NoOpReason: NoOpNoSubscribers}
	}

	slog.Info("restock matched subscriptions",
		"shop", event.Shop,
		"product_id", restock.ProductID,
		"variant_id", restock.VariantID,
		"count", len(subs),
	)

	if name, domain, err := h.catalog.GetShopProfile(ctx, event.Shop); err != nil {
		// The shop domain itself is a serviceable fallback for links and
		// the shop_name variable.
		slog.Error("shop profile lookup failed", "shop", event.Shop, "error", err)
		restock.ShopName = event.Shop
		restock.ShopDomain = event.Shop
	} else {
		restock.ShopName = name
		restock.ShopDomain = domain
	}

	report := h.dispatcher.Dispatch(ctx, restock, settings, subs)
	return &HandleOutcome{Report: report}
}
