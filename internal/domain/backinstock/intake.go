package backinstock

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"restockly/internal/common"

	"github.com/google/uuid"
)

// emailPattern is the same address-shape check the storefront widget applies:
// something@something.something, no whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Intake handles create-or-reactivate semantics for storefront subscription
// requests. Writes go to the same store the dispatcher reads.
type Intake struct {
	store SubscriptionStore
}

// NewIntake creates a new subscription intake.
func NewIntake(store SubscriptionStore) *Intake {
	return &Intake{store: store}
}

// Subscribe registers a shopper for a back-in-stock notification.
// The identity tuple (shop, email, productID, variantID) is the dedup key:
// an unnotified existing row is a no-op, an already-notified row is
// reactivated so the shopper hears about the *next* restock.
func (in *Intake) Subscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Shop = strings.TrimSpace(req.Shop)
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.VariantID = strings.TrimSpace(req.VariantID)

	if req.Shop == "" || req.ProductID == "" || req.Email == "" {
		return nil, common.NewValidationError("shop, email and product_id are required")
	}
	if !emailPattern.MatchString(req.Email) {
		return nil, common.NewValidationError("invalid email format")
	}

	settings, err := in.store.GetSettings(ctx, req.Shop)
	if err != nil {
		return nil, fmt.Errorf("loading settings for %s: %w", req.Shop, err)
	}
	if settings == nil {
		settings = DefaultSettings(req.Shop)
	}
	if !settings.Enabled {
		return nil, common.NewFeatureDisabledError("back in stock notifications are disabled")
	}
	settings = settings.withDefaults()

	existing, err := in.store.FindByIdentity(ctx, req.Shop, req.Email, req.ProductID, req.VariantID)
	if err != nil {
		return nil, fmt.Errorf("looking up subscription: %w", err)
	}

	if existing != nil {
		if existing.Notified {
			// The shopper was already notified once; reset the row so the
			// next restock reaches them again.
			if err := in.store.ReactivateSubscription(ctx, existing.ID, time.Now().UTC()); err != nil {
				return nil, fmt.Errorf("reactivating subscription: %w", err)
			}
			slog.Info("subscription reactivated",
				"subscription_id", existing.ID,
				"shop", req.Shop,
				"product_id", req.ProductID,
			)
		}
		return &SubscribeResult{
			AlreadySubscribed: true,
			Message:           settings.SuccessMessage,
		}, nil
	}

	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}

	sub := &Subscription{
		ID:        uuid.New().String(),
		Shop:      req.Shop,
		Email:     req.Email,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  quantity,
		Notified:  false,
		CreatedAt: time.Now().UTC(),
	}
	if err := in.store.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}

	slog.Info("subscription created",
		"subscription_id", sub.ID,
		"shop", sub.Shop,
		"product_id", sub.ProductID,
		"variant_id", sub.VariantID,
	)

	return &SubscribeResult{
		Created: true,
		Message: settings.SuccessMessage,
	}, nil
}
