package backinstock

import (
	"context"
	"fmt"
	"sort"
)

// MatchResolver answers "who gets notified" for a restocked
// (shop, product, variant) tuple. Read-only; never mutates state.
type MatchResolver struct {
	store SubscriptionStore
}

// NewMatchResolver creates a new match resolver.
func NewMatchResolver(store SubscriptionStore) *MatchResolver {
	return &MatchResolver{store: store}
}

// FindEligible returns the subscriptions eligible for notification, oldest
// createdAt first. An empty result is the frequent, non-exceptional case.
// The predicate is re-applied here so dispatch never depends on a store
// implementation's query being exact.
func (m *MatchResolver) FindEligible(ctx context.Context, shop, productID, variantID string) ([]*Subscription, error) {
	candidates, err := m.store.QueryEligible(ctx, shop, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("querying eligible subscriptions: %w", err)
	}

	eligible := make([]*Subscription, 0, len(candidates))
	for _, sub := range candidates {
		if Eligible(sub, shop, productID, variantID) {
			eligible = append(eligible, sub)
		}
	}

	// Oldest subscriber first; stable so insertion order breaks ties.
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	return eligible, nil
}

// Eligible is the selection predicate: same shop and product, unnotified,
// and subscribed to either the restocked variant or all variants.
func Eligible(sub *Subscription, shop, productID, variantID string) bool {
	if sub.Notified {
		return false
	}
	if sub.Shop != shop || sub.ProductID != productID {
		return false
	}
	return sub.VariantID == variantID || sub.VariantID == VariantAll
}
