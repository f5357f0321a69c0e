package backinstock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligible(t *testing.T) {
	base := Subscription{
		Shop:      "s1.myshopify.com",
		ProductID: "P1",
		VariantID: "V9",
	}

	tests := []struct {
		name   string
		mutate func(*Subscription)
		want   bool
	}{
		{"exact variant match", func(s *Subscription) {}, true},
		{"all variants sentinel", func(s *Subscription) { s.VariantID = VariantAll }, true},
		{"already notified", func(s *Subscription) { s.Notified = true }, false},
		{"different shop", func(s *Subscription) { s.Shop = "other.myshopify.com" }, false},
		{"different product", func(s *Subscription) { s.ProductID = "P2" }, false},
		{"different variant", func(s *Subscription) { s.VariantID = "V1" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := base
			tt.mutate(&sub)
			assert.Equal(t, tt.want, Eligible(&sub, "s1.myshopify.com", "P1", "V9"))
		})
	}
}

func TestFindEligibleFiltersAndOrders(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()

	store.putSub(&Subscription{ID: "newer", Shop: "s1.myshopify.com", Email: "b@x.com", ProductID: "P1", VariantID: "V9", CreatedAt: now})
	store.putSub(&Subscription{ID: "older", Shop: "s1.myshopify.com", Email: "a@x.com", ProductID: "P1", VariantID: VariantAll, CreatedAt: now.Add(-time.Hour)})
	store.putSub(&Subscription{ID: "notified", Shop: "s1.myshopify.com", Email: "c@x.com", ProductID: "P1", VariantID: "V9", Notified: true, CreatedAt: now.Add(-2 * time.Hour)})
	store.putSub(&Subscription{ID: "wrong-product", Shop: "s1.myshopify.com", Email: "d@x.com", ProductID: "P2", VariantID: "V9", CreatedAt: now})
	store.putSub(&Subscription{ID: "wrong-variant", Shop: "s1.myshopify.com", Email: "e@x.com", ProductID: "P1", VariantID: "V1", CreatedAt: now})
	store.putSub(&Subscription{ID: "wrong-shop", Shop: "s2.myshopify.com", Email: "a@x.com", ProductID: "P1", VariantID: "V9", CreatedAt: now})

	matcher := NewMatchResolver(store)
	subs, err := matcher.FindEligible(context.Background(), "s1.myshopify.com", "P1", "V9")
	require.NoError(t, err)

	require.Len(t, subs, 2)
	assert.Equal(t, "older", subs[0].ID)
	assert.Equal(t, "newer", subs[1].ID)
}

func TestFindEligibleRefiltersLooseStoreResults(t *testing.T) {
	// A sloppy store query result must not leak ineligible rows to dispatch.
	store := newFakeStore()
	store.putSub(&Subscription{ID: "s1", Shop: "s1.myshopify.com", Email: "a@x.com", ProductID: "P1", VariantID: "V9"})

	matcher := NewMatchResolver(store)

	subs, err := matcher.FindEligible(context.Background(), "s1.myshopify.com", "P1", "V1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestFindEligibleStoreError(t *testing.T) {
	store := newFakeStore()
	store.queryErr = assert.AnError

	matcher := NewMatchResolver(store)
	_, err := matcher.FindEligible(context.Background(), "s1.myshopify.com", "P1", "V9")
	assert.Error(t, err)
}
