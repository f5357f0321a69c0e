package backinstock

import (
	"context"
	"testing"
	"time"

	"restockly/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledStore() *fakeStore {
	store := newFakeStore()
	s := DefaultSettings("s1.myshopify.com")
	s.Enabled = true
	store.putSettings(s)
	return store
}

func TestSubscribeValidation(t *testing.T) {
	intake := NewIntake(enabledStore())

	tests := []struct {
		name string
		req  SubscribeRequest
	}{
		{"missing shop", SubscribeRequest{Email: "a@x.com", ProductID: "P1"}},
		{"missing email", SubscribeRequest{Shop: "s1.myshopify.com", ProductID: "P1"}},
		{"missing product", SubscribeRequest{Shop: "s1.myshopify.com", Email: "a@x.com"}},
		{"bad email no at", SubscribeRequest{Shop: "s1.myshopify.com", Email: "ax.com", ProductID: "P1"}},
		{"bad email no dot", SubscribeRequest{Shop: "s1.myshopify.com", Email: "a@xcom", ProductID: "P1"}},
		{"bad email whitespace", SubscribeRequest{Shop: "s1.myshopify.com", Email: "a b@x.com", ProductID: "P1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := intake.Subscribe(context.Background(), &req)
			var verr *common.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestSubscribeDisabledShop(t *testing.T) {
	store := newFakeStore()
	disabled := DefaultSettings("s1.myshopify.com")
	store.putSettings(disabled)

	intake := NewIntake(store)
	_, err := intake.Subscribe(context.Background(), &SubscribeRequest{
		Shop: "s1.myshopify.com", Email: "a@x.com", ProductID: "P1",
	})

	var derr *common.FeatureDisabledError
	assert.ErrorAs(t, err, &derr)
}

func TestSubscribeShopWithoutSettingsIsDisabled(t *testing.T) {
	intake := NewIntake(newFakeStore())
	_, err := intake.Subscribe(context.Background(), &SubscribeRequest{
		Shop: "s1.myshopify.com", Email: "a@x.com", ProductID: "P1",
	})

	var derr *common.FeatureDisabledError
	assert.ErrorAs(t, err, &derr)
}

func TestSubscribeCreates(t *testing.T) {
	store := enabledStore()
	intake := NewIntake(store)

	res, err := intake.Subscribe(context.Background(), &SubscribeRequest{
		Shop:      "  s1.myshopify.com ",
		Email:     " a@x.com ",
		ProductID: "P1",
		VariantID: "V9",
	})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.False(t, res.AlreadySubscribed)
	assert.NotEmpty(t, res.Message)

	sub, err := store.FindByIdentity(context.Background(), "s1.myshopify.com", "a@x.com", "P1", "V9")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.False(t, sub.Notified)
	assert.Equal(t, 1, sub.Quantity)
}

func TestSubscribeDeduplicates(t *testing.T) {
	store := enabledStore()
	intake := NewIntake(store)
	ctx := context.Background()
	req := SubscribeRequest{Shop: "s1.myshopify.com", Email: "a@x.com", ProductID: "P1", VariantID: "V9"}

	first, err := intake.Subscribe(ctx, &req)
	require.NoError(t, err)
	assert.True(t, first.Created)

	for i := 0; i < 3; i++ {
		r := req
		res, err := intake.Subscribe(ctx, &r)
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.True(t, res.AlreadySubscribed)
	}

	// Still exactly one row for the identity tuple.
	subs, _, err := store.ListSubscriptions(ctx, SubscriptionFilter{})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscribeDistinctVariantsAreDistinctRows(t *testing.T) {
	store := enabledStore()
	intake := NewIntake(store)
	ctx := context.Background()

	for _, variant := range []string{"V9", "V1", VariantAll} {
		res, err := intake.Subscribe(ctx, &SubscribeRequest{
			Shop: "s1.myshopify.com", Email: "a@x.com", ProductID: "P1", VariantID: variant,
		})
		require.NoError(t, err)
		assert.True(t, res.Created)
	}

	subs, _, err := store.ListSubscriptions(ctx, SubscriptionFilter{})
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestSubscribeReactivatesNotifiedRow(t *testing.T) {
	store := enabledStore()
	notifiedAt := time.Now().UTC().Add(-time.Hour)
	store.putSub(&Subscription{
		ID:         "sub-a",
		Shop:       "s1.myshopify.com",
		Email:      "a@x.com",
		ProductID:  "P1",
		VariantID:  "V9",
		Notified:   true,
		NotifiedAt: &notifiedAt,
		CreatedAt:  notifiedAt.Add(-time.Hour),
	})

	intake := NewIntake(store)
	res, err := intake.Subscribe(context.Background(), &SubscribeRequest{
		Shop: "s1.myshopify.com", Email: "a@x.com", ProductID: "P1", VariantID: "V9",
	})
	require.NoError(t, err)

	assert.True(t, res.AlreadySubscribed)
	assert.False(t, res.Created)

	sub := store.sub("sub-a")
	assert.False(t, sub.Notified)
	assert.Nil(t, sub.NotifiedAt)

	// Reactivated row is eligible again.
	assert.True(t, Eligible(sub, "s1.myshopify.com", "P1", "V9"))
}

func TestSubscribeQuantityDefaultsToOne(t *testing.T) {
	store := enabledStore()
	intake := NewIntake(store)

	_, err := intake.Subscribe(context.Background(), &SubscribeRequest{
		Shop: "s1.myshopify.com", Email: "a@x.com", ProductID: "P1", Quantity: -3,
	})
	require.NoError(t, err)

	sub, err := store.FindByIdentity(context.Background(), "s1.myshopify.com", "a@x.com", "P1", "")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, 1, sub.Quantity)
}
