package backinstock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staleEvent(id string, status EventStatus, age time.Duration) *RestockEvent {
	ts := time.Now().UTC().Add(-age)
	return &RestockEvent{
		ID:              id,
		Shop:            "s1.myshopify.com",
		InventoryItemID: "inv-1",
		Available:       5,
		Status:          status,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
}

func TestSweepRecoversStaleEvents(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	require.NoError(t, store.CreateRestockEvent(ctx, staleEvent("ev-stale-queued", EventQueued, time.Hour)))
	require.NoError(t, store.CreateRestockEvent(ctx, staleEvent("ev-stale-proc", EventProcessing, time.Hour)))
	require.NoError(t, store.CreateRestockEvent(ctx, staleEvent("ev-fresh", EventQueued, time.Minute)))
	require.NoError(t, store.CreateRestockEvent(ctx, staleEvent("ev-done", EventCompleted, time.Hour)))

	enq := &fakeEnqueuer{}
	r := NewReaper(store, enq, ReaperConfig{StaleThreshold: 10 * time.Minute})

	r.sweep(ctx)

	ids := enq.enqueuedIDs()
	assert.ElementsMatch(t, []string{"ev-stale-queued", "ev-stale-proc"}, ids)

	// Recovered events are reset to queued before re-enqueueing.
	ev, err := store.GetRestockEvent(ctx, "ev-stale-proc")
	require.NoError(t, err)
	assert.Equal(t, EventQueued, ev.Status)
}

func TestSweepNothingStale(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.CreateRestockEvent(context.Background(), staleEvent("ev-fresh", EventQueued, time.Minute)))

	enq := &fakeEnqueuer{}
	r := NewReaper(store, enq, ReaperConfig{StaleThreshold: 10 * time.Minute})

	r.sweep(context.Background())

	assert.Empty(t, enq.enqueuedIDs())
}

func TestSweepContinuesPastEnqueueFailures(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.CreateRestockEvent(context.Background(), staleEvent("ev-1", EventQueued, time.Hour)))

	enq := &fakeEnqueuer{err: assert.AnError}
	r := NewReaper(store, enq, ReaperConfig{StaleThreshold: 10 * time.Minute})

	// Must not panic or loop; the next cycle retries.
	r.sweep(context.Background())
	assert.Empty(t, enq.enqueuedIDs())
}

func TestNewReaperDefaults(t *testing.T) {
	r := NewReaper(newFakeStore(), &fakeEnqueuer{}, ReaperConfig{})

	assert.Equal(t, 5*time.Minute, r.config.Interval)
	assert.Equal(t, 10*time.Minute, r.config.StaleThreshold)
	assert.Equal(t, 50, r.config.BatchSize)
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	r := NewReaper(newFakeStore(), &fakeEnqueuer{}, ReaperConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop on context cancellation")
	}
}
