package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.C():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublishReachesOnlyCollectionSubscribers(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	products, err := b.Subscribe(ctx, "products")
	require.NoError(t, err)
	defer products.Close()
	orders, err := b.Subscribe(ctx, "orders")
	require.NoError(t, err)
	defer orders.Close()

	require.NoError(t, b.Publish(ctx, NewEvent("products", OpModified, "p1", map[string]int{"stock": 3})))

	ev := receive(t, products)
	assert.Equal(t, OpModified, ev.Op)
	assert.Equal(t, "p1", ev.ID)
	assert.JSONEq(t, `{"stock":3}`, string(ev.Data))

	select {
	case <-orders.C():
		t.Fatal("orders subscriber received a products event")
	default:
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	b := NewMemoryBroker()
	s, err := b.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("orders"))

	s.Close()
	s.Close()
	assert.Equal(t, 0, b.Subscribers("orders"))

	_, ok := <-s.C()
	assert.False(t, ok)
}

func TestContextCancelUnsubscribes(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	s, err := b.Subscribe(ctx, "orders")
	require.NoError(t, err)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not released after cancel")
	}
	assert.Eventually(t, func() bool { return b.Subscribers("orders") == 0 }, time.Second, 10*time.Millisecond)
}

func TestClosedBrokerRejects(t *testing.T) {
	b := NewMemoryBroker()
	s, err := b.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, ok := <-s.C()
	assert.False(t, ok)
	require.ErrorIs(t, b.Publish(context.Background(), Event{Collection: "orders"}), ErrClosed)
	_, err = b.Subscribe(context.Background(), "orders")
	require.ErrorIs(t, err, ErrClosed)
}
