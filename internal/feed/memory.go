package feed

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("broker closed")

// MemoryBroker is an in-process Broker. Slow subscribers drop events rather
// than block publishers.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*Subscription]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subs[ev.Collection] {
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	var s *Subscription
	s = newSubscription(func() { b.remove(collection, s) })
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[*Subscription]struct{})
	}
	b.subs[collection][s] = struct{}{}
	closeOnCancel(ctx, s)
	return s, nil
}

func (b *MemoryBroker) remove(collection string, s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[collection][s]; !ok {
		return
	}
	delete(b.subs[collection], s)
	close(s.ch)
}

// Subscribers returns the number of open subscriptions to collection.
func (b *MemoryBroker) Subscribers(collection string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[collection])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	var all []*Subscription
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.closed = true
	b.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	return nil
}
