// Package feed streams document changes per collection to subscribers.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type Op string

const (
	OpAdded    Op = "added"
	OpModified Op = "modified"
	OpRemoved  Op = "removed"
)

// Event describes one change to a document in a collection.
type Event struct {
	Collection string          `json:"collection"`
	Op         Op              `json:"op"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data,omitempty"`
	At         time.Time       `json:"at"`
}

// Broker fans events out to subscribers of the event's collection.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, collection string) (*Subscription, error)
	Close() error
}

// NewEvent builds an event, encoding doc as the payload. doc may be nil.
func NewEvent(collection string, op Op, id string, doc any) Event {
	ev := Event{Collection: collection, Op: op, ID: id, At: time.Now().UTC()}
	if doc != nil {
		if raw, err := json.Marshal(doc); err == nil {
			ev.Data = raw
		}
	}
	return ev
}

const subscriberBuffer = 64

// Subscription delivers events until Close is called or the subscribing
// context ends. C is closed afterwards.
type Subscription struct {
	ch      chan Event
	done    chan struct{}
	once    sync.Once
	release func()
}

func newSubscription(release func()) *Subscription {
	return &Subscription{
		ch:      make(chan Event, subscriberBuffer),
		done:    make(chan struct{}),
		release: release,
	}
}

func (s *Subscription) C() <-chan Event { return s.ch }

// Done is closed once the subscription has been released.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.release != nil {
			s.release()
		}
	})
}

// closeOnCancel releases s when ctx ends.
func closeOnCancel(ctx context.Context, s *Subscription) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}
