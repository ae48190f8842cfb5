package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const channelPrefix = "feed:"

// RedisBroker fans events out through Redis pub/sub so every API replica sees
// writes made by the others.
type RedisBroker struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisBroker(client *redis.Client, log *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+ev.Collection, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Collection, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, channelPrefix+collection)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	s := newSubscription(func() { ps.Close() })
	go func() {
		defer close(s.ch)
		msgs := ps.Channel()
		for {
			select {
			case <-s.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					s.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("dropping malformed feed event",
						zap.String("collection", collection), zap.Error(err))
					continue
				}
				select {
				case s.ch <- ev:
				case <-s.done:
					return
				default:
				}
			}
		}
	}()
	closeOnCancel(ctx, s)
	return s, nil
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBroker) Close() error { return nil }
