package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"pharmastore/m/internal/feed"
)

// Tracked remembers every key written through it so the whole set can be
// dropped at once. Each Flush starts a new generation.
type Tracked struct {
	Cache
	mu   sync.Mutex
	gen  uint64
	keys map[string]struct{}
}

func NewTracked(c Cache) *Tracked {
	return &Tracked{Cache: c, keys: make(map[string]struct{})}
}

func (t *Tracked) Set(ctx context.Context, key string, value any) error {
	t.mu.Lock()
	t.keys[key] = struct{}{}
	t.mu.Unlock()
	return t.Cache.Set(ctx, key, value)
}

// Generation returns the current generation. Read it before loading the
// value that will be passed to SetIfCurrent.
func (t *Tracked) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// SetIfCurrent stores value only if no Flush happened since gen was read. A
// Flush that lands while the write is in flight removes the key again, so a
// value loaded before a change never outlives it.
func (t *Tracked) SetIfCurrent(ctx context.Context, gen uint64, key string, value any) error {
	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return nil
	}
	t.keys[key] = struct{}{}
	t.mu.Unlock()

	if err := t.Cache.Set(ctx, key, value); err != nil {
		return err
	}
	if t.Generation() != gen {
		return t.Cache.Delete(ctx, key)
	}
	return nil
}

// Flush deletes every key written so far.
func (t *Tracked) Flush(ctx context.Context) error {
	t.mu.Lock()
	t.gen++
	keys := make([]string, 0, len(t.keys))
	for k := range t.keys {
		keys = append(keys, k)
	}
	t.keys = make(map[string]struct{})
	t.mu.Unlock()
	return t.Cache.Delete(ctx, keys...)
}

// InvalidateOn flushes t whenever collection changes, until ctx ends.
func InvalidateOn(ctx context.Context, broker feed.Broker, collection string, t *Tracked, log *zap.Logger) error {
	sub, err := broker.Subscribe(ctx, collection)
	if err != nil {
		return err
	}
	go func() {
		defer sub.Close()
		for range sub.C() {
			if err := t.Flush(ctx); err != nil {
				log.Warn("cache flush failed", zap.String("collection", collection), zap.Error(err))
			}
		}
	}()
	return nil
}
