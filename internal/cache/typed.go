package cache

import (
	"context"
	"fmt"
)

// Query describes a typed cached read.
type Query[T any] struct {
	Key   string
	Tags  []string
	Fetch func(ctx context.Context) (T, error)
}

func (q Query[T]) fetcher() Fetcher {
	return func(ctx context.Context) (any, error) {
		return q.Fetch(ctx)
	}
}

func Get[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	v, err := c.Query(ctx, q.Key, q.Tags, q.fetcher())
	return cast[T](q.Key, v, err)
}

// Watch is a typed Subscription.
type Watch[T any] struct {
	*Subscription
}

func Subscribe[T any](c *Cache, q Query[T]) *Watch[T] {
	return &Watch[T]{Subscription: c.Subscribe(q.Key, q.Tags, q.fetcher())}
}

func (w *Watch[T]) Get(ctx context.Context) (T, error) {
	v, err := w.Subscription.Get(ctx)
	return cast[T](w.key, v, err)
}

func (w *Watch[T]) Refetch(ctx context.Context) (T, error) {
	v, err := w.Subscription.Refetch(ctx)
	return cast[T](w.key, v, err)
}

func cast[T any](key string, v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T", key, v)
	}
	return t, nil
}
