package repository

import (
	"context"
	"strings"
	"time"
)

// namespaceSeparator joins the visitor id and the logical key.
// Visitor ids are UUIDs and never contain "/".
const namespaceSeparator = "/"

// namespacedStore scopes every key of an underlying Store to a single
// visitor, so classifier and bucketer code can work against plain keys
// like "ab_traffic_source" while state for different visitors never
// collides.
type namespacedStore struct {
	inner     Store
	namespace string
}

// Namespaced wraps store so all keys are scoped to the given visitor id.
func Namespaced(store Store, visitorID string) Store {
	return &namespacedStore{inner: store, namespace: visitorID + namespaceSeparator}
}

func (n *namespacedStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return n.inner.Set(ctx, n.namespace+key, value, ttl)
}

func (n *namespacedStore) Get(ctx context.Context, key string) (string, error) {
	return n.inner.Get(ctx, n.namespace+key)
}

func (n *namespacedStore) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.namespace+key)
}

func (n *namespacedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.inner.Keys(ctx, n.namespace+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.namespace))
	}
	return out, nil
}

func (n *namespacedStore) Len(ctx context.Context) int {
	keys, err := n.inner.Keys(ctx, n.namespace)
	if err != nil {
		return 0
	}
	return len(keys)
}

// Close is a no-op: lifecycle of the underlying store belongs to its
// owner, not to per-visitor views.
func (n *namespacedStore) Close() error {
	return nil
}

var _ Store = (*namespacedStore)(nil)
