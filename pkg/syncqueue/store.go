package syncqueue

import (
	"context"
	"time"
)

// Store is the durable keyed record collection behind the queue.
// List returns items in enumeration (insertion) order.
//
// Claim takes an exclusive lease on an item for ttl and reports whether it
// was taken. Leases are shared by every process using the same backing
// store, so only one replay sends a given item at a time.
type Store interface {
	Add(ctx context.Context, item Item) error
	Get(ctx context.Context, id string) (Item, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Item, error)
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
	Close() error
}
