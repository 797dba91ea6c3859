package transport

import "context"

// ResourceStore is the persistence behind a REST endpoint. Resources are JSON
// objects grouped by collection path ("/books") and keyed by their id string.
//
// Implementations return ErrNotFound for missing resources and keep List in
// insertion order.
type ResourceStore interface {
	List(ctx context.Context, collection string) ([]map[string]any, error)
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	Put(ctx context.Context, collection, id string, attrs map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}
