package config

import "context"

// Store is one configuration source. List returns the records it holds;
// Upsert replaces-or-inserts by record key; Remove deletes by name.
//
// Writable file stores persist on every mutation. A missing backing file
// is an empty store, not an error.
type Store interface {
	// Scope this store serves.
	Scope() Scope

	// Path of the backing file, empty for in-memory stores.
	Path() string

	// Exists reports whether the backing file is present on disk.
	Exists() bool

	List(ctx context.Context) ([]ProviderConfigRecord, error)
	Upsert(ctx context.Context, rec ProviderConfigRecord) error
	Remove(ctx context.Context, name string) error
}
