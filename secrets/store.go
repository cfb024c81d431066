// Package secrets defines the credential store contract and its built-in
// backends: an in-memory store, a read-only environment store, and the OS
// keychain.
//
// Stores are keyed by provider id ("openai", "anthropic", ...) or by a raw
// environment variable name. Callers compose stores into a priority chain
// with the resolver package; a single store only answers for itself.
package secrets

import (
	"context"
	"errors"
)

var (
	// ErrReadOnly is returned by Store and Delete on stores that cannot be
	// written to.
	ErrReadOnly = errors.New("secrets: store is read-only")

	// ErrNotFound is returned by Get when the store is reachable but holds
	// no value for the key.
	ErrNotFound = errors.New("secrets: secret not found")

	// ErrUnavailable is returned when the backing store cannot be reached
	// at all. Chains treat it like a miss.
	ErrUnavailable = errors.New("secrets: store unavailable")
)

// SourceInfo describes a store for diagnostics and provenance reporting.
type SourceInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// SecretStore is one credential source. Get returns ErrNotFound for a
// missing key and ErrUnavailable when the backend cannot be reached;
// read-only stores return ErrReadOnly from Store and Delete.
type SecretStore interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Get(ctx context.Context, key string) (string, error)
	Store(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	GetInfo(ctx context.Context) SourceInfo
}

// KeyDescriber is an optional upgrade: stores that can say where a
// specific key's value came from implement it, and resolvers prefer it
// over SourceInfo.Detail.
type KeyDescriber interface {
	DescribeKey(ctx context.Context, key string) string
}
