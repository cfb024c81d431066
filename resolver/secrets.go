// Package resolver composes secret stores into priority chains and
// config stores into scope-merged views. It owns provenance: every
// resolved value reports where it came from.
package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/openllm/openllm-go/secrets"
)

// DestinationAuto routes a write to the first writable store in the
// chain. With a host endpoint mounted ahead of the keychain that means
// the host wins when it is up and the keychain takes over when it is not.
const DestinationAuto = "auto"

// Resolution is a resolved secret with provenance.
type Resolution struct {
	Value        string `json:"value"`
	Source       string `json:"source"`
	SourceDetail string `json:"source_detail,omitempty"`
}

// SecretResolver reads through an ordered store chain. The environment
// store is consulted last, and only when enabled.
type SecretResolver struct {
	stores   []secrets.SecretStore
	env      *secrets.EnvStore
	checkEnv bool
	logger   *slog.Logger
}

type SecretOption func(*SecretResolver)

// WithEnvironment toggles the trailing environment lookup. On by default.
func WithEnvironment(enabled bool) SecretOption {
	return func(r *SecretResolver) { r.checkEnv = enabled }
}

func WithSecretLogger(logger *slog.Logger) SecretOption {
	return func(r *SecretResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewSecretResolver builds a chain over the given stores, highest
// priority first.
func NewSecretResolver(stores []secrets.SecretStore, opts ...SecretOption) *SecretResolver {
	r := &SecretResolver{
		stores:   stores,
		env:      secrets.NewEnvStore(),
		checkEnv: true,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SecretResolver) chain() []secrets.SecretStore {
	if !r.checkEnv {
		return r.stores
	}
	return append(append([]secrets.SecretStore(nil), r.stores...), r.env)
}

// Resolve walks the chain and returns the first hit. Unavailable stores
// and misses are skipped silently; an exhausted chain reports
// secrets.ErrNotFound.
func (r *SecretResolver) Resolve(ctx context.Context, key string) (Resolution, error) {
	for _, store := range r.chain() {
		if !store.IsAvailable(ctx) {
			continue
		}
		value, err := store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, secrets.ErrNotFound) || errors.Is(err, secrets.ErrUnavailable) {
				continue
			}
			r.logger.Warn("secret store failed, skipping", "store", store.Name(), "key", key, "err", err)
			continue
		}
		return Resolution{Value: value, Source: store.Name(), SourceDetail: r.detail(ctx, store, key)}, nil
	}
	return Resolution{}, secrets.ErrNotFound
}

// Has reports whether any store in the chain holds the key.
func (r *SecretResolver) Has(ctx context.Context, key string) bool {
	_, err := r.Resolve(ctx, key)
	return err == nil
}

// Store writes the secret. destination is a store name or
// DestinationAuto, and the chosen store's name is returned. Auto skips
// read-only and unreachable stores; re-storing an identical value through
// the same route is a no-op at the store level and never an error.
func (r *SecretResolver) Store(ctx context.Context, key, value, destination string) (string, error) {
	if destination != DestinationAuto && destination != "" {
		store, ok := r.byName(destination)
		if !ok {
			return "", errors.New("resolver: unknown secret destination " + destination)
		}
		return store.Name(), store.Store(ctx, key, value)
	}
	for _, store := range r.stores {
		if !store.IsAvailable(ctx) {
			continue
		}
		err := store.Store(ctx, key, value)
		if err != nil {
			if errors.Is(err, secrets.ErrReadOnly) || errors.Is(err, secrets.ErrUnavailable) {
				continue
			}
			return "", err
		}
		return store.Name(), nil
	}
	return "", secrets.ErrUnavailable
}

// Delete removes the key. Auto removes it from every writable store that
// holds it; a named destination removes it from that store only.
func (r *SecretResolver) Delete(ctx context.Context, key, destination string) error {
	if destination != DestinationAuto && destination != "" {
		store, ok := r.byName(destination)
		if !ok {
			return errors.New("resolver: unknown secret destination " + destination)
		}
		return store.Delete(ctx, key)
	}
	deleted := false
	for _, store := range r.stores {
		if !store.IsAvailable(ctx) {
			continue
		}
		err := store.Delete(ctx, key)
		if err != nil {
			if errors.Is(err, secrets.ErrNotFound) || errors.Is(err, secrets.ErrReadOnly) || errors.Is(err, secrets.ErrUnavailable) {
				continue
			}
			return err
		}
		deleted = true
	}
	if !deleted {
		return secrets.ErrNotFound
	}
	return nil
}

// Sources describes every store in the chain, for diagnostics.
func (r *SecretResolver) Sources(ctx context.Context) []secrets.SourceInfo {
	chain := r.chain()
	out := make([]secrets.SourceInfo, 0, len(chain))
	for _, store := range chain {
		out = append(out, store.GetInfo(ctx))
	}
	return out
}

func (r *SecretResolver) byName(name string) (secrets.SecretStore, bool) {
	for _, store := range r.chain() {
		if store.Name() == name {
			return store, true
		}
	}
	return nil, false
}

func (r *SecretResolver) detail(ctx context.Context, store secrets.SecretStore, key string) string {
	if d, ok := store.(secrets.KeyDescriber); ok {
		return d.DescribeKey(ctx, key)
	}
	return store.GetInfo(ctx).Detail
}
