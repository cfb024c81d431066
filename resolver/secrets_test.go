package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openllm/openllm-go/secrets"
)

// unavailableStore simulates a dead backend: never reachable.
type unavailableStore struct{}

func (unavailableStore) Name() string                       { return "host:dead" }
func (unavailableStore) IsAvailable(context.Context) bool   { return false }
func (unavailableStore) Get(context.Context, string) (string, error) {
	return "", secrets.ErrUnavailable
}
func (unavailableStore) Store(context.Context, string, string) error { return secrets.ErrUnavailable }
func (unavailableStore) Delete(context.Context, string) error        { return secrets.ErrUnavailable }
func (unavailableStore) Has(context.Context, string) (bool, error)   { return false, secrets.ErrUnavailable }
func (unavailableStore) GetInfo(context.Context) secrets.SourceInfo {
	return secrets.SourceInfo{Name: "host:dead", Available: false}
}

func envWith(vars map[string]string) SecretOption {
	return func(r *SecretResolver) {
		r.env = secrets.NewEnvStoreWithLookup(func(name string) (string, bool) {
			v, ok := vars[name]
			return v, ok
		})
	}
}

func TestResolvePrefersEarlierStores(t *testing.T) {
	ctx := context.Background()
	first := secrets.NewMemoryStore()
	second := secrets.NewMemoryStore()
	require.NoError(t, first.Store(ctx, "openai", "sk-first"))
	require.NoError(t, second.Store(ctx, "openai", "sk-second"))

	r := NewSecretResolver([]secrets.SecretStore{first, second}, WithEnvironment(false))
	res, err := r.Resolve(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-first", res.Value)
	assert.Equal(t, "memory", res.Source)
}

func TestResolveFallsThroughToEnvironment(t *testing.T) {
	ctx := context.Background()
	r := NewSecretResolver(
		[]secrets.SecretStore{secrets.NewMemoryStore()},
		envWith(map[string]string{"OPENAI_API_KEY": "sk-env-1"}),
	)

	res, err := r.Resolve(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-env-1", res.Value)
	assert.Equal(t, "environment", res.Source)
	assert.Equal(t, "Environment variable $OPENAI_API_KEY", res.SourceDetail)
}

func TestResolveSkipsEnvironmentWhenDisabled(t *testing.T) {
	ctx := context.Background()
	r := NewSecretResolver(
		[]secrets.SecretStore{secrets.NewMemoryStore()},
		envWith(map[string]string{"OPENAI_API_KEY": "sk-env-1"}),
		WithEnvironment(false),
	)

	_, err := r.Resolve(ctx, "openai")
	assert.ErrorIs(t, err, secrets.ErrNotFound)
}

func TestResolveSwallowsUnavailableStores(t *testing.T) {
	ctx := context.Background()
	mem := secrets.NewMemoryStore()
	require.NoError(t, mem.Store(ctx, "anthropic", "sk-a"))

	r := NewSecretResolver([]secrets.SecretStore{unavailableStore{}, mem}, WithEnvironment(false))
	res, err := r.Resolve(ctx, "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-a", res.Value)
}

func TestStoreAutoSkipsUnavailableAndReadOnly(t *testing.T) {
	ctx := context.Background()
	mem := secrets.NewMemoryStore()
	r := NewSecretResolver([]secrets.SecretStore{unavailableStore{}, mem}, WithEnvironment(false))

	dest, err := r.Store(ctx, "openai", "sk-1", DestinationAuto)
	require.NoError(t, err)
	assert.Equal(t, "memory", dest)

	// Storing the same value again routes identically and stays a no-op.
	dest, err = r.Store(ctx, "openai", "sk-1", DestinationAuto)
	require.NoError(t, err)
	assert.Equal(t, "memory", dest)

	v, err := mem.Get(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-1", v)
}

func TestStoreNamedDestination(t *testing.T) {
	ctx := context.Background()
	mem := secrets.NewMemoryStore()
	r := NewSecretResolver([]secrets.SecretStore{mem})

	dest, err := r.Store(ctx, "mistral", "sk-m", "memory")
	require.NoError(t, err)
	assert.Equal(t, "memory", dest)

	_, err = r.Store(ctx, "mistral", "sk-m", "nonexistent")
	assert.Error(t, err)

	// The environment sits in the chain but rejects writes.
	_, err = r.Store(ctx, "mistral", "sk-m", "environment")
	assert.ErrorIs(t, err, secrets.ErrReadOnly)
}

func TestDeleteAutoRemovesFromAllHolders(t *testing.T) {
	ctx := context.Background()
	a := secrets.NewMemoryStore()
	b := secrets.NewMemoryStore()
	require.NoError(t, a.Store(ctx, "openai", "x"))
	require.NoError(t, b.Store(ctx, "openai", "y"))

	r := NewSecretResolver([]secrets.SecretStore{a, b}, WithEnvironment(false))
	require.NoError(t, r.Delete(ctx, "openai", DestinationAuto))

	_, err := a.Get(ctx, "openai")
	assert.ErrorIs(t, err, secrets.ErrNotFound)
	_, err = b.Get(ctx, "openai")
	assert.ErrorIs(t, err, secrets.ErrNotFound)

	assert.ErrorIs(t, r.Delete(ctx, "openai", DestinationAuto), secrets.ErrNotFound)
}

func TestSourcesListsChainInOrder(t *testing.T) {
	r := NewSecretResolver([]secrets.SecretStore{secrets.NewMemoryStore()})
	infos := r.Sources(context.Background())
	require.Len(t, infos, 2)
	assert.Equal(t, "memory", infos[0].Name)
	assert.Equal(t, "environment", infos[1].Name)
}
