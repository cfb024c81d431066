package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "openai")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Store(ctx, "openai", "sk-1"))
	v, err := s.Get(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-1", v)

	has, err := s.Has(ctx, "openai")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Delete(ctx, "openai"))
	assert.ErrorIs(t, s.Delete(ctx, "openai"), ErrNotFound)
}

func TestEnvVarCandidates(t *testing.T) {
	assert.Equal(t, []string{"OPENAI_API_KEY"}, EnvVarCandidates("openai"))
	assert.Equal(t, []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, EnvVarCandidates("google"))
	assert.Empty(t, EnvVarCandidates("ollama"))

	// Unknown ids fall back to <UPPER>_API_KEY plus the key itself.
	assert.Equal(t, []string{"ACME_API_KEY", "acme"}, EnvVarCandidates("acme"))
	assert.Equal(t, []string{"MY_TOKEN_API_KEY", "MY_TOKEN"}, EnvVarCandidates("MY_TOKEN"))
}

func TestEnvStoreLookupOrder(t *testing.T) {
	ctx := context.Background()
	env := map[string]string{
		"GOOGLE_API_KEY": "g-2",
		"MY_TOKEN":       "tok",
		"EMPTY_API_KEY":  "",
	}
	s := &EnvStore{lookup: func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}}

	v, err := s.Get(ctx, "gemini")
	require.NoError(t, err)
	assert.Equal(t, "g-2", v)

	// A key that is itself a set variable resolves directly.
	v, err = s.Get(ctx, "MY_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	// Set-but-empty counts as a miss.
	_, err = s.Get(ctx, "empty")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "ollama")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnvStoreIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := NewEnvStore()
	assert.ErrorIs(t, s.Store(ctx, "openai", "x"), ErrReadOnly)
	assert.ErrorIs(t, s.Delete(ctx, "openai"), ErrReadOnly)
}

func TestEnvStoreDescribeKey(t *testing.T) {
	s := &EnvStore{lookup: func(name string) (string, bool) {
		if name == "OPENAI_API_KEY" {
			return "sk-env-1", true
		}
		return "", false
	}}
	assert.Equal(t, "Environment variable $OPENAI_API_KEY", s.DescribeKey(context.Background(), "openai"))
}

func TestRegistryOpensBuiltins(t *testing.T) {
	names := List()
	assert.Contains(t, names, "memory")
	assert.Contains(t, names, "environment")
	assert.Contains(t, names, "keychain")

	s, err := Open("memory")
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())

	_, err = Open("nope")
	assert.Error(t, err)
}
