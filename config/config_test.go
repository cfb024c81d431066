package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsertReplacesByLowercasedName(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(ScopeUser)

	require.NoError(t, s.Upsert(ctx, ProviderConfigRecord{Name: "OpenAI", Enabled: true}))
	require.NoError(t, s.Upsert(ctx, ProviderConfigRecord{Name: "openai", Enabled: false, APIBase: "http://proxy"}))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "openai", recs[0].Name)
	assert.Equal(t, "http://proxy", recs[0].APIBase)
	assert.False(t, recs[0].Enabled)
}

func TestMemoryStoreRemoveIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(ScopeWorkspace)
	require.NoError(t, s.Upsert(ctx, ProviderConfigRecord{Name: "Anthropic", Enabled: true}))
	require.NoError(t, s.Remove(ctx, "ANTHROPIC"))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(ScopeUser, filepath.Join(t.TempDir(), "config.yaml"))
	assert.False(t, s.Exists())

	recs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".openllm", "config.yaml")
	s := NewFileStore(ScopeWorkspace, path)

	rec := ProviderConfigRecord{
		Name:    "openai",
		Enabled: true,
		APIBase: "https://api.openai.com",
		Models:  []string{"gpt-4o", "gpt-4o-mini"},
	}
	require.NoError(t, s.Upsert(ctx, rec))
	assert.True(t, s.Exists())

	// Reopen to prove the data survived serialization.
	reopened := NewFileStore(ScopeWorkspace, path)
	recs, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.Name, recs[0].Name)
	assert.Equal(t, rec.Models, recs[0].Models)

	require.NoError(t, reopened.Remove(ctx, "openai"))
	recs, err = reopened.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileStoreProvenanceFieldsAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")
	s := NewFileStore(ScopeUser, path)

	require.NoError(t, s.Upsert(ctx, ProviderConfigRecord{
		Name:         "ollama",
		Enabled:      true,
		Source:       "workspace",
		SourceDetail: "should not hit disk",
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not hit disk")
	assert.NotContains(t, string(data), "source")
}

func TestFileStoreChangeNotification(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")
	s := NewFileStore(ScopeUser, path)
	require.NoError(t, s.Upsert(ctx, ProviderConfigRecord{Name: "openai", Enabled: false}))

	changed := make(chan []ProviderConfigRecord, 1)
	s.OnChange(func(recs []ProviderConfigRecord) {
		select {
		case changed <- recs:
		default:
		}
	})
	defer s.Close()

	// A second store writing the same file stands in for an external editor.
	other := NewFileStore(ScopeUser, path)
	require.NoError(t, other.Upsert(ctx, ProviderConfigRecord{Name: "openai", Enabled: true}))

	select {
	case recs := <-changed:
		require.Len(t, recs, 1)
		assert.True(t, recs[0].Enabled)
	case <-time.After(5 * time.Second):
		t.Fatal("change notification never fired")
	}

	require.NoError(t, s.Close())
	// Close is idempotent and safe on a store that never watched.
	require.NoError(t, s.Close())
	require.NoError(t, NewFileStore(ScopeUser, path).Close())
}

func TestConfigPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/ws", ".openllm", "config.yaml"), WorkspaceConfigPath("/tmp/ws"))

	user, err := UserConfigPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(user))
	assert.True(t, strings.HasSuffix(user, filepath.Join(".config", "openllm", "config.yaml")))
}
