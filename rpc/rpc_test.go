package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openllm/openllm-go/config"
	"github.com/openllm/openllm-go/resolver"
	"github.com/openllm/openllm-go/secrets"
)

const testToken = "tok-123"

func startPair(t *testing.T, s *Server, opts ...ClientOption) *Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Serve(ctx, serverConn) }()

	endpoint := HostEndpoint{Name: "test-host", AuthToken: testToken, Capabilities: []Capability{CapSecrets, CapConfig, CapWorkspace}}
	c, err := NewClient(ctx, endpoint, clientConn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFramingRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	fa, fb := newFramer(a), newFramer(b)

	go func() { _ = fa.WriteFrame([]byte(`{"id":"1"}`)) }()
	payload, err := fb.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(payload))
}

func TestSessionHelloAndPing(t *testing.T) {
	s := NewServer(testToken)
	c := startPair(t, s)

	assert.Equal(t, StateSessionEstablished, s.State())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestUnauthenticatedRequestFailsClosed(t *testing.T) {
	s := NewServer(testToken)
	r := resolver.NewSecretResolver([]secrets.SecretStore{secrets.NewMemoryStore()}, resolver.WithEnvironment(false))
	BindSecrets(s, r)

	clientConn, serverConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx, serverConn) }()

	// Raw request carrying the wrong token; the method must never run.
	fr := newFramer(clientConn)
	req, _ := json.Marshal(envelope{ID: "1", Method: MethodSecretsGet, Params: []byte(`{"auth":"wrong","key":"openai"}`)})
	require.NoError(t, fr.WriteFrame(req))

	payload, err := fr.ReadFrame()
	require.NoError(t, err)
	var resp envelope
	require.NoError(t, json.Unmarshal(payload, &resp))
	require.NotNil(t, resp.Err)
	assert.Equal(t, CodeUnauthorized, resp.Err.Code)

	// The channel is still usable afterwards.
	req2, _ := json.Marshal(envelope{ID: "2", Method: MethodSessionPing, Params: []byte(`{"auth":"` + testToken + `"}`)})
	require.NoError(t, fr.WriteFrame(req2))
	payload, err = fr.ReadFrame()
	require.NoError(t, err)
	var resp2 envelope
	require.NoError(t, json.Unmarshal(payload, &resp2))
	assert.Nil(t, resp2.Err)
}

func TestUnknownMethodAndInternalError(t *testing.T) {
	s := NewServer(testToken)
	s.Handle("boom", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("kaput")
	})
	c := startPair(t, s)
	ctx := context.Background()

	err := c.Call(ctx, "no.such.method", nil, nil)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)

	err = c.Call(ctx, "boom", nil, nil)
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeInternal, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "kaput")

	// Failed calls never kill the channel.
	assert.NoError(t, c.Ping(ctx))
}

func TestSecretsBridgeEndToEnd(t *testing.T) {
	ctx := context.Background()
	mem := secrets.NewMemoryStore()
	require.NoError(t, mem.Store(ctx, "openai", "sk-host"))

	s := NewServer(testToken)
	BindSecrets(s, resolver.NewSecretResolver([]secrets.SecretStore{mem}, resolver.WithEnvironment(false)))
	c := startPair(t, s)

	store := NewSecretStore(c)
	assert.Equal(t, "host:test-host", store.Name())
	assert.True(t, store.IsAvailable(ctx))

	v, err := store.Get(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-host", v)

	_, err = store.Get(ctx, "absent")
	assert.ErrorIs(t, err, secrets.ErrNotFound)

	require.NoError(t, store.Store(ctx, "mistral", "sk-m"))
	has, err := store.Has(ctx, "mistral")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, store.Delete(ctx, "mistral"))
	has, err = store.Has(ctx, "mistral")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestConfigBridgeEndToEnd(t *testing.T) {
	ctx := context.Background()
	user := config.NewMemoryStore(config.ScopeUser)
	require.NoError(t, user.Upsert(ctx, config.ProviderConfigRecord{Name: "openai", Enabled: true, APIBase: "https://proxy"}))

	s := NewServer(testToken)
	BindConfig(s, resolver.NewConfigResolver(user, nil))
	BindWorkspace(s, "/srv/workspace")
	c := startPair(t, s)

	remote := NewConfigStore(c, resolver.ScopeRemote)
	recs, err := remote.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "openai", recs[0].Name)
	assert.Equal(t, "https://proxy", recs[0].APIBase)

	var root struct {
		Root string `json:"root"`
	}
	require.NoError(t, c.Call(ctx, MethodWorkspaceGetRoot, nil, &root))
	assert.Equal(t, "/srv/workspace", root.Root)
}

func TestConfigBridgeWriteLandsAtHostScope(t *testing.T) {
	ctx := context.Background()
	user := config.NewMemoryStore(config.ScopeUser)
	workspace := config.NewMemoryStore(config.ScopeWorkspace)

	s := NewServer(testToken)
	BindConfig(s, resolver.NewConfigResolver(user, workspace))
	c := startPair(t, s)

	remote := NewConfigStore(c, config.ScopeWorkspace)
	require.NoError(t, remote.Upsert(ctx, config.ProviderConfigRecord{Name: "mistral", Enabled: true, Models: []string{"mistral-large"}}))

	recs, err := workspace.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "mistral", recs[0].Name)
	assert.Equal(t, []string{"mistral-large"}, recs[0].Models)

	recs, err = user.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	// A store mounted without a host-side scope falls back to the
	// host default, the user file.
	fallback := NewConfigStore(c, resolver.ScopeRemote)
	require.NoError(t, fallback.Upsert(ctx, config.ProviderConfigRecord{Name: "ollama", Enabled: true}))

	recs, err = user.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ollama", recs[0].Name)
}

func TestSlowHandlerDoesNotBlockOtherCalls(t *testing.T) {
	s := NewServer(testToken)
	release := make(chan struct{})
	s.Handle("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return map[string]any{"ok": true}, nil
	})
	c := startPair(t, s)
	defer close(release)

	slowDone := make(chan error, 1)
	go func() { slowDone <- c.Call(context.Background(), "slow", nil, nil) }()

	// The ping behind the stalled call must still come back promptly.
	start := time.Now()
	require.NoError(t, c.Ping(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)

	release <- struct{}{}
	require.NoError(t, <-slowDone)
}

func TestServerNotificationReachesClient(t *testing.T) {
	s := NewServer(testToken)
	got := make(chan string, 1)
	startPair(t, s, WithNotificationHandler(func(method string, _ json.RawMessage) {
		got <- method
	}))

	require.NoError(t, s.Notify(NotifySecretsDidChange, map[string]any{"key": "openai"}))

	select {
	case method := <-got:
		assert.Equal(t, NotifySecretsDidChange, method)
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestCallWaitIsBounded(t *testing.T) {
	s := NewServer(testToken)
	s.Handle("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := startPair(t, s, WithCallTimeout(50*time.Millisecond))

	err := c.Call(context.Background(), "slow", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestEndpointRegistry(t *testing.T) {
	r := NewEndpointRegistry()
	require.NoError(t, r.Add(HostEndpoint{Name: "a", Address: "unix:/tmp/a.sock", Capabilities: []Capability{CapSecrets}}))
	require.NoError(t, r.Add(HostEndpoint{Name: "b", Address: "127.0.0.1:9"}))
	assert.Error(t, r.Add(HostEndpoint{Name: "a"}))
	assert.Error(t, r.Add(HostEndpoint{}))

	assert.Len(t, r.List(), 2)
	withSecrets := r.WithCapability(CapSecrets)
	require.Len(t, withSecrets, 1)
	assert.Equal(t, "a", withSecrets[0].Name)

	r.Remove("b")
	assert.Len(t, r.List(), 1)

	_, err := r.Dial(context.Background(), "missing")
	assert.Error(t, err)
}
