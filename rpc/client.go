package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openllm/openllm-go/version"
)

// ErrClientClosed reports a call attempted or in flight when the channel
// went away.
var ErrClientClosed = errors.New("rpc: client closed")

const defaultCallTimeout = 10 * time.Second

// Client multiplexes concurrent calls over one connection. Responses are
// matched to waiters by id; frames that match no waiter and carry a
// method are dispatched as notifications.
type Client struct {
	endpoint HostEndpoint
	conn     net.Conn
	fr       *framer
	timeout  time.Duration
	logger   *slog.Logger
	onNotify func(method string, params json.RawMessage)

	mu      sync.Mutex
	pending map[string]chan envelope
	closed  bool
	done    chan struct{}
}

type ClientOption func(*Client)

// WithCallTimeout bounds each call's wait for its response.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNotificationHandler receives host-initiated notifications such as
// secrets.didChange. The handler runs on the read loop; it must not call
// back into the client synchronously.
func WithNotificationHandler(fn func(method string, params json.RawMessage)) ClientOption {
	return func(c *Client) { c.onNotify = fn }
}

// NewClient wraps an established connection, for embedders that manage
// their own transport. The session hello is sent before it returns.
func NewClient(ctx context.Context, endpoint HostEndpoint, conn net.Conn, opts ...ClientOption) (*Client, error) {
	return newClient(ctx, endpoint, conn, opts...)
}

func newClient(ctx context.Context, endpoint HostEndpoint, conn net.Conn, opts ...ClientOption) (*Client, error) {
	c := &Client{
		endpoint: endpoint,
		conn:     conn,
		fr:       newFramer(conn),
		timeout:  defaultCallTimeout,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending:  make(map[string]chan envelope),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()

	var hello struct {
		Version string `json:"version"`
	}
	if err := c.Call(ctx, MethodSessionHello, map[string]any{
		"version":    version.Get().GitVersion,
		"session_id": uuid.NewString(),
	}, &hello); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("rpc: session hello: %w", err)
	}
	c.logger.Debug("session established", "endpoint", endpoint.Name, "host_version", hello.Version)
	return c, nil
}

func (c *Client) Endpoint() HostEndpoint { return c.endpoint }

// Call sends a request and blocks for its response. The wait is bounded
// by ctx and the per-call timeout, whichever ends first. params must
// marshal to a JSON object; the auth token is injected into it.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	id := uuid.NewString()
	payload, err := c.encode(id, method, params)
	if err != nil {
		return err
	}

	ch := make(chan envelope, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.fr.WriteFrame(payload); err != nil {
		return fmt.Errorf("rpc: write %s: %w", method, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Err != nil {
			return resp.Err
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("rpc: decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("rpc: call %s timed out after %s", method, c.timeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClientClosed
	}
}

// Notify sends a fire-and-forget notification.
func (c *Client) Notify(method string, params any) error {
	payload, err := c.encode("", method, params)
	if err != nil {
		return err
	}
	return c.fr.WriteFrame(payload)
}

// Ping round-trips a no-op call, for availability probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, MethodSessionPing, nil, nil)
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) encode(id, method string, params any) ([]byte, error) {
	obj := map[string]any{}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("rpc: encode %s params: %w", method, err)
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("rpc: %s params must be a JSON object: %w", method, err)
		}
	}
	if c.endpoint.AuthToken != "" {
		obj["auth"] = c.endpoint.AuthToken
	}
	env := envelope{ID: id, Method: method}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	env.Params = raw
	return json.Marshal(env)
}

func (c *Client) readLoop() {
	// Waiters are released through the done channel when the loop exits.
	defer func() { _ = c.Close() }()

	for {
		payload, err := c.fr.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("read loop ended", "endpoint", c.endpoint.Name, "err", err)
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.Warn("discarding unparseable frame", "endpoint", c.endpoint.Name, "err", err)
			continue
		}
		if env.ID != "" {
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			c.mu.Unlock()
			if ok {
				ch <- env
			}
			continue
		}
		if env.Method != "" && c.onNotify != nil {
			c.onNotify(env.Method, env.Params)
		}
	}
}
