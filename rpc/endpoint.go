package rpc

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Capability names a method family an endpoint serves.
type Capability string

const (
	CapSecrets   Capability = "secrets"
	CapConfig    Capability = "config"
	CapTools     Capability = "tools"
	CapWorkspace Capability = "workspace"
)

// HostEndpoint describes one host bridge. Address is "unix:<path>" or a
// TCP "host:port". Endpoints are independent: one going down never
// affects another, and having none at all is a normal configuration.
type HostEndpoint struct {
	Name         string
	Address      string
	AuthToken    string
	Capabilities []Capability
}

func (e HostEndpoint) Has(c Capability) bool {
	for _, have := range e.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

func (e HostEndpoint) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	if path, ok := strings.CutPrefix(e.Address, "unix:"); ok {
		return d.DialContext(ctx, "unix", path)
	}
	return d.DialContext(ctx, "tcp", e.Address)
}

// EndpointRegistry tracks configured endpoints and guards each one's
// dial with a circuit breaker, so a dead socket fast-fails instead of
// stalling resolution on every call.
type EndpointRegistry struct {
	mu        sync.RWMutex
	endpoints map[string]HostEndpoint
	breakers  map[string]*gobreaker.CircuitBreaker
}

func NewEndpointRegistry() *EndpointRegistry {
	return &EndpointRegistry{
		endpoints: make(map[string]HostEndpoint),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (r *EndpointRegistry) Add(e HostEndpoint) error {
	if e.Name == "" {
		return fmt.Errorf("rpc: endpoint name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.endpoints[e.Name]; dup {
		return fmt.Errorf("rpc: endpoint %q already registered", e.Name)
	}
	r.endpoints[e.Name] = e
	r.breakers[e.Name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rpc-dial-" + e.Name,
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return nil
}

func (r *EndpointRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, name)
	delete(r.breakers, name)
}

func (r *EndpointRegistry) Get(name string) (HostEndpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[name]
	return e, ok
}

// List returns endpoints sorted by name.
func (r *EndpointRegistry) List() []HostEndpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HostEndpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WithCapability returns endpoints serving the capability, sorted by name.
func (r *EndpointRegistry) WithCapability(c Capability) []HostEndpoint {
	all := r.List()
	out := all[:0]
	for _, e := range all {
		if e.Has(c) {
			out = append(out, e)
		}
	}
	return out
}

// Dial connects to a registered endpoint through its breaker and
// completes the session hello.
func (r *EndpointRegistry) Dial(ctx context.Context, name string, opts ...ClientOption) (*Client, error) {
	r.mu.RLock()
	e, ok := r.endpoints[name]
	breaker := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("rpc: unknown endpoint %q", name)
	}

	conn, err := breaker.Execute(func() (any, error) {
		return e.dial(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", name, err)
	}
	return newClient(ctx, e, conn.(net.Conn), opts...)
}
