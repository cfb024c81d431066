package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/openllm/openllm-go/version"
)

// Connection states, reported by State.
type State int32

const (
	StateDisconnected State = iota
	StateListening
	StateSessionEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateSessionEstablished:
		return "session_established"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// Handler serves one method. Returning *Error controls the wire code;
// any other error is reported as CodeInternal with its message. The
// returned value marshals into the result field.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Server is the host side of the bridge: a method mux over one framed
// connection. The auth token in params.auth is checked before dispatch;
// a mismatch answers CodeUnauthorized and the method never runs. Handler
// failures answer errors but never close the channel.
type Server struct {
	authToken string
	logger    *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	state atomic.Int32
	fr    *framer
}

type ServerOption func(*Server)

func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(authToken string, opts ...ServerOption) *Server {
	s := &Server{
		authToken: authToken,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		handlers:  make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Handle(MethodSessionPing, func(context.Context, json.RawMessage) (any, error) {
		return map[string]any{}, nil
	})
	s.Handle(MethodSessionHello, func(context.Context, json.RawMessage) (any, error) {
		s.state.Store(int32(StateSessionEstablished))
		return map[string]any{"version": version.Get().GitVersion}, nil
	})
	return s
}

// Handle registers a method. Registering an existing name replaces it.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

func (s *Server) State() State {
	return State(s.state.Load())
}

// Notify pushes a notification to the connected client. It is a no-op
// before Serve has a connection.
func (s *Server) Notify(method string, params any) error {
	if s.fr == nil {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Method: method, Params: raw})
	if err != nil {
		return err
	}
	return s.fr.WriteFrame(payload)
}

// Serve runs the read loop until the connection or ctx ends. It serves
// exactly one connection; hosts accept and call Serve per client.
func (s *Server) Serve(ctx context.Context, conn net.Conn) error {
	s.fr = newFramer(conn)
	s.state.Store(int32(StateListening))
	defer s.state.Store(int32(StateClosed))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		payload, err := s.fr.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			// A framing error is unrecoverable: the stream position is lost.
			return err
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.respondError(env.ID, &Error{Code: CodeParse, Message: "parse error: " + err.Error()})
			continue
		}
		// Each request runs on its own goroutine: responses are matched to
		// waiters by id, so a slow handler must not hold up the calls
		// behind it. The framer serializes the writes.
		go s.dispatch(ctx, env)
	}
}

func (s *Server) dispatch(ctx context.Context, env envelope) {
	notification := env.ID == ""

	if !s.authorized(env.Params) {
		s.logger.Warn("rejected unauthorized request", "method", env.Method)
		if !notification {
			s.respondError(env.ID, &Error{Code: CodeUnauthorized, Message: "unauthorized"})
		}
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[env.Method]
	s.mu.RUnlock()
	if !ok {
		if !notification {
			s.respondError(env.ID, &Error{Code: CodeMethodNotFound, Message: "method not found: " + env.Method})
		}
		return
	}

	result, err := handler(ctx, env.Params)
	if notification {
		return
	}
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &Error{Code: CodeInternal, Message: err.Error()}
		}
		s.respondError(env.ID, rpcErr)
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.respondError(env.ID, &Error{Code: CodeInternal, Message: "encode result: " + err.Error()})
		return
	}
	s.respond(envelope{ID: env.ID, Result: raw})
}

func (s *Server) authorized(params json.RawMessage) bool {
	if s.authToken == "" {
		return true
	}
	var auth struct {
		Auth string `json:"auth"`
	}
	if err := json.Unmarshal(params, &auth); err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(auth.Auth), []byte(s.authToken)) == 1
}

func (s *Server) respondError(id string, e *Error) {
	s.respond(envelope{ID: id, Err: e})
}

func (s *Server) respond(env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("encode response", "err", err)
		return
	}
	if err := s.fr.WriteFrame(payload); err != nil {
		s.logger.Debug("write response", "err", err)
	}
}
