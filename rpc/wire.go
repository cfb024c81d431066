// Package rpc implements the host bridge: a Content-Length framed JSON
// protocol over a byte stream, with a multiplexed client, a host-side
// server, and bridge-backed secret and config stores.
//
// Every request carries a bearer token in params.auth; the server
// validates it before any method logic runs. One failed call never
// closes the channel.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Error codes on the wire.
const (
	CodeParse          = -32700
	CodeMethodNotFound = -32601
	CodeInternal       = -32603
	CodeUnauthorized   = -32001
)

// Error is the wire error envelope. Handlers may return it directly to
// control the code; anything else maps to CodeInternal.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc: %s (code %d)", e.Message, e.Code)
}

// envelope is the single message shape: requests set id+method, responses
// set id and one of result/error, notifications set method without id.
type envelope struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Err    *Error          `json:"error,omitempty"`
}

// Method names.
const (
	MethodSecretsGet    = "secrets.get"
	MethodSecretsStore  = "secrets.store"
	MethodSecretsDelete = "secrets.delete"
	MethodSecretsList   = "secrets.list"

	MethodConfigGet = "config.get"
	MethodConfigSet = "config.set"

	MethodWorkspaceGetRoot = "workspace.getRoot"

	MethodToolsList = "tools.list"
	MethodToolsCall = "tools.call"

	MethodSessionHello = "session.hello"
	MethodSessionPing  = "session.ping"
)

// Notification names.
const (
	NotifySecretsDidChange = "secrets.didChange"
	NotifyConfigDidChange  = "config.didChange"
)
