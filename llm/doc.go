// Package llm defines the canonical, provider-agnostic chat model:
// messages and content parts, the streaming chunk vocabulary, tool
// declarations, provider metadata and the Provider interface every
// vendor adapter implements.
//
// Vendor adapters live under llm/providers and normalize their wire
// formats into these types; nothing in this package talks HTTP.
package llm
