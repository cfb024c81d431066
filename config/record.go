// Package config stores provider configuration records at two file
// scopes, user and workspace, plus an in-memory store for hosts and
// tests. Merging across scopes lives in the resolver package; a store
// only answers for its own scope.
package config

import "strings"

// Scope names where a record lives.
type Scope string

const (
	ScopeUser      Scope = "user"
	ScopeWorkspace Scope = "workspace"
)

// ProviderConfigRecord is one provider's configuration. Name is the
// identity: comparisons and overrides are by lower-cased name, and a
// record at a higher-priority scope replaces the lower one wholesale,
// never field by field.
type ProviderConfigRecord struct {
	Name    string   `json:"name" yaml:"name" mapstructure:"name"`
	Enabled bool     `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	APIBase string   `json:"api_base,omitempty" yaml:"api_base,omitempty" mapstructure:"api_base"`
	Models  []string `json:"models,omitempty" yaml:"models,omitempty" mapstructure:"models"`

	// Provenance, populated by the resolver on reads. Never persisted.
	Source       string `json:"source,omitempty" yaml:"-" mapstructure:"-"`
	SourceDetail string `json:"source_detail,omitempty" yaml:"-" mapstructure:"-"`
}

// Key returns the record's identity.
func (r ProviderConfigRecord) Key() string { return strings.ToLower(r.Name) }

// Clone returns a deep copy.
func (r ProviderConfigRecord) Clone() ProviderConfigRecord {
	out := r
	if r.Models != nil {
		out.Models = append([]string(nil), r.Models...)
	}
	return out
}
