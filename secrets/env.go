package secrets

import (
	"context"
	"os"
	"strings"
)

// providerEnvVars maps known provider ids to their candidate environment
// variables, in lookup order. The first set, non-empty variable wins.
var providerEnvVars = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"google":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"mistral":    {"MISTRAL_API_KEY"},
	"azure":      {"AZURE_API_KEY", "AZURE_OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"ollama":     {},
}

// EnvVarCandidates returns the environment variables consulted for a key,
// in order. A key that is not a known provider id falls back to
// <UPPER>_API_KEY, plus the key itself when it already looks like a
// variable name.
func EnvVarCandidates(key string) []string {
	if vars, ok := providerEnvVars[strings.ToLower(key)]; ok {
		return vars
	}
	candidates := []string{strings.ToUpper(key) + "_API_KEY"}
	if key != candidates[0] {
		candidates = append(candidates, key)
	}
	return candidates
}

// EnvStore reads credentials from the process environment. It is
// read-only and always available.
type EnvStore struct {
	lookup func(string) (string, bool)
}

func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

// NewEnvStoreWithLookup substitutes the variable lookup, for embedders
// that overlay their own environment and for tests.
func NewEnvStoreWithLookup(lookup func(string) (string, bool)) *EnvStore {
	return &EnvStore{lookup: lookup}
}

func (s *EnvStore) Name() string                       { return "environment" }
func (s *EnvStore) IsAvailable(_ context.Context) bool { return true }

func (s *EnvStore) Get(_ context.Context, key string) (string, error) {
	if v, _, ok := s.resolve(key); ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (s *EnvStore) Store(_ context.Context, _, _ string) error { return ErrReadOnly }
func (s *EnvStore) Delete(_ context.Context, _ string) error   { return ErrReadOnly }

func (s *EnvStore) Has(_ context.Context, key string) (bool, error) {
	_, _, ok := s.resolve(key)
	return ok, nil
}

func (s *EnvStore) GetInfo(_ context.Context) SourceInfo {
	return SourceInfo{Name: "environment", Available: true, Detail: "Process environment variables"}
}

// DescribeKey names the variable a key resolved from.
func (s *EnvStore) DescribeKey(_ context.Context, key string) string {
	if _, name, ok := s.resolve(key); ok {
		return "Environment variable $" + name
	}
	return "Process environment variables"
}

func (s *EnvStore) resolve(key string) (value, variable string, ok bool) {
	lookup := s.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range EnvVarCandidates(key) {
		if v, set := lookup(name); set && v != "" {
			return v, name, true
		}
	}
	return "", "", false
}
