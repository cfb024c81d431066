package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/openllm/openllm-go/secrets"
)

// SecretStore adapts a bridge client into the secrets.SecretStore
// contract, so a host endpoint can sit in a resolver chain like any
// other backend. A dead channel reads as unavailable, never as an error
// that stops the chain.
type SecretStore struct {
	client *Client
}

func NewSecretStore(client *Client) *SecretStore {
	return &SecretStore{client: client}
}

func (s *SecretStore) Name() string {
	return "host:" + s.client.Endpoint().Name
}

func (s *SecretStore) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx) == nil
}

func (s *SecretStore) Get(ctx context.Context, key string) (string, error) {
	var res struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	if err := s.client.Call(ctx, MethodSecretsGet, map[string]any{"key": key}, &res); err != nil {
		return "", errors.Join(secrets.ErrUnavailable, err)
	}
	if !res.Found {
		return "", secrets.ErrNotFound
	}
	return res.Value, nil
}

func (s *SecretStore) Store(ctx context.Context, key, value string) error {
	params := map[string]any{"key": key, "value": value}
	if err := s.client.Call(ctx, MethodSecretsStore, params, nil); err != nil {
		return errors.Join(secrets.ErrUnavailable, err)
	}
	return nil
}

func (s *SecretStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Call(ctx, MethodSecretsDelete, map[string]any{"key": key}, nil); err != nil {
		return errors.Join(secrets.ErrUnavailable, err)
	}
	return nil
}

func (s *SecretStore) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SecretStore) GetInfo(ctx context.Context) secrets.SourceInfo {
	return secrets.SourceInfo{
		Name:      s.Name(),
		Available: s.IsAvailable(ctx),
		Detail:    "Host endpoint " + s.client.Endpoint().Name,
	}
}
