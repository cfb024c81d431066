package secrets

import (
	"context"
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

const keyringService = "openllm"

// keyringProbeKey is written and removed once to confirm the OS credential
// service actually works; on headless Linux the D-Bus secret service is
// often missing.
const keyringProbeKey = "__openllm_probe__"

// KeyringStore persists credentials in the OS credential manager (macOS
// Keychain, Windows Credential Manager, freedesktop Secret Service).
type KeyringStore struct {
	service string

	probeOnce sync.Once
	available bool
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: keyringService}
}

func (s *KeyringStore) Name() string { return "keychain" }

func (s *KeyringStore) IsAvailable(_ context.Context) bool {
	s.probeOnce.Do(func() {
		if err := keyring.Set(s.service, keyringProbeKey, "ok"); err != nil {
			return
		}
		_ = keyring.Delete(s.service, keyringProbeKey)
		s.available = true
	})
	return s.available
}

func (s *KeyringStore) Get(ctx context.Context, key string) (string, error) {
	if !s.IsAvailable(ctx) {
		return "", ErrUnavailable
	}
	v, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", errors.Join(ErrUnavailable, err)
	}
	return v, nil
}

func (s *KeyringStore) Store(ctx context.Context, key, value string) error {
	if !s.IsAvailable(ctx) {
		return ErrUnavailable
	}
	if err := keyring.Set(s.service, key, value); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func (s *KeyringStore) Delete(ctx context.Context, key string) error {
	if !s.IsAvailable(ctx) {
		return ErrUnavailable
	}
	if err := keyring.Delete(s.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func (s *KeyringStore) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *KeyringStore) GetInfo(ctx context.Context) SourceInfo {
	return SourceInfo{
		Name:      "keychain",
		Available: s.IsAvailable(ctx),
		Detail:    "OS credential manager",
	}
}
