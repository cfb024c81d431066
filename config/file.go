package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// fileSchema is the on-disk document, identical at both scopes.
type fileSchema struct {
	Providers []ProviderConfigRecord `yaml:"providers" mapstructure:"providers"`
}

// UserConfigPath returns the user-scope file location,
// ~/.config/openllm/config.yaml.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "openllm", "config.yaml"), nil
}

// WorkspaceConfigPath returns the workspace-scope file location,
// <root>/.openllm/config.yaml.
func WorkspaceConfigPath(root string) string {
	return filepath.Join(root, ".openllm", "config.yaml")
}

// FileStore persists records as YAML at a fixed path. Reads go through
// viper; writes serialize the canonical schema with yaml.v3 and are
// mutually exclusive, so concurrent Upserts cannot interleave on disk.
type FileStore struct {
	scope Scope
	path  string

	mu       sync.Mutex
	watch    sync.Once
	watchers []func([]ProviderConfigRecord)
	watcher  *fsnotify.Watcher
	wmu      sync.Mutex
}

func NewFileStore(scope Scope, path string) *FileStore {
	return &FileStore{scope: scope, path: path}
}

// NewUserStore opens the user-scope store at its conventional path.
func NewUserStore() (*FileStore, error) {
	path, err := UserConfigPath()
	if err != nil {
		return nil, err
	}
	return NewFileStore(ScopeUser, path), nil
}

// NewWorkspaceStore opens the workspace-scope store under the given root.
func NewWorkspaceStore(root string) *FileStore {
	return NewFileStore(ScopeWorkspace, WorkspaceConfigPath(root))
}

func (s *FileStore) Scope() Scope { return s.scope }
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *FileStore) List(_ context.Context) ([]ProviderConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Providers, nil
}

func (s *FileStore) Upsert(_ context.Context, rec ProviderConfigRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	replaced := false
	for i, r := range doc.Providers {
		if r.Key() == rec.Key() {
			doc.Providers[i] = rec.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Providers = append(doc.Providers, rec.Clone())
	}
	return s.write(doc)
}

func (s *FileStore) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	key := strings.ToLower(name)
	kept := doc.Providers[:0]
	changed := false
	for _, r := range doc.Providers {
		if r.Key() == key {
			changed = true
			continue
		}
		kept = append(kept, r)
	}
	if !changed {
		return nil
	}
	doc.Providers = kept
	return s.write(doc)
}

// OnChange registers a callback fired with the new record set after the
// backing file changes on disk. Events are debounced; acting on them is
// the caller's business.
func (s *FileStore) OnChange(callback func([]ProviderConfigRecord)) {
	s.wmu.Lock()
	s.watchers = append(s.watchers, callback)
	s.wmu.Unlock()
	s.watch.Do(s.startWatch)
}

func (s *FileStore) read() (fileSchema, error) {
	var doc fileSchema
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return doc, nil
		}
		return doc, fmt.Errorf("config: read %s: %w", s.path, err)
	}
	if err := v.Unmarshal(&doc); err != nil {
		return doc, fmt.Errorf("config: parse %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) write(doc fileSchema) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: encode %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", s.path, err)
	}
	return nil
}

// Close shuts the change watcher down. Safe to call without OnChange
// ever having run.
func (s *FileStore) Close() error {
	s.wmu.Lock()
	w := s.watcher
	s.watcher = nil
	s.wmu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

func (s *FileStore) startWatch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return
	}
	s.wmu.Lock()
	s.watcher = watcher
	s.wmu.Unlock()

	go func() {
		var (
			debounce  *time.Timer
			debounceM sync.Mutex
			last      []ProviderConfigRecord
		)
		last, _ = s.List(context.Background())
		defer func() {
			debounceM.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounceM.Unlock()
		}()

		// The range ends when Close shuts the watcher down.
		for ev := range watcher.Events {
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			debounceM.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				current, err := s.List(context.Background())
				if err != nil {
					return
				}
				debounceM.Lock()
				same := reflect.DeepEqual(last, current)
				if !same {
					last = current
				}
				debounceM.Unlock()
				if same {
					return
				}
				s.wmu.Lock()
				callbacks := make([]func([]ProviderConfigRecord), len(s.watchers))
				copy(callbacks, s.watchers)
				s.wmu.Unlock()
				for _, cb := range callbacks {
					cb(current)
				}
			})
			debounceM.Unlock()
		}
	}()
}
