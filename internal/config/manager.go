package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoConfigFile is returned by Follow before a file was loaded
var ErrNoConfigFile = errors.New("no config file loaded")

// Manager holds the active configuration and tells subscribers when it
// changes
type Manager struct {
	mu      sync.RWMutex
	config  *Config
	subs    map[int]func(*Config)
	nextSub int

	configPath  string
	lastModTime time.Time
}

// NewManager creates a manager holding the defaults
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
		subs:   map[int]func(*Config){},
	}
}

// LoadFromFile loads configuration from a file, applies env overrides and validates it
func (m *Manager) LoadFromFile(configPath string) error {
	configPath = filepath.Clean(ExpandPath(configPath))

	var modTime time.Time
	if stat, err := os.Stat(configPath); err == nil {
		modTime = stat.ModTime()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		m.mu.Lock()
		m.lastModTime = modTime
		m.mu.Unlock()
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.applyDefaults(cfg)
	m.config = cfg
	m.configPath = configPath
	m.lastModTime = modTime
	calls := m.notifyWatchers(cfg)
	m.mu.Unlock()

	runAll(calls)
	return nil
}

// LoadFromDefaults loads default configuration
func (m *Manager) LoadFromDefaults() {
	cfg := DefaultConfig()
	cfg.ApplyEnv()

	m.mu.Lock()
	m.applyDefaults(cfg)
	m.config = cfg
	m.configPath = ""
	m.lastModTime = time.Time{}
	calls := m.notifyWatchers(cfg)
	m.mu.Unlock()

	runAll(calls)
}

// GetConfig returns a copy of the current configuration
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.copyConfig(m.config)
}

// UpdateConfig updates the configuration with validation
func (m *Manager) UpdateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.applyDefaults(cfg)
	m.config = m.copyConfig(cfg)
	calls := m.notifyWatchers(m.config)
	m.mu.Unlock()

	runAll(calls)
	return nil
}

// SaveToFile saves the current configuration to a file
func (m *Manager) SaveToFile(filePath string) error {
	m.mu.RLock()
	cfg := m.copyConfig(m.config)
	m.mu.RUnlock()

	if err := cfg.SaveConfig(filePath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Subscribe registers fn to receive every configuration applied after this
// call. fn runs on the goroutine that applied the change.
func (m *Manager) Subscribe(fn func(*Config)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Follow reloads the loaded file whenever it changes on disk until ctx is
// done or stop is called. A reload that fails validation keeps the current
// configuration and is passed to onErr. stop waits for the watcher to exit.
func (m *Manager) Follow(ctx context.Context, onErr func(error)) (stop func(), err error) {
	m.mu.RLock()
	path := m.configPath
	m.mu.RUnlock()
	if path == "" {
		return nil, ErrNoConfigFile
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to watch config: %w", err)
	}
	// Editors often replace the file, so watch the directory
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch config: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := m.reload(path); err != nil && onErr != nil {
					onErr(err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// reload re-reads path unless its modification time is unchanged. An empty
// file is a write in progress.
func (m *Manager) reload(path string) error {
	stat, err := os.Stat(path)
	if err != nil || stat.Size() == 0 {
		return nil
	}
	m.mu.RLock()
	seen := m.lastModTime
	m.mu.RUnlock()
	if stat.ModTime().Equal(seen) {
		return nil
	}
	return m.LoadFromFile(path)
}

// applyDefaults fills zero values that have no meaningful zero
func (m *Manager) applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.LoginPath == "" {
		cfg.API.LoginPath = defaults.API.LoginPath
	}
	if cfg.Auth.CallbackAddr == "" {
		cfg.Auth.CallbackAddr = defaults.Auth.CallbackAddr
	}
	if cfg.Calendar == (CalendarConfig{}) {
		cfg.Calendar = defaults.Calendar
	}
	if cfg.Draft.Tone == "" {
		cfg.Draft.Tone = defaults.Draft.Tone
	}
	if cfg.RowWidth <= 0 {
		cfg.RowWidth = defaults.RowWidth
	}
}

// copyConfig creates a copy of the configuration
func (m *Manager) copyConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}

	copy := *cfg
	return &copy
}

// notifyWatchers hands each subscriber its own copy of cfg. Called with
// m.mu held, so subscribers run after the lock is released.
func (m *Manager) notifyWatchers(cfg *Config) []func() {
	calls := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		fn, c := fn, m.copyConfig(cfg)
		calls = append(calls, func() { fn(c) })
	}
	return calls
}

func runAll(calls []func()) {
	for _, call := range calls {
		call()
	}
}
