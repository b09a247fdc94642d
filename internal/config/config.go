package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig holds backend connection settings
type APIConfig struct {
	// BaseURL is the backend REST root, including the /api/v1 prefix
	BaseURL string `json:"base_url" yaml:"base_url"`
	Timeout string `json:"timeout" yaml:"timeout"`

	// LoginPath is where the client sends the user after a 401
	LoginPath string `json:"login_path" yaml:"login_path"`
}

// AuthConfig holds settings for the external login redirect
type AuthConfig struct {
	// LoginURL is the backend entry point that starts the OAuth dance and
	// redirects back with token, name, email and user_id query parameters
	LoginURL string `json:"login_url" yaml:"login_url"`

	// CallbackAddr is the local address the CLI listens on for the redirect
	CallbackAddr    string `json:"callback_addr" yaml:"callback_addr"`
	CallbackTimeout string `json:"callback_timeout" yaml:"callback_timeout"`
}

// StorageConfig controls local persistence
type StorageConfig struct {
	// DBPath is the SQLite file holding the session, preferences and snapshots
	DBPath string `json:"db_path" yaml:"db_path"`

	// SnapshotsEnabled persists the last successful response of every store
	SnapshotsEnabled bool `json:"snapshots_enabled" yaml:"snapshots_enabled"`
}

// CalendarConfig holds defaults for the calendar events query
type CalendarConfig struct {
	Days  int `json:"days" yaml:"days"`
	Limit int `json:"limit" yaml:"limit"`
}

// DraftConfig holds defaults for AI drafting
type DraftConfig struct {
	Tone string `json:"tone" yaml:"tone"`
}

// Config holds all configuration for the Kyra client
type Config struct {
	API      APIConfig      `json:"api" yaml:"api"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Calendar CalendarConfig `json:"calendar" yaml:"calendar"`
	Draft    DraftConfig    `json:"draft" yaml:"draft"`

	// Logging
	LogFile string `json:"log_file" yaml:"log_file"`

	// RowWidth is the column budget for list output
	RowWidth int `json:"row_width" yaml:"row_width"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API:      DefaultAPIConfig(),
		Auth:     DefaultAuthConfig(),
		Storage:  DefaultStorageConfig(),
		Calendar: DefaultCalendarConfig(),
		Draft:    DraftConfig{Tone: "Professional"},
		LogFile:  "",
		RowWidth: 100,
	}
}

// DefaultAPIConfig returns default backend settings
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:   "http://localhost:8000/api/v1",
		Timeout:   "30s",
		LoginPath: "/auth/login",
	}
}

// DefaultAuthConfig returns default login settings
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		LoginURL:        "http://localhost:8000/api/v1/auth/login",
		CallbackAddr:    "localhost:8765",
		CallbackTimeout: "5m",
	}
}

// DefaultStorageConfig returns default persistence settings
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DBPath:           "",
		SnapshotsEnabled: true,
	}
}

// DefaultCalendarConfig mirrors the backend defaults for /calendar/events
func DefaultCalendarConfig() CalendarConfig {
	return CalendarConfig{
		Days:  7,
		Limit: 10,
	}
}

// LoadConfig loads configuration from a JSON or YAML file. A missing file
// yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if isYAML(configPath) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file settings from KYRA_* environment variables
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("KYRA_API_URL")); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("KYRA_LOGIN_URL")); v != "" {
		c.Auth.LoginURL = v
	}
	if v := strings.TrimSpace(os.Getenv("KYRA_DB")); v != "" {
		c.Storage.DBPath = ExpandPath(v)
	}
	if v := strings.TrimSpace(os.Getenv("KYRA_LOG_FILE")); v != "" {
		c.LogFile = ExpandPath(v)
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base_url %q", c.API.BaseURL)
	}

	if c.API.Timeout != "" {
		if _, err := time.ParseDuration(c.API.Timeout); err != nil {
			return fmt.Errorf("invalid api timeout: %w", err)
		}
	}

	if c.Auth.CallbackTimeout != "" {
		if _, err := time.ParseDuration(c.Auth.CallbackTimeout); err != nil {
			return fmt.Errorf("invalid callback timeout: %w", err)
		}
	}

	if !strings.HasPrefix(c.API.LoginPath, "/") {
		return fmt.Errorf("login_path must start with /")
	}

	if c.Calendar.Days < 0 || c.Calendar.Limit < 0 {
		return fmt.Errorf("calendar days and limit cannot be negative")
	}

	return nil
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.json")
}

// DefaultConfigDir returns ~/.config/kyra
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "kyra")
}

// DefaultDBPath returns the default SQLite path
func DefaultDBPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "kyra.sqlite3")
}

// DefaultLogPath returns the default log file path
func DefaultLogPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "kyra.log")
}

// GetDBPath returns the configured database path or the default one
func (c *Config) GetDBPath() string {
	if strings.TrimSpace(c.Storage.DBPath) != "" {
		return ExpandPath(c.Storage.DBPath)
	}
	return DefaultDBPath()
}

// SaveConfig saves the configuration to a file, as YAML when the extension
// asks for it
func (c *Config) SaveConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetAPITimeout returns parsed timeout for backend requests
func (c *Config) GetAPITimeout() time.Duration {
	if c.API.Timeout != "" {
		if d, err := time.ParseDuration(c.API.Timeout); err == nil {
			return d
		}
	}
	return 30 * time.Second
}

// GetCallbackTimeout returns how long the CLI waits for the login redirect
func (c *Config) GetCallbackTimeout() time.Duration {
	if c.Auth.CallbackTimeout != "" {
		if d, err := time.ParseDuration(c.Auth.CallbackTimeout); err == nil {
			return d
		}
	}
	return 5 * time.Minute
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}

	return filepath.Join(home, path[2:])
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
