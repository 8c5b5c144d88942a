package config

import "time"

// Config represents the complete warden configuration.
type Config struct {
	Include []string      `yaml:"include,omitempty"`
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	API     APIConfig     `yaml:"api"`
	Tracker TrackerConfig `yaml:"tracker"`
	Events  EventsConfig  `yaml:"events"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines where the run log database lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen string        `yaml:"listen"`
	Auth   APIAuthConfig `yaml:"auth"`
	// FlushTimeout bounds how long POST /flush waits before answering 504.
	// The flush itself carries on. Zero waits for the flush to finish.
	FlushTimeout time.Duration `yaml:"flush_timeout,omitempty"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is a single bearer token with full access.
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// TrackerConfig tunes the script tracker.
type TrackerConfig struct {
	// CleanupTimeout bounds how long a flush waits for each killed script's
	// worker to acknowledge.
	CleanupTimeout  time.Duration `yaml:"cleanup_timeout"`
	FlushOnReload   *bool         `yaml:"flush_on_reload,omitempty"`
	FlushOnShutdown *bool         `yaml:"flush_on_shutdown,omitempty"`
}

// ShouldFlushOnReload reports whether SIGHUP triggers a flush.
func (t TrackerConfig) ShouldFlushOnReload() bool {
	return t.FlushOnReload == nil || *t.FlushOnReload
}

// ShouldFlushOnShutdown reports whether the daemon flushes before exiting.
func (t TrackerConfig) ShouldFlushOnShutdown() bool {
	return t.FlushOnShutdown == nil || *t.FlushOnShutdown
}

// EventsConfig sizes the in-memory event ring.
type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "warden",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/warden.db",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8470",
		},
		Tracker: TrackerConfig{
			CleanupTimeout: 5 * time.Second,
		},
		Events: EventsConfig{
			Buffer: 256,
		},
	}
}
