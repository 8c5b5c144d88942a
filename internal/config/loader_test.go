package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr bool
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty config gets defaults",
			yaml: "{}\n",
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.Name != "warden" {
					t.Errorf("service.name = %q, want warden", cfg.Service.Name)
				}
				if cfg.API.Listen != "127.0.0.1:8470" {
					t.Errorf("api.listen = %q", cfg.API.Listen)
				}
				if cfg.Tracker.CleanupTimeout != 5*time.Second {
					t.Errorf("tracker.cleanup_timeout = %v, want 5s", cfg.Tracker.CleanupTimeout)
				}
				if !cfg.Tracker.ShouldFlushOnReload() || !cfg.Tracker.ShouldFlushOnShutdown() {
					t.Error("flush toggles should default to true")
				}
				if cfg.API.FlushTimeout != 0 {
					t.Errorf("api.flush_timeout = %v, want no bound", cfg.API.FlushTimeout)
				}
				if cfg.Events.Buffer != 256 {
					t.Errorf("events.buffer = %d, want 256", cfg.Events.Buffer)
				}
			},
		},
		{
			name: "tracker settings",
			yaml: `
tracker:
  cleanup_timeout: 250ms
  flush_on_reload: false
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Tracker.CleanupTimeout != 250*time.Millisecond {
					t.Errorf("tracker.cleanup_timeout = %v", cfg.Tracker.CleanupTimeout)
				}
				if cfg.Tracker.ShouldFlushOnReload() {
					t.Error("flush_on_reload not parsed")
				}
				if !cfg.Tracker.ShouldFlushOnShutdown() {
					t.Error("flush_on_shutdown should keep its default")
				}
			},
		},
		{
			name: "api flush timeout",
			yaml: `
api:
  flush_timeout: 30s
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.API.FlushTimeout != 30*time.Second {
					t.Errorf("api.flush_timeout = %v, want 30s", cfg.API.FlushTimeout)
				}
			},
		},
		{
			name: "negative flush timeout",
			yaml: `
api:
  flush_timeout: -1s
`,
			wantErr: true,
		},
		{
			name: "env var interpolation",
			yaml: `
state:
  path: ${WARDEN_TEST_DB}
api:
  auth:
    tokens:
      - token: ${WARDEN_TEST_TOKEN}
        scopes: [scripts:rw]
`,
			env: map[string]string{
				"WARDEN_TEST_DB":    "/tmp/warden.db",
				"WARDEN_TEST_TOKEN": "secret123",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.State.Path != "/tmp/warden.db" {
					t.Errorf("env var not interpolated in state.path: %s", cfg.State.Path)
				}
				if len(cfg.API.Auth.Tokens) != 1 || cfg.API.Auth.Tokens[0].Token != "secret123" {
					t.Error("env var not interpolated in api token")
				}
			},
		},
		{
			name: "missing env var fails validation",
			yaml: `
api:
  auth:
    api_key: ${WARDEN_TEST_MISSING}
`,
			wantErr: true,
		},
		{
			name: "invalid log level",
			yaml: `
service:
  log_level: invalid
`,
			wantErr: true,
		},
		{
			name: "invalid log format",
			yaml: `
service:
  log_format: xml
`,
			wantErr: true,
		},
		{
			name: "bad listen address",
			yaml: `
api:
  listen: nonsense
`,
			wantErr: true,
		},
		{
			name: "token without scopes",
			yaml: `
api:
  auth:
    tokens:
      - token: abc
`,
			wantErr: true,
		},
		{
			name: "unknown scope",
			yaml: `
api:
  auth:
    tokens:
      - token: abc
        scopes: [plugin:rw]
`,
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "service: [unterminated\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg, err := Load(configPath)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.yaml"), "service:\n  name: from-dir\n")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Service.Name != "from-dir" {
		t.Errorf("service.name = %q, want from-dir", cfg.Service.Name)
	}
}

func TestLoadIncludes(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, "conf.d"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(tmpDir, "config.yaml"), `
include:
  - conf.d/api.yaml
service:
  log_level: debug
api:
  auth:
    tokens:
      - token: root
        scopes: [admin]
`)
	writeFile(t, filepath.Join(tmpDir, "conf.d", "api.yaml"), `
include:
  - tracker.yaml
api:
  listen: 0.0.0.0:9000
  auth:
    tokens:
      - token: reader
        scopes: [scripts:ro]
`)
	writeFile(t, filepath.Join(tmpDir, "conf.d", "tracker.yaml"), "tracker:\n  cleanup_timeout: 2s\n")

	cfg, err := Load(filepath.Join(tmpDir, "config.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Service.LogLevel != "debug" {
		t.Errorf("service.log_level = %q", cfg.Service.LogLevel)
	}
	if cfg.API.Listen != "0.0.0.0:9000" {
		t.Errorf("api.listen = %q, want include to override", cfg.API.Listen)
	}
	if len(cfg.API.Auth.Tokens) != 2 {
		t.Errorf("len(tokens) = %d, want tokens from both files", len(cfg.API.Auth.Tokens))
	}
	if cfg.Tracker.CleanupTimeout != 2*time.Second {
		t.Errorf("nested include not applied: %v", cfg.Tracker.CleanupTimeout)
	}

	files, err := Files(tmpDir)
	if err != nil {
		t.Fatalf("Files() failed: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("Files() = %v, want 3 files", files)
	}
}

func TestLoadIncludeErrors(t *testing.T) {
	t.Run("missing include", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFile(t, filepath.Join(tmpDir, "config.yaml"), "include: [nope.yaml]\n")
		_, err := Load(tmpDir)
		if err == nil || !strings.Contains(err.Error(), "file not found") {
			t.Fatalf("Load() error = %v, want file not found", err)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFile(t, filepath.Join(tmpDir, "config.yaml"), "include: [a.yaml]\n")
		writeFile(t, filepath.Join(tmpDir, "a.yaml"), "include: [config.yaml]\n")
		_, err := Load(tmpDir)
		if err == nil || !strings.Contains(err.Error(), "circular") {
			t.Fatalf("Load() error = %v, want circular dependency", err)
		}
	})
}

func TestInterpolateEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple replacement",
			input: "path: ${WARDEN_TEST_HOME}/data",
			env:   map[string]string{"WARDEN_TEST_HOME": "/users/test"},
			want:  "path: /users/test/data",
		},
		{
			name:  "multiple vars",
			input: "${WARDEN_TEST_USER}:${WARDEN_TEST_PASS}",
			env: map[string]string{
				"WARDEN_TEST_USER": "admin",
				"WARDEN_TEST_PASS": "secret",
			},
			want: "admin:secret",
		},
		{
			name:  "undefined var unchanged",
			input: "key: ${WARDEN_TEST_UNDEFINED}",
			want:  "key: ${WARDEN_TEST_UNDEFINED}",
		},
		{
			name:  "no vars",
			input: "plain text",
			want:  "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got := interpolateEnv(tt.input)
			if got != tt.want {
				t.Errorf("interpolateEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiscover(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "warden.yaml")
	writeFile(t, configPath, "{}\n")

	t.Setenv(EnvConfigPath, configPath)
	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if got != configPath {
		t.Errorf("Discover() = %q, want %q", got, configPath)
	}

	got, err = Resolve("explicit.yaml")
	if err != nil || got != "explicit.yaml" {
		t.Errorf("Resolve() = %q, %v; want explicit path", got, err)
	}
}
