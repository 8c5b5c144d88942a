package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "WARDEN_CONFIG"

// Discover finds the config file by checking standard locations.
// Priority order: $WARDEN_CONFIG, ~/.config/warden/config.yaml,
// /etc/warden/config.yaml, ./config.yaml.
func Discover() (string, error) {
	for _, candidate := range candidates() {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: $%s, ~/.config/warden/config.yaml, /etc/warden/config.yaml, ./config.yaml)", EnvConfigPath)
}

func candidates() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "warden", "config.yaml"))
	}
	return append(paths, "/etc/warden/config.yaml", "config.yaml")
}

// Resolve returns path when it is set and otherwise falls back to Discover.
func Resolve(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return Discover()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
