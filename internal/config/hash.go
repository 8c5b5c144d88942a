package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumManifest is the content of a .checksums file. Hashes are keyed by
// file basename.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// LockReport lists the manifests written by Lock.
type LockReport struct {
	Manifests []string
	Files     map[string]string
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}
	return nil
}

// Lock hashes the config file and its includes and writes one .checksums
// manifest per directory. When dryRun is true nothing is written.
func Lock(configPath string, dryRun bool) (*LockReport, error) {
	files, err := Files(configPath)
	if err != nil {
		return nil, err
	}

	report := &LockReport{Files: make(map[string]string, len(files))}
	manifests := make(map[string]*ChecksumManifest)
	now := time.Now().UTC().Format(time.RFC3339)

	for _, path := range files {
		hash, err := ComputeBlake3Hash(path)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", path, err)
		}
		report.Files[path] = hash

		dir := filepath.Dir(path)
		m, ok := manifests[dir]
		if !ok {
			m = &ChecksumManifest{Version: 1, GeneratedAt: now, Hashes: make(map[string]string)}
			manifests[dir] = m
		}
		m.Hashes[filepath.Base(path)] = hash
	}

	dirs := make([]string, 0, len(manifests))
	for dir := range manifests {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		checksumPath := filepath.Join(dir, ".checksums")
		report.Manifests = append(report.Manifests, checksumPath)
		if dryRun {
			continue
		}

		data, err := yaml.Marshal(manifests[dir])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal checksums: %w", err)
		}
		// Restrictive permissions: the manifest holds expected hashes.
		if err := os.WriteFile(checksumPath, data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write checksums: %w", err)
		}
	}
	return report, nil
}

// LoadChecksums reads the .checksums file from a config directory.
func LoadChecksums(configDir string) (*ChecksumManifest, error) {
	checksumPath := filepath.Join(configDir, ".checksums")

	data, err := os.ReadFile(checksumPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checksums file not found (run 'warden config lock')")
		}
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}

	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	return &manifest, nil
}
