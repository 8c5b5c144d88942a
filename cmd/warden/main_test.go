package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/mattjoyce/warden/internal/api"
	"github.com/mattjoyce/warden/internal/client"
	"github.com/mattjoyce/warden/internal/config"
	"github.com/mattjoyce/warden/internal/storage"
	"github.com/mattjoyce/warden/internal/track"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, out)
	}
	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Fatalf("incomplete version info: %+v", info)
	}
}

func TestNormalizeBuildTimeUTC(t *testing.T) {
	got, ok := normalizeBuildTimeUTC("2026-03-01T14:00:00+02:00")
	if !ok || got != "2026-03-01T12:00:00Z" {
		t.Fatalf("normalizeBuildTimeUTC = %q, %v", got, ok)
	}
	if _, ok := normalizeBuildTimeUTC("unknown"); ok {
		t.Fatal("unknown build time should not normalize")
	}
	if got := shortenCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("shortenCommit = %q", got)
	}
}

func TestConfigCheck(t *testing.T) {
	path := writeConfig(t, "api:\n  listen: 127.0.0.1:9999\n")
	out, err := execute(t, "--config", path, "config", "check")
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "listen=127.0.0.1:9999") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	bad := writeConfig(t, "service:\n  log_format: xml\n")
	if _, err := execute(t, "--config", bad, "config", "check"); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	path := writeConfig(t, `
api:
  auth:
    api_key: topsecret
    tokens:
      - token: alsosecret
        scopes: [scripts:ro]
`)
	out, err := execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "topsecret") || strings.Contains(out, "alsosecret") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, redacted) || !strings.Contains(out, "scripts:ro") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestConfigLock(t *testing.T) {
	path := writeConfig(t, "service:\n  name: locked\n")

	out, err := execute(t, "--config", path, "config", "lock", "--dry-run")
	if err != nil {
		t.Fatalf("config lock --dry-run: %v", err)
	}
	if !strings.Contains(out, "Would write") {
		t.Fatalf("unexpected dry-run output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), ".checksums")); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote a manifest: %v", err)
	}

	if _, err := execute(t, "--config", path, "config", "lock"); err != nil {
		t.Fatalf("config lock: %v", err)
	}
	if err := os.WriteFile(path, []byte("service:\n  name: tampered\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", path, "config", "check"); err == nil {
		t.Fatal("expected tampered config to fail verification")
	}
}

func TestJobsKillRejectsBadID(t *testing.T) {
	_, err := execute(t, "--api-url", "http://127.0.0.1:1", "jobs", "kill", "not-a-number")
	if err == nil || !strings.Contains(err.Error(), "invalid job id") {
		t.Fatalf("err = %v, want invalid job id", err)
	}
}

type testDaemon struct {
	client *client.Client
	reload chan os.Signal
	killed chan int
	cancel context.CancelFunc
	done   chan error
}

func startDaemon(t *testing.T, mutate func(*config.Config)) *testDaemon {
	t.Helper()

	cfg := config.Defaults()
	cfg.State.Path = filepath.Join(t.TempDir(), "warden.db")
	cfg.API.Auth.APIKey = "k"
	if mutate != nil {
		mutate(cfg)
	}

	db, err := storage.OpenSQLite(context.Background(), cfg.State.Path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	td := &testDaemon{
		reload: make(chan os.Signal, 1),
		killed: make(chan int, 8),
		done:   make(chan error, 1),
	}
	killer := track.KillerFunc(func(pid int) error {
		td.killed <- pid
		return nil
	})
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	d := newDaemon(cfg, db, logger, killer)

	ctx, cancel := context.WithCancel(context.Background())
	td.cancel = cancel
	go func() { td.done <- d.run(ctx, ln, td.reload) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-td.done:
		case <-time.After(10 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	td.client = client.New("http://"+ln.Addr().String(), "k", 5*time.Second)
	waitHealthy(t, td.client)
	return td
}

func waitHealthy(t *testing.T, c *client.Client) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := c.Health(context.Background()); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("daemon never became healthy")
}

func waitKilled(t *testing.T, td *testDaemon) int {
	t.Helper()
	select {
	case pid := <-td.killed:
		return pid
	case <-time.After(5 * time.Second):
		t.Fatal("no script was killed")
		return 0
	}
}

func TestDaemonFlushesOnShutdown(t *testing.T) {
	td := startDaemon(t, nil)
	ctx := context.Background()

	owner, err := td.client.Register(ctx, api.RegisterRequest{JobID: 9, PID: 4242})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	td.cancel()
	if pid := waitKilled(t, td); pid != 4242 {
		t.Fatalf("killed pid = %d, want 4242", pid)
	}

	// The API stays up while the flush waits for the worker.
	resp, err := td.client.Exit(ctx, owner, api.ExitRequest{Signaled: true, Signal: int(syscall.SIGKILL)})
	if err != nil {
		t.Fatalf("Exit during shutdown flush: %v", err)
	}
	if !resp.Killed {
		t.Fatal("script claimed by the shutdown flush must be reported as killed")
	}

	select {
	case err := <-td.done:
		if err != nil {
			t.Fatalf("run() = %v", err)
		}
		td.done <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after the flush")
	}
}

func TestDaemonSkipsShutdownFlushWhenDisabled(t *testing.T) {
	off := false
	td := startDaemon(t, func(cfg *config.Config) {
		cfg.Tracker.FlushOnShutdown = &off
	})

	if _, err := td.client.Register(context.Background(), api.RegisterRequest{JobID: 1, PID: 77}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	td.cancel()

	select {
	case err := <-td.done:
		if err != nil {
			t.Fatalf("run() = %v", err)
		}
		td.done <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	select {
	case pid := <-td.killed:
		t.Fatalf("pid %d killed with flush_on_shutdown disabled", pid)
	default:
	}
}

func TestDaemonFlushesOnReload(t *testing.T) {
	td := startDaemon(t, func(cfg *config.Config) {
		cfg.Tracker.CleanupTimeout = 100 * time.Millisecond
	})
	ctx := context.Background()

	if _, err := td.client.Register(ctx, api.RegisterRequest{JobID: 3, PID: 31}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	td.reload <- syscall.SIGHUP

	if pid := waitKilled(t, td); pid != 31 {
		t.Fatalf("killed pid = %d, want 31", pid)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, err := td.client.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.Flushes == 1 && stats.Active == 0 && stats.Flushing == 0 {
			if stats.CleanupTimeouts != 1 {
				t.Fatalf("cleanup timeouts = %d, want 1", stats.CleanupTimeouts)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reload flush did not finish: %+v", stats)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// The daemon keeps serving after a reload.
	if _, err := td.client.Register(ctx, api.RegisterRequest{JobID: 4}); err != nil {
		t.Fatalf("Register after reload: %v", err)
	}
}

func TestDaemonFlushTimeoutFromConfig(t *testing.T) {
	td := startDaemon(t, func(cfg *config.Config) {
		cfg.API.FlushTimeout = 50 * time.Millisecond
		cfg.Tracker.CleanupTimeout = 300 * time.Millisecond
	})
	ctx := context.Background()

	if _, err := td.client.Register(ctx, api.RegisterRequest{JobID: 5, PID: 51}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := td.client.Flush(ctx)
	var apiErr *client.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusGatewayTimeout {
		t.Fatalf("Flush() error = %v, want 504", err)
	}
	if pid := waitKilled(t, td); pid != 51 {
		t.Fatalf("killed pid = %d, want 51", pid)
	}
}
