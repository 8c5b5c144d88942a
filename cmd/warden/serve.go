package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/warden/internal/api"
	"github.com/mattjoyce/warden/internal/auth"
	"github.com/mattjoyce/warden/internal/config"
	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/lock"
	"github.com/mattjoyce/warden/internal/log"
	"github.com/mattjoyce/warden/internal/runlog"
	"github.com/mattjoyce/warden/internal/storage"
	"github.com/mattjoyce/warden/internal/track"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the warden daemon",
		Long: `Run the warden daemon.

SIGHUP flushes every tracked script when tracker.flush_on_reload is set.
SIGINT and SIGTERM flush (when tracker.flush_on_shutdown is set), stop the
API and close the tracker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts.configPath, dbPath)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the SQLite run log (overrides state.path)")
	return cmd
}

func runServe(ctx context.Context, configPath, dbPath string) error {
	path, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("discover config: %w", err)
	}
	if configPath == "" {
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.State.Path = dbPath
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("warden starting", "version", version, "config", path)

	pidLockPath := lock.PathFor(cfg.State.Path)
	pidLock, err := lock.AcquirePIDLock(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return err
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return err
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	ln, err := net.Listen("tcp", cfg.API.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.API.Listen, err)
	}

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	d := newDaemon(cfg, db, logger, nil)
	if err := d.run(ctx, ln, reload); err != nil {
		logger.Error("daemon failed", "error", err)
		return err
	}
	logger.Info("warden stopped")
	return nil
}

// daemon wires the tracker to its event hub, run log and API.
type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	hub     *events.Hub
	tracker *track.Tracker
	runs    *runlog.Log
	api     *api.Server
}

// newDaemon builds the daemon. A nil killer signals real process groups.
func newDaemon(cfg *config.Config, db *sql.DB, logger *slog.Logger, killer track.Killer) *daemon {
	hub := events.NewHub(cfg.Events.Buffer)
	tracker := track.New(track.Options{
		CleanupTimeout: cfg.Tracker.CleanupTimeout,
		Killer:         killer,
		Logger:         log.WithComponent("track"),
		Events:         hub,
	})
	runs := runlog.New(db)

	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
	for _, t := range cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{
			Token:  t.Token,
			Scopes: t.Scopes,
		})
	}
	apiConfig := api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.Auth.APIKey,
		Tokens: tokens,

		FlushTimeout: cfg.API.FlushTimeout,
	}

	return &daemon{
		cfg:     cfg,
		logger:  logger,
		hub:     hub,
		tracker: tracker,
		runs:    runs,
		api:     api.New(apiConfig, tracker, runs, hub, log.WithComponent("api")),
	}
}

// run serves until ctx is done or a component fails. The API keeps serving
// through the shutdown flush so that workers can still report their exits.
func (d *daemon) run(ctx context.Context, ln net.Listener, reload <-chan os.Signal) error {
	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()

	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		if err := d.api.Serve(gctx, ln); err != nil {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return d.runs.Follow(gctx, d.hub, log.WithComponent("runlog"))
	})

	d.logger.Info("warden running (press Ctrl+C to stop)", "listen", ln.Addr().String())

	failed := false
loop:
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("received shutdown signal")
			break loop
		case sig := <-reload:
			if !d.cfg.Tracker.ShouldFlushOnReload() {
				d.logger.Info("reload requested, flush disabled", "signal", sig)
				continue
			}
			d.flush("reload")
		case <-gctx.Done():
			failed = true
			break loop
		}
	}

	if !failed && d.cfg.Tracker.ShouldFlushOnShutdown() {
		d.flush("shutdown")
	}

	stopServing()
	err := g.Wait()
	d.tracker.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *daemon) flush(reason string) {
	active := d.tracker.Stats().Active
	d.logger.Info("flushing tracked scripts", "reason", reason, "count", active)
	start := time.Now()
	d.tracker.Flush()
	d.logger.Info("flush complete", "reason", reason, "count", active, "duration", time.Since(start))
}
