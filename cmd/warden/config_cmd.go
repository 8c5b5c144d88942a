package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/warden/internal/config"
)

const redacted = "<redacted>"

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate, show and lock the configuration",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			files, err := config.Files(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid: %s\n", path)
			for _, f := range files {
				fmt.Fprintf(out, "  %s\n", f)
			}
			fmt.Fprintf(out, "listen=%s state=%s cleanup_timeout=%s tokens=%d\n",
				cfg.API.Listen, cfg.State.Path, cfg.Tracker.CleanupTimeout, len(cfg.API.Auth.Tokens))
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			redact(cfg)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}

	var dryRun bool
	lock := &cobra.Command{
		Use:   "lock",
		Short: "Write BLAKE3 checksum manifests for every config file",
		Long: `Write a .checksums manifest next to every configuration file.

Once a directory carries a manifest, loading fails if any of its files
changes without re-running "warden config lock".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Resolve(opts.configPath)
			if err != nil {
				return err
			}
			report, err := config.Lock(path, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			files := make([]string, 0, len(report.Files))
			for f := range report.Files {
				files = append(files, f)
			}
			sort.Strings(files)
			for _, f := range files {
				fmt.Fprintf(out, "%s  %s\n", report.Files[f], f)
			}
			verb := "Wrote"
			if dryRun {
				verb = "Would write"
			}
			for _, m := range report.Manifests {
				fmt.Fprintf(out, "%s %s\n", verb, m)
			}
			return nil
		},
	}
	lock.Flags().BoolVar(&dryRun, "dry-run", false, "Print hashes without writing manifests")

	cmd.AddCommand(check, show, lock)
	return cmd
}

func loadConfig(configPath string) (string, *config.Config, error) {
	path, err := config.Resolve(configPath)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", nil, err
	}
	return path, cfg, nil
}

func redact(cfg *config.Config) {
	if cfg.API.Auth.APIKey != "" {
		cfg.API.Auth.APIKey = redacted
	}
	for i := range cfg.API.Auth.Tokens {
		cfg.API.Auth.Tokens[i].Token = redacted
	}
}
