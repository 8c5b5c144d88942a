package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/warden/internal/client"
	"github.com/mattjoyce/warden/internal/config"
)

const (
	envAPIURL = "WARDEN_API_URL"
	envToken  = "WARDEN_TOKEN"
)

type rootOptions struct {
	configPath string
	apiURL     string
	token      string
	timeout    time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "warden",
		Short: "Supervise asynchronous hook scripts for a workload controller",
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file or directory")
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "Daemon API base URL (default $"+envAPIURL+" or the configured listen address)")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token (default $"+envToken+" or the configured api_key)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout for API calls")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newScriptsCmd(opts))
	root.AddCommand(newJobsCmd(opts))
	root.AddCommand(newFlushCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newRunsCmd(opts))
	root.AddCommand(newAnomaliesCmd(opts))
	root.AddCommand(newEventsCmd(opts))
	root.AddCommand(newMonitorCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// client builds an API client from flags, then the environment, then the
// config file when one can be found.
func (o *rootOptions) client(timeout time.Duration) *client.Client {
	url := firstNonEmpty(o.apiURL, os.Getenv(envAPIURL))
	token := firstNonEmpty(o.token, os.Getenv(envToken))

	if url == "" || token == "" {
		if path, err := config.Resolve(o.configPath); err == nil {
			if cfg, err := config.Load(path); err == nil {
				url = firstNonEmpty(url, "http://"+cfg.API.Listen)
				token = firstNonEmpty(token, cfg.API.Auth.APIKey)
			}
		}
	}
	url = firstNonEmpty(url, "http://"+config.Defaults().API.Listen)

	return client.New(url, token, timeout)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
