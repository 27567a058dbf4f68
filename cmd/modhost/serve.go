// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/modhost/modhost/internal/app"
)

type serveFlagValues struct {
	httpAddr string
	sshAddr  string
	watch    bool
}

// newServeCommand creates the `modhost serve` command.
func newServeCommand(a *App) *cobra.Command {
	var flags serveFlagValues
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the modules and serve interactions",
		Long: `Load every enabled module and serve interactions until interrupted.

The HTTP adapter accepts interaction events on POST /interactions and
exposes the module admin API under /api. The SSH console, when enabled,
accepts the same interactions as typed lines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a, flags)
		},
	}
	cmd.Flags().StringVar(&flags.httpAddr, "http", "", "HTTP listen address (overrides http.addr and enables the adapter)")
	cmd.Flags().StringVar(&flags.sshAddr, "ssh", "", "SSH console listen address (overrides ssh.addr and enables the console)")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "reload automatically when manifests change")
	return cmd
}

func runServe(cmd *cobra.Command, a *App, flags serveFlagValues) error {
	ctx := cmd.Context()
	resolved, err := a.resolveConfig(ctx)
	if err != nil {
		return err
	}
	cfg := resolved.Config
	if flags.httpAddr != "" {
		cfg.HTTP.Enabled = true
		cfg.HTTP.Addr = flags.httpAddr
	}
	if flags.sshAddr != "" {
		cfg.SSH.Enabled = true
		cfg.SSH.Addr = flags.sshAddr
	}
	if flags.watch {
		cfg.Watch.Enabled = true
	}

	logger, err := a.newLogger(cfg)
	if err != nil {
		return err
	}
	if resolved.Path != "" {
		logger.Debug("configuration loaded", "path", resolved.Path)
	}

	host, err := app.New(ctx, app.Options{
		Config:  cfg,
		Logger:  logger,
		Catalog: a.Catalog,
	})
	if err != nil {
		return err
	}
	defer host.Close()
	return host.Run(ctx)
}
