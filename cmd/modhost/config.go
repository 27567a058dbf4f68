// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modhost/modhost/internal/config"
)

// newConfigCommand creates the `modhost config` command tree.
func newConfigCommand(a *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modhost configuration",
		Long: `Manage modhost configuration.

Configuration is stored in config.cue inside:
  - Linux: ~/.config/modhost
  - macOS: ~/Library/Application Support/modhost
  - Windows: %APPDATA%\modhost

Every key can be overridden with a MODHOST_ environment variable, for
example MODHOST_HTTP_ADDR.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration as CUE",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return showConfig(cmd.Context(), a)
			},
		},
		newConfigInitCommand(a),
		&cobra.Command{
			Use:   "path",
			Short: "Show configuration paths",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return showConfigPath(cmd.Context(), a)
			},
		},
	)
	return cfgCmd
}

func showConfig(ctx context.Context, a *App) error {
	r, err := a.resolveConfig(ctx)
	if err != nil {
		return err
	}
	source := SubtitleStyle.Render("(using defaults)")
	if r.Path != "" {
		source = r.Path
	}
	fmt.Fprintf(a.stdout, "%s %s\n\n", CmdStyle.Render("// Config file:"), source)
	shown := *r.Config
	if shown.SSH.Password != "" {
		shown.SSH.Password = "********"
	}
	fmt.Fprint(a.stdout, config.GenerateCUE(&shown))
	return nil
}

func (a *App) configDir() (string, error) {
	if a.flags.configDir != "" {
		return a.flags.configDir, nil
	}
	return config.ConfigDir()
}

func newConfigInitCommand(a *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(a, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration with the defaults")
	return cmd
}

func initConfig(a *App, force bool) error {
	dir, err := a.configDir()
	if err != nil {
		return err
	}
	path := config.ConfigFilePath(dir)
	existed := fileExists(path)

	switch {
	case existed && force:
		if err := config.Save(dir, config.DefaultConfig(dir)); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s Reset configuration at %s\n", SuccessStyle.Render("✓"), path)
	case existed:
		fmt.Fprintf(a.stdout, "%s Configuration already exists at %s (use --force to reset it)\n", WarningStyle.Render("!"), path)
	default:
		if _, err := config.CreateDefaultConfig(dir); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	}

	modsDir := config.DefaultConfig(dir).Modules.Dir
	if err := os.MkdirAll(modsDir, 0o755); err != nil {
		fmt.Fprintf(a.stderr, "%s failed to create modules directory %s: %v\n", WarningStyle.Render("!"), modsDir, err)
		return nil
	}
	fmt.Fprintf(a.stdout, "%s Modules directory is %s\n", SuccessStyle.Render("✓"), modsDir)
	return nil
}

func showConfigPath(ctx context.Context, a *App) error {
	r, err := a.resolveConfig(ctx)
	if err != nil {
		return err
	}
	file := r.Path
	if file == "" {
		file = config.ConfigFilePath(r.Dir) + " " + SubtitleStyle.Render("(not created)")
	}
	fmt.Fprintf(a.stdout, "Config directory: %s\n", r.Dir)
	fmt.Fprintf(a.stdout, "Config file: %s\n", file)
	fmt.Fprintf(a.stdout, "Modules directory: %s\n", r.Config.Modules.Dir)
	fmt.Fprintf(a.stdout, "Module state: %s\n", r.Config.Modules.StateFile)
	if r.Config.Journal.Enabled {
		fmt.Fprintf(a.stdout, "Journal: %s\n", r.Config.Journal.Path)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
