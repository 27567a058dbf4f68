// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modhost.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/modhost/modhost/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "modhost",
		Short: "A host for hot-reloadable chat bot modules",
		Long: TitleStyle.Render("modhost") + SubtitleStyle.Render(" - a host for hot-reloadable chat bot modules") + `

modhost loads modules that register commands, buttons, modals and select
menus, routes interactions to them and lets operators enable, disable and
reload modules while the host keeps running.

Modules are compiled into the binary or declared in a module.cue or
module.toml manifest whose handlers are shell scripts.

` + SubtitleStyle.Render("Examples:") + `
  modhost serve                  Run the host with the HTTP adapter
  modhost modules validate       Check manifests and dependencies
  modhost modules disable echo   Disable a module on the next reload
  modhost config init            Write the default configuration`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&app.flags.configPath, "config", "", "config file (default is <config dir>/config.cue)")
	pf.StringVar(&app.flags.configDir, "config-dir", "", "config directory (default is $XDG_CONFIG_HOME/modhost)")

	root.AddCommand(
		newServeCommand(app),
		newModulesCommand(app),
		newConfigCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// handleError prints actionable errors with their suggestions, and in
// verbose mode their guidance. Other errors get fang's default styling.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.flags.verbose))
	if a.flags.verbose {
		if guidance, gerr := ae.Guidance(""); gerr == nil && guidance != "" {
			fmt.Fprint(w, guidance)
		}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
