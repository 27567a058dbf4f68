// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/issue"
	"github.com/modhost/modhost/internal/logging"
	"github.com/modhost/modhost/internal/source"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every command handler receives an App.
	App struct {
		Config  config.Provider
		Catalog *source.Catalog
		stdout  io.Writer
		stderr  io.Writer
		flags   rootFlagValues
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  config.Provider
		Catalog *source.Catalog
		Stdout  io.Writer
		Stderr  io.Writer
	}

	rootFlagValues struct {
		verbose    bool
		configPath string
		configDir  string
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:  deps.Config,
		Catalog: deps.Catalog,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Catalog == nil {
		app.Catalog = source.Default()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		ConfigDirPath:  a.flags.configDir,
	}
}

// resolveConfig loads the configuration selected by the global flags.
func (a *App) resolveConfig(ctx context.Context) (*config.Resolved, error) {
	r, err := a.Config.Resolve(ctx, a.loadOptions())
	if err == nil {
		return r, nil
	}
	if issue.Classify(err) != 0 {
		return nil, err
	}
	return nil, issue.Fail(issue.ConfigLoadFailedId).On(a.flags.configPath).Because(err)
}

// newLogger builds the process logger. --verbose forces debug level.
func (a *App) newLogger(cfg *config.Config) (*log.Logger, error) {
	level := cfg.Log.Level
	if a.flags.verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: string(cfg.Log.Format),
		Output: a.stderr,
	})
}
