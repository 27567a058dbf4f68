// SPDX-License-Identifier: MPL-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/console"
	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/issue"
	"github.com/modhost/modhost/internal/journal"
	"github.com/modhost/modhost/internal/lifecycle"
	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/internal/script"
	"github.com/modhost/modhost/internal/source"
	"github.com/modhost/modhost/internal/watch"
	"github.com/modhost/modhost/internal/webhook"
	"github.com/modhost/modhost/pkg/module"
)

type (
	// Options configures an App. Config is required.
	Options struct {
		Config *config.Config
		Logger *log.Logger
		// Catalog holds the compiled modules. Nil means source.Default().
		Catalog *source.Catalog
		// Platform is the command registration API. Nil means an
		// in-memory registry.
		Platform module.CommandAPI
	}

	// App is the running host: one lifecycle controller with its router,
	// plus the adapters and background services enabled in the config.
	App struct {
		cfg        *config.Config
		logger     *log.Logger
		router     *interaction.Router
		controller *lifecycle.Controller
		journal    *journal.Journal

		web     *webhook.Server
		console *console.Server
	}
)

// New builds an App from opts. Nothing is loaded or served until Run.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	api := opts.Platform
	if api == nil {
		api = platform.NewMemory()
	}

	a := &App{cfg: cfg, logger: logger}
	a.router = interaction.New(api, logger)

	lopts := lifecycle.Options{
		Source: Source(cfg, opts.Catalog, logger),
		Router: a.router,
		Store:  config.NewModuleStore(cfg.Modules.StateFile),
		Logger: logger,
	}
	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return nil, issue.Fail(issue.JournalUnavailableId).
				On(cfg.Journal.Path).
				Suggest("Set journal.enabled to false to run without history").
				Because(err)
		}
		a.journal = j
		lopts.Recorder = j
	}

	ctl, err := lifecycle.New(lopts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.controller = ctl

	if err := a.buildAdapters(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Source returns the module source used by the host: the compiled catalog
// followed by the manifest directory.
func Source(cfg *config.Config, catalog *source.Catalog, logger *log.Logger) source.Source {
	if catalog == nil {
		catalog = source.Default()
	}
	runner := &script.Runner{
		AllowExec: cfg.Modules.AllowExec,
		Timeout:   cfg.Modules.ScriptTimeout,
	}
	return source.NewComposite(catalog, source.NewManifestDir(cfg.Modules.Dir, runner, logger))
}

func (a *App) buildAdapters() error {
	if a.cfg.HTTP.Enabled {
		opts := webhook.Options{
			Modules:        a.controller,
			Dispatcher:     a.router,
			AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
			Logger:         a.logger,
		}
		if a.journal != nil {
			opts.History = a.journal
		}
		web, err := webhook.New(opts)
		if err != nil {
			return err
		}
		a.web = web
	}

	if a.cfg.SSH.Enabled {
		if err := os.MkdirAll(filepath.Dir(a.cfg.SSH.HostKeyPath), 0o700); err != nil {
			return issue.Fail(issue.HostKeyUnavailableId).On(a.cfg.SSH.HostKeyPath).Because(err)
		}
		c, err := console.New(a.router, console.Config{
			HostKeyPath: a.cfg.SSH.HostKeyPath,
			Password:    a.cfg.SSH.Password,
			Logger:      a.logger,
		})
		if err != nil {
			return issue.Fail(issue.HostKeyUnavailableId).
				During("create SSH console").
				On(a.cfg.SSH.HostKeyPath).
				Because(err)
		}
		a.console = c
	}
	return nil
}

// Controller returns the lifecycle controller.
func (a *App) Controller() *lifecycle.Controller { return a.controller }

// Router returns the interaction router.
func (a *App) Router() *interaction.Router { return a.router }

// Run performs the initial reload, starts the enabled adapters and the
// manifest watcher, and blocks until ctx is done or an adapter fails.
// Everything started is stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.reload(ctx); err != nil {
		return err
	}

	var webErr, consoleErr, watchErr <-chan error
	defer a.stop()

	if a.web != nil {
		if err := a.web.Start(ctx, a.cfg.HTTP.Addr); err != nil {
			return startErr("http", a.cfg.HTTP.Addr, err)
		}
		webErr = a.web.Err()
	}
	if a.console != nil {
		if err := a.console.Start(ctx, a.cfg.SSH.Addr); err != nil {
			return startErr("ssh", a.cfg.SSH.Addr, err)
		}
		consoleErr = a.console.Err()
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if a.cfg.Watch.Enabled {
		ch, err := a.startWatcher(watchCtx)
		if err != nil {
			return err
		}
		watchErr = ch
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		return nil
	case err := <-webErr:
		return err
	case err := <-consoleErr:
		return err
	case err := <-watchErr:
		return fmt.Errorf("manifest watcher: %w", err)
	}
}

// reload runs a full reload. Partial failures are logged; only a reload
// that could not run at all is returned.
func (a *App) reload(ctx context.Context) error {
	rep, err := a.controller.Reload(ctx)
	if rep == nil {
		return issue.Fail(issue.ReloadFailedId).On(a.cfg.Modules.StateFile).Because(err)
	}
	a.logger.Info("modules reloaded", "summary", rep.Summary(), "took", rep.Duration)
	if err != nil {
		a.logger.Warn("reload completed with failures", "err", err)
	}
	return nil
}

func (a *App) startWatcher(ctx context.Context) (<-chan error, error) {
	if err := os.MkdirAll(a.cfg.Modules.Dir, 0o755); err != nil {
		return nil, issue.Fail(issue.ModulesDirNotFoundId).
			During("create modules directory").
			On(a.cfg.Modules.Dir).
			Because(err)
	}
	w, err := watch.New(watch.Config{
		Dir:      a.cfg.Modules.Dir,
		Debounce: a.cfg.Watch.Debounce,
		OnChange: a.onManifestChange,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	return errCh, nil
}

func (a *App) onManifestChange(ctx context.Context, changed []string) error {
	a.logger.Info("manifests changed, reloading", "paths", changed)
	rep, err := a.controller.Reload(ctx)
	if errors.Is(err, lifecycle.ErrReloadInProgress) {
		return watch.ErrBusy
	}
	if rep == nil {
		a.logger.Error("reload failed", "err", err)
		return nil
	}
	a.logger.Info("modules reloaded", "summary", rep.Summary(), "took", rep.Duration)
	if err != nil {
		a.logger.Warn("reload completed with failures", "err", err)
	}
	return nil
}

func (a *App) stop() {
	if a.web != nil {
		if err := a.web.Stop(); err != nil {
			a.logger.Warn("stopping http server", "err", err)
		}
	}
	if a.console != nil {
		if err := a.console.Stop(); err != nil {
			a.logger.Warn("stopping ssh console", "err", err)
		}
	}
}

// Close releases the journal. It does not unload modules.
func (a *App) Close() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		a.logger.Warn("closing journal", "err", err)
	}
}

// WebAddr returns the address the HTTP adapter listens on, or "" when it
// is disabled or not running.
func (a *App) WebAddr() string {
	if a.web == nil {
		return ""
	}
	return a.web.Addr()
}

func startErr(name, addr string, err error) error {
	return issue.Fail(issue.ServerStartFailedId).During("start " + name + " server").On(addr).Because(err)
}
