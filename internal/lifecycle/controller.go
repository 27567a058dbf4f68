// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/source"
	"github.com/modhost/modhost/pkg/module"

	"github.com/charmbracelet/log"
)

const (
	// StateEnabled means the module is loaded.
	StateEnabled State = "enabled"
	// StateDisabled means the module is on the disabled list.
	StateDisabled State = "disabled"
	// StateInactive means the module was discovered but is not loaded,
	// because a dependency is missing or loading failed.
	StateInactive State = "inactive"
)

type (
	// SettingsStore persists the module settings.
	SettingsStore interface {
		Load(ctx context.Context) (*config.ModuleSettings, error)
		Save(ctx context.Context, settings *config.ModuleSettings) error
	}

	// Options configures a Controller. Source, Router and Store are required.
	Options struct {
		Source source.Source
		Router *interaction.Router
		Store  SettingsStore
		Logger *log.Logger
		// Recorder, when set, receives every lifecycle transition.
		Recorder Recorder
		// Notifier, when set, is used instead of a private one so that
		// subscriptions can be made before the controller exists.
		Notifier *Notifier
		// Clock overrides time.Now.
		Clock func() time.Time
	}

	// State is the coarse state of a known module.
	State string

	// Status is a snapshot of one known module.
	Status struct {
		ID         module.ID
		Descriptor *module.Descriptor
		State      State
		// Reason explains an inactive state, from the last reload.
		Reason   string
		LoadedAt time.Time
		Bindings interaction.Bindings
	}

	// record is held for every enabled module.
	record struct {
		id       module.ID
		desc     *module.Descriptor
		loadedAt time.Time
		bindings interaction.Bindings
	}

	// Controller owns the known and enabled module sets.
	Controller struct {
		source   source.Source
		router   *interaction.Router
		store    SettingsStore
		logger   *log.Logger
		recorder Recorder
		notifier *Notifier
		now      func() time.Time

		// opMu serializes lifecycle operations.
		opMu      sync.Mutex
		reloading atomic.Bool

		// mu guards the fields below for readers outside opMu.
		mu       sync.RWMutex
		known    map[module.ID]*module.Descriptor
		enabled  map[module.ID]*record
		order    []module.ID
		reasons  map[module.ID]string
		settings *config.ModuleSettings
	}

	// host is the module.Host handed to hooks.
	host struct {
		id     module.ID
		logger *log.Logger
	}
)

// New creates a Controller. Nothing is loaded until Reload or Enable runs.
func New(opts Options) (*Controller, error) {
	var errs []error
	if opts.Source == nil {
		errs = append(errs, errors.New("lifecycle: source is required"))
	}
	if opts.Router == nil {
		errs = append(errs, errors.New("lifecycle: router is required"))
	}
	if opts.Store == nil {
		errs = append(errs, errors.New("lifecycle: settings store is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	c := &Controller{
		source:   opts.Source,
		router:   opts.Router,
		store:    opts.Store,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
		now:      opts.Clock,
		known:    make(map[module.ID]*module.Descriptor),
		enabled:  make(map[module.ID]*record),
		reasons:  make(map[module.ID]string),
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.logger = c.logger.WithPrefix("modules")
	if c.notifier == nil {
		c.notifier = NewNotifier()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.known[BaselineID] = c.baseline()
	return c, nil
}

// Notifier returns the notifier changes are emitted on.
func (c *Controller) Notifier() *Notifier { return c.notifier }

// Router returns the router the controller registers interactions with.
func (c *Controller) Router() *interaction.Router { return c.router }

// Known returns the IDs found by the last discovery, baseline included,
// sorted.
func (c *Controller) Known() []module.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.known))
}

// Enabled returns the loaded module IDs in load order.
func (c *Controller) Enabled() []module.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// IsEnabled reports whether id is loaded.
func (c *Controller) IsEnabled(id module.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.enabled[id]
	return ok
}

// Descriptor returns the descriptor of a known module.
func (c *Controller) Descriptor(id module.ID) (*module.Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.known[id]
	return d, ok
}

// Dependents returns the enabled modules that declare id as a dependency,
// in load order.
func (c *Controller) Dependents(id module.ID) []module.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dependentsLocked(id)
}

func (c *Controller) dependentsLocked(id module.ID) []module.ID {
	var out []module.ID
	for _, other := range c.order {
		if rec := c.enabled[other]; rec != nil && rec.desc.DependsOn(id) {
			out = append(out, other)
		}
	}
	return out
}

// Status returns a snapshot of every known module sorted by ID.
func (c *Controller) Status() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Status, 0, len(c.known))
	for _, id := range slices.Sorted(maps.Keys(c.known)) {
		st := Status{ID: id, Descriptor: c.known[id], State: StateInactive, Reason: c.reasons[id]}
		switch rec, ok := c.enabled[id]; {
		case ok:
			st.State = StateEnabled
			st.Reason = ""
			st.LoadedAt = rec.loadedAt
			st.Bindings = rec.bindings
		case c.settings != nil && c.settings.IsDisabled(string(id)):
			st.State = StateDisabled
		}
		out = append(out, st)
	}
	return out
}

// Settings returns a copy of the module settings, reading them from the
// store if no operation has done so yet.
func (c *Controller) Settings(ctx context.Context) (*config.ModuleSettings, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	s, err := c.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// loadSettings returns the cached settings. Callers hold opMu.
func (c *Controller) loadSettings(ctx context.Context) (*config.ModuleSettings, error) {
	c.mu.RLock()
	s := c.settings
	c.mu.RUnlock()
	if s != nil {
		return s, nil
	}
	return c.readSettings(ctx)
}

// readSettings re-reads the store and applies the theme. Callers hold opMu.
func (c *Controller) readSettings(ctx context.Context) (*config.ModuleSettings, error) {
	s, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	c.router.SetTheme(themeOf(s.Colours), s.ResponseDeletion())
	return s, nil
}

// updateDisabled applies fn to the disabled list and persists the result
// when it changed. Callers hold opMu.
func (c *Controller) updateDisabled(ctx context.Context, fn func(*config.ModuleSettings) bool) error {
	s, err := c.loadSettings(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	changed := fn(s)
	c.mu.Unlock()
	if !changed {
		return nil
	}
	return c.store.Save(ctx, s)
}

func (c *Controller) isDisabled(id module.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings != nil && c.settings.IsDisabled(string(id))
}

func (c *Controller) emit(kind ChangeKind, id module.ID) {
	c.notifier.Emit(Change{Kind: kind, Module: id, Enabled: c.Enabled(), At: c.now()})
}

func themeOf(cl config.Colours) interaction.Theme {
	return interaction.Theme{
		Error:   cl.Error,
		Success: cl.Success,
		Warn:    cl.Warn,
		Standby: cl.Standby,
		Neutral: cl.Neutral,
	}
}

// ModuleID implements module.Host.
func (h *host) ModuleID() module.ID { return h.id }

// Logger implements module.Host.
func (h *host) Logger() *log.Logger { return h.logger }
