// SPDX-License-Identifier: MPL-2.0

package interaction

import (
	"context"
	"maps"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/modhost/modhost/pkg/module"

	"github.com/charmbracelet/log"
)

type (
	// Option configures a Router.
	Option func(*Router)

	entry struct {
		owner   module.ID
		handler module.Handler
		// suspended entries stay owned but refuse events until their
		// module registers them again.
		suspended bool
	}

	commandEntry struct {
		entry
		label        string
		def          module.CommandDef
		remoteID     string
		autocomplete module.Handler
	}

	// CommandInfo describes a locally registered command.
	CommandInfo struct {
		Name     string
		Label    string
		Owner    module.ID
		RemoteID string
	}

	// Bindings lists the interaction IDs a module owns, per registry.
	Bindings struct {
		Commands []string
		Buttons  []string
		Modals   []string
		Menus    []string
	}

	// Router owns the interaction registries and dispatches inbound events.
	Router struct {
		api    module.CommandAPI
		logger *log.Logger
		now    func() time.Time

		// syncMu serialises reconciliation with the platform so an orphan
		// sweep never sees a command whose local entry is still being stored.
		syncMu sync.Mutex

		mu          sync.RWMutex
		theme       Theme
		deleteAfter time.Duration
		commands    map[string]*commandEntry
		buttons     map[string]entry
		modals      map[string]entry
		menus       map[string]entry
		// remote caches the platform's commands by name.
		remote       map[string]module.RemoteCommand
		remoteLoaded bool
	}
)

// WithTheme sets the reply colours.
func WithTheme(t Theme) Option {
	return func(r *Router) { r.theme = t }
}

// WithResponseDeletion sets how long error replies stay visible.
func WithResponseDeletion(d time.Duration) Option {
	return func(r *Router) { r.deleteAfter = d }
}

// WithClock overrides the time source used for reply timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a Router that registers commands through api.
func New(api module.CommandAPI, logger *log.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = log.Default()
	}
	r := &Router{
		api:      api,
		logger:   logger.WithPrefix("router"),
		now:      time.Now,
		theme:    DefaultTheme(),
		commands: make(map[string]*commandEntry),
		buttons:  make(map[string]entry),
		modals:   make(map[string]entry),
		menus:    make(map[string]entry),
		remote:   make(map[string]module.RemoteCommand),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTheme replaces the reply colours and error reply lifetime.
func (r *Router) SetTheme(t Theme, deleteAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theme = t
	r.deleteAfter = deleteAfter
}

// Theme returns the current reply colours.
func (r *Router) Theme() Theme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.theme
}

// AddCommand registers cmd for owner, reconciling it with the platform: an
// existing platform command with the same name is updated in place,
// otherwise a new one is created. The local entry is stored only once the
// platform accepted the definition. Failures are logged.
func (r *Router) AddCommand(ctx context.Context, owner module.ID, cmd module.Command) {
	name := cmd.Definition.Name
	r.logger.Debug("adding command", "command", name, "module", owner)

	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	r.mu.RLock()
	loaded := r.remoteLoaded
	r.mu.RUnlock()
	if !loaded {
		r.fetchRemote(ctx)
	}

	r.mu.RLock()
	existing, found := r.remote[name]
	r.mu.RUnlock()

	var (
		remote module.RemoteCommand
		err    error
	)
	if found {
		remote, err = r.api.Update(ctx, existing.ID, cmd.Definition)
		if err != nil {
			r.logger.Warn("failed to update platform command", "command", name, "id", existing.ID, "err", err)
			return
		}
		if remote.ID == "" {
			remote.ID = existing.ID
		}
		r.logger.Info("updated command", "command", name, "id", remote.ID)
	} else {
		remote, err = r.api.Create(ctx, cmd.Definition)
		if err != nil {
			r.logger.Warn("failed to create platform command", "command", name, "err", err)
			return
		}
		r.logger.Info("added command", "command", name, "id", remote.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote[name] = module.RemoteCommand{ID: remote.ID, CommandDef: cmd.Definition}
	r.commands[name] = &commandEntry{
		entry:        entry{owner: owner, handler: cmd.Handler},
		label:        cmd.Label,
		def:          cmd.Definition,
		remoteID:     remote.ID,
		autocomplete: cmd.Autocomplete,
	}
}

// RemoveCommand drops the local entry for name and deletes the matching
// platform command.
func (r *Router) RemoveCommand(ctx context.Context, name string) {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	r.mu.Lock()
	ce, ok := r.commands[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.commands, name)
	remoteID := ce.remoteID
	if rc, cached := r.remote[name]; cached && remoteID == "" {
		remoteID = rc.ID
	}
	r.mu.Unlock()

	r.deleteRemote(ctx, name, remoteID)
}

// AddButton binds a button custom ID to handler. A previous binding with the
// same ID is overwritten.
func (r *Router) AddButton(owner module.ID, id string, handler module.Handler) {
	r.add(r.buttons, owner, id, handler)
}

// AddModal binds a modal custom ID to handler.
func (r *Router) AddModal(owner module.ID, id string, handler module.Handler) {
	r.add(r.modals, owner, id, handler)
}

// AddMenu binds a select-menu custom ID to handler.
func (r *Router) AddMenu(owner module.ID, id string, handler module.Handler) {
	r.add(r.menus, owner, id, handler)
}

func (r *Router) add(reg map[string]entry, owner module.ID, id string, handler module.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := reg[id]; ok && prev.owner != owner {
		r.logger.Debug("interaction id rebound", "id", id, "from", prev.owner, "to", owner)
	}
	reg[id] = entry{owner: owner, handler: handler}
}

// RemoveModuleData removes every button, modal and select-menu binding owned
// by owner, and removes the owner's commands locally and from the platform.
func (r *Router) RemoveModuleData(ctx context.Context, owner module.ID) {
	r.logger.Debug("removing module interactions", "module", owner)

	type doomed struct{ name, remoteID string }
	var remove []doomed

	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	r.mu.Lock()
	for _, reg := range []map[string]entry{r.buttons, r.modals, r.menus} {
		maps.DeleteFunc(reg, func(_ string, e entry) bool { return e.owner == owner })
	}
	for name, ce := range r.commands {
		if ce.owner == owner {
			remove = append(remove, doomed{name: name, remoteID: ce.remoteID})
			delete(r.commands, name)
		}
	}
	r.mu.Unlock()

	for _, d := range remove {
		r.deleteRemote(ctx, d.name, d.remoteID)
	}
}

// Suspend keeps every binding of owner but answers its events with an
// unavailable error. A reload suspends the bindings of unloaded modules so
// that no handler runs between Unload and the next registration, while the
// orphan sweep still treats their platform commands as owned. Registering
// the same ID again resumes it; Prune drops what was never re-registered.
func (r *Router) Suspend(owner module.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range []map[string]entry{r.buttons, r.modals, r.menus} {
		for id, e := range reg {
			if e.owner == owner {
				e.suspended = true
				reg[id] = e
			}
		}
	}
	for name, ce := range r.commands {
		if ce.owner == owner {
			cp := *ce
			cp.suspended = true
			r.commands[name] = &cp
		}
	}
}

// Prune drops local bindings whose owner is not accepted by keep. Platform
// commands are left alone; RefreshCommandCache(true) clears them.
func (r *Router) Prune(keep func(module.ID) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := func(_ string, e entry) bool { return !keep(e.owner) }
	maps.DeleteFunc(r.buttons, drop)
	maps.DeleteFunc(r.modals, drop)
	maps.DeleteFunc(r.menus, drop)
	maps.DeleteFunc(r.commands, func(_ string, ce *commandEntry) bool { return !keep(ce.owner) })
}

// RefreshCommandCache re-reads the platform's command list. With removeOld,
// platform commands that no local entry owns are deleted from the platform.
func (r *Router) RefreshCommandCache(ctx context.Context, removeOld bool) {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	remote := r.fetchRemote(ctx)
	if !removeOld || remote == nil {
		return
	}

	for _, rc := range remote {
		r.mu.RLock()
		_, owned := r.commands[rc.Name]
		r.mu.RUnlock()
		if owned {
			continue
		}
		r.logger.Warn("found old command, removing from platform", "command", rc.Name, "id", rc.ID)
		r.deleteRemote(ctx, rc.Name, rc.ID)
	}
}

func (r *Router) fetchRemote(ctx context.Context) []module.RemoteCommand {
	remote, err := r.api.List(ctx)
	if err != nil {
		r.logger.Warn("failed to fetch platform commands", "err", err)
		return nil
	}

	cache := make(map[string]module.RemoteCommand, len(remote))
	for _, rc := range remote {
		cache[rc.Name] = rc
	}
	r.mu.Lock()
	r.remote = cache
	r.remoteLoaded = true
	r.mu.Unlock()
	return remote
}

func (r *Router) deleteRemote(ctx context.Context, name, id string) {
	if id == "" {
		return
	}
	if err := r.api.Delete(ctx, id); err != nil {
		r.logger.Warn("failed to remove platform command", "command", name, "id", id, "err", err)
		return
	}
	r.mu.Lock()
	if rc, ok := r.remote[name]; ok && rc.ID == id {
		delete(r.remote, name)
	}
	r.mu.Unlock()
	r.logger.Info("removed command", "command", name, "id", id)
}

// Commands lists the local command registry sorted by name.
func (r *Router) Commands() []CommandInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CommandInfo, 0, len(r.commands))
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		ce := r.commands[name]
		out = append(out, CommandInfo{Name: name, Label: ce.label, Owner: ce.owner, RemoteID: ce.remoteID})
	}
	return out
}

// Bindings returns the interaction IDs owned by owner.
func (r *Router) Bindings(owner module.ID) Bindings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b Bindings
	for name, ce := range r.commands {
		if ce.owner == owner {
			b.Commands = append(b.Commands, name)
		}
	}
	b.Buttons = ownedBy(r.buttons, owner)
	b.Modals = ownedBy(r.modals, owner)
	b.Menus = ownedBy(r.menus, owner)
	slices.Sort(b.Commands)
	return b
}

// Empty reports whether no binding is listed.
func (b Bindings) Empty() bool {
	return len(b.Commands)+len(b.Buttons)+len(b.Modals)+len(b.Menus) == 0
}

func ownedBy(reg map[string]entry, owner module.ID) []string {
	var ids []string
	for id, e := range reg {
		if e.owner == owner {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Dispatch routes ev to the handler that owns it. Handler errors and panics
// are turned into an error reply; nothing is returned to the caller.
func (r *Router) Dispatch(ctx context.Context, ev *module.Event) {
	err := r.route(ctx, ev)
	if err == nil {
		return
	}

	// Autocomplete has no reply surface for errors.
	if ev.Kind == module.KindAutocomplete {
		r.logger.Warn("autocomplete failed", "command", ev.Name, "user", ev.User, "err", err)
		return
	}

	r.logger.Warn("interaction failed", "kind", ev.Kind, "name", ev.Key(), "user", ev.User, "err", err)
	if ev.Responder == nil {
		return
	}
	if replyErr := ev.Reply(ctx, r.errorReply(ev, err)); replyErr != nil {
		r.logger.Error("failed to deliver error reply", "kind", ev.Kind, "name", ev.Key(), "err", replyErr)
	}
}

func (r *Router) route(ctx context.Context, ev *module.Event) error {
	switch ev.Kind {
	case module.KindCommand:
		r.logger.Debug("command", "command", ev.Name, "user", ev.User)
		r.mu.RLock()
		ce, ok := r.commands[ev.Name]
		r.mu.RUnlock()
		if !ok {
			r.logger.Warn("command not found", "command", ev.Name)
			r.RefreshCommandCache(ctx, true)
			return UnknownCommand()
		}
		if ce.suspended {
			return Unavailable(KindCommand, ce.owner)
		}
		return invoke(ctx, ce.handler, ev)

	case module.KindAutocomplete:
		r.mu.RLock()
		ce, ok := r.commands[ev.Name]
		r.mu.RUnlock()
		if !ok {
			r.logger.Warn("command not found", "command", ev.Name)
			r.RefreshCommandCache(ctx, true)
			return nil
		}
		if ce.suspended || ce.autocomplete == nil {
			return nil
		}
		return invoke(ctx, ce.autocomplete, ev)

	case module.KindButton:
		return r.routeCustom(ctx, r.buttons, KindButton, ev)
	case module.KindModal:
		return r.routeCustom(ctx, r.modals, KindModal, ev)
	case module.KindSelectMenu:
		return r.routeCustom(ctx, r.menus, KindInteraction, ev)

	default:
		r.logger.Warn("interaction type not handled", "kind", ev.Kind)
		return nil
	}
}

func (r *Router) routeCustom(ctx context.Context, reg map[string]entry, kind ErrorKind, ev *module.Event) error {
	r.logger.Debug(ev.Kind.String(), "id", ev.CustomID, "user", ev.User)
	r.mu.RLock()
	e, ok := reg[ev.CustomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if e.suspended {
		return Unavailable(kind, e.owner)
	}
	return invoke(ctx, e.handler, ev)
}

func invoke(ctx context.Context, h module.Handler, ev *module.Event) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return h(ctx, ev)
}
