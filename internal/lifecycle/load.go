// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/pkg/module"
)

// Load loads a module from desc: it runs the load hook and registers every
// interaction the module declares. The module must not be disabled or
// enabled, and all of its dependencies must be enabled. Any failure is
// returned as a *LoadError.
func (c *Controller) Load(ctx context.Context, id module.ID, desc *module.Descriptor) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if _, err := c.loadSettings(ctx); err != nil {
		return &LoadError{ID: id, Cause: err}
	}
	return c.load(ctx, id, desc)
}

// Unload runs the module's unload hook and removes it from the enabled set.
// Registrations are purged from the router when removeRegistrations is set;
// otherwise they are suspended until the module registers them again.
// Unloading a module that is not loaded logs a warning and does nothing. A
// failing hook is returned as *UnloadError after the module was removed.
func (c *Controller) Unload(ctx context.Context, id module.ID, removeRegistrations bool) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.unload(ctx, id, removeRegistrations)
}

func (c *Controller) load(ctx context.Context, id module.ID, desc *module.Descriptor) error {
	if err := c.checkLoad(id, desc); err != nil {
		c.record(ctx, id, ActionLoadFailed, err.Error())
		return &LoadError{ID: id, Cause: err}
	}

	c.logger.Info("loading module", "module", id, "name", desc.Name, "version", desc.Version)

	if err := runHook(ctx, desc.Load, c.hostFor(id)); err != nil {
		c.router.RemoveModuleData(ctx, id)
		c.logger.Error("module load hook failed", "module", id, "err", err)
		c.record(ctx, id, ActionLoadFailed, err.Error())
		return &LoadError{ID: id, Cause: err}
	}

	c.register(ctx, id, desc)

	rec := &record{id: id, desc: desc, loadedAt: c.now(), bindings: c.router.Bindings(id)}
	c.mu.Lock()
	c.known[id] = desc
	c.enabled[id] = rec
	c.order = append(c.order, id)
	delete(c.reasons, id)
	c.mu.Unlock()

	c.logger.Info("loaded module", "module", id, "commands", len(rec.bindings.Commands))
	c.record(ctx, id, ActionLoaded, desc.Version)
	return nil
}

func (c *Controller) checkLoad(id module.ID, desc *module.Descriptor) error {
	if err := id.Validate(); err != nil {
		return &PreconditionError{Op: "load", ID: id, Reason: ErrInvalidModuleID, Detail: err.Error()}
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if id != BaselineID && c.settings != nil && c.settings.IsDisabled(string(id)) {
		return precondition("load", id, ErrModuleDisabled)
	}
	if _, ok := c.enabled[id]; ok {
		return precondition("load", id, ErrAlreadyEnabled)
	}
	for _, dep := range desc.Dependencies {
		if _, ok := c.enabled[dep]; !ok {
			return &PreconditionError{Op: "load", ID: id, Reason: ErrDependencyNotLoaded, Detail: string(dep)}
		}
	}
	return nil
}

// register adds every declared interaction to the router, tagged with id.
func (c *Controller) register(ctx context.Context, id module.ID, desc *module.Descriptor) {
	for _, cmd := range desc.Commands {
		c.router.AddCommand(ctx, id, cmd)
	}
	for _, cid := range slices.Sorted(maps.Keys(desc.Buttons)) {
		c.router.AddButton(id, cid, desc.Buttons[cid])
	}
	for _, cid := range slices.Sorted(maps.Keys(desc.Modals)) {
		c.router.AddModal(id, cid, desc.Modals[cid])
	}
	for _, cid := range slices.Sorted(maps.Keys(desc.Menus)) {
		c.router.AddMenu(id, cid, desc.Menus[cid])
	}
}

func (c *Controller) unload(ctx context.Context, id module.ID, removeRegistrations bool) error {
	c.mu.RLock()
	rec, ok := c.enabled[id]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("module is not loaded", "module", id)
		return nil
	}

	c.logger.Info("unloading module", "module", id)
	hookErr := runHook(ctx, rec.desc.Unload, c.hostFor(id))

	c.mu.Lock()
	delete(c.enabled, id)
	c.order = slices.DeleteFunc(c.order, func(o module.ID) bool { return o == id })
	c.mu.Unlock()

	if removeRegistrations {
		c.router.RemoveModuleData(ctx, id)
	} else {
		c.router.Suspend(id)
	}

	if hookErr != nil {
		c.logger.Error("module unload hook failed", "module", id, "err", hookErr)
		c.record(ctx, id, ActionUnloadFailed, hookErr.Error())
		return &UnloadError{ID: id, Cause: hookErr}
	}
	c.record(ctx, id, ActionUnloaded, "")
	return nil
}

func (c *Controller) hostFor(id module.ID) module.Host {
	return &host{id: id, logger: c.logger.WithPrefix(string(id))}
}

// runHook calls h, turning a panic into an *interaction.PanicError.
func runHook(ctx context.Context, h module.Hook, host module.Host) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook: %w", &interaction.PanicError{Value: p, Stack: debug.Stack()})
		}
	}()
	return h(ctx, host)
}
