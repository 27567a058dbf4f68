// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"

	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/pkg/module"
)

// Enable removes id from the disabled list and loads a freshly fetched
// descriptor. The module must be known and not enabled. Like Reload, it
// is not interrupted by cancellation of ctx.
func (c *Controller) Enable(ctx context.Context, id module.ID) error {
	ctx = context.WithoutCancel(ctx)
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := id.Validate(); err != nil {
		return &PreconditionError{Op: "enable", ID: id, Reason: ErrInvalidModuleID, Detail: err.Error()}
	}
	if _, ok := c.Descriptor(id); !ok {
		return precondition("enable", id, ErrUnknownModule)
	}
	if c.IsEnabled(id) {
		return precondition("enable", id, ErrAlreadyEnabled)
	}

	desc, err := c.fetch(ctx, id)
	if err != nil {
		return &LoadError{ID: id, Cause: err}
	}

	if err := c.updateDisabled(ctx, func(s *config.ModuleSettings) bool { return s.RemoveDisabled(string(id)) }); err != nil {
		return &LoadError{ID: id, Cause: err}
	}
	c.logger.Info("enabling module", "module", id)
	c.record(ctx, id, ActionEnabled, "")

	if err := c.load(ctx, id, desc); err != nil {
		return err
	}
	c.emit(ChangeEnabled, id)
	return nil
}

// Disable unloads id and adds it to the disabled list. Enabled modules that
// depend on id are disabled first. The baseline module cannot be disabled.
// Failures of individual steps are joined; the module ends up disabled
// regardless. Cancellation of ctx is ignored.
func (c *Controller) Disable(ctx context.Context, id module.ID) error {
	ctx = context.WithoutCancel(ctx)
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if _, err := c.loadSettings(ctx); err != nil {
		return err
	}
	visited := make(map[module.ID]bool)
	err := c.disable(ctx, id, visited)
	if visited[id] {
		c.emit(ChangeDisabled, id)
	}
	return err
}

// disable carries the set of modules already being disabled by this call,
// so that cyclic dependents end the cascade instead of recursing.
func (c *Controller) disable(ctx context.Context, id module.ID, visited map[module.ID]bool) error {
	if id == BaselineID {
		return precondition("disable", id, ErrProtectedModule)
	}
	if _, ok := c.Descriptor(id); !ok {
		return precondition("disable", id, ErrUnknownModule)
	}
	if !c.IsEnabled(id) {
		return precondition("disable", id, ErrNotEnabled)
	}
	visited[id] = true

	var errs []error
	for _, dep := range c.Dependents(id) {
		if visited[dep] {
			// Already disabled through another dependency path.
			if c.IsEnabled(dep) {
				c.logger.Warn("dependency cycle while disabling, not cascading", "module", id, "dependent", dep)
			}
			continue
		}
		c.logger.Info("disabling dependent module", "module", dep, "dependency", id)
		if err := c.disable(ctx, dep, visited); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.updateDisabled(ctx, func(s *config.ModuleSettings) bool { return s.AddDisabled(string(id)) }); err != nil {
		errs = append(errs, err)
	}
	if err := c.unload(ctx, id, true); err != nil {
		errs = append(errs, err)
	}
	c.logger.Info("disabled module", "module", id)
	c.record(ctx, id, ActionDisabled, "")
	return errors.Join(errs...)
}

// fetch returns a fresh descriptor for id.
func (c *Controller) fetch(ctx context.Context, id module.ID) (*module.Descriptor, error) {
	if id == BaselineID {
		return c.baseline(), nil
	}
	c.source.Invalidate()
	desc, err := c.source.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.known[id] = desc
	c.mu.Unlock()
	return desc, nil
}
