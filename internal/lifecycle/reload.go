// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/pkg/module"
)

type (
	// Skip is a candidate that was not loaded, with the reason.
	Skip struct {
		ID     module.ID `json:"id"`
		Reason string    `json:"reason"`
	}

	// Report summarizes a reload.
	Report struct {
		// Loaded lists the modules loaded in load order, baseline included.
		Loaded []module.ID `json:"loaded"`
		// Disabled lists candidates on the disabled list.
		Disabled []module.ID `json:"disabled,omitempty"`
		// Blocked lists candidates whose dependency chain reaches a
		// disabled module.
		Blocked []Skip `json:"blocked,omitempty"`
		// Evicted lists candidates with cyclic or missing dependencies.
		Evicted []Skip `json:"evicted,omitempty"`
		// Rejected lists candidate IDs that failed discovery.
		Rejected []Skip `json:"rejected,omitempty"`
		// Failed lists modules whose load failed.
		Failed []*LoadError `json:"-"`
		// FailedReasons mirrors Failed for encoders.
		FailedReasons []Skip `json:"failed,omitempty"`
		// Unrecoverable lists the modules left when the load queue stalled.
		Unrecoverable []module.ID  `json:"unrecoverable,omitempty"`
		Duration      time.Duration `json:"duration"`
	}

	// candidates is the working set of a reload.
	candidates struct {
		order []module.ID
		descs map[module.ID]*module.Descriptor
	}
)

// Summary renders a one-line summary of r.
func (r *Report) Summary() string {
	parts := []string{fmt.Sprintf("%d loaded", len(r.Loaded))}
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(len(r.Disabled), "disabled")
	add(len(r.Blocked), "blocked")
	add(len(r.Evicted), "evicted")
	add(len(r.Rejected), "rejected")
	add(len(r.Failed), "failed")
	add(len(r.Unrecoverable), "unrecoverable")
	return strings.Join(parts, ", ")
}

// Err returns the aggregate *ReloadError of r, or nil when nothing failed.
func (r *Report) Err() error {
	causes := make([]error, 0, len(r.Failed)+1)
	for _, f := range r.Failed {
		causes = append(causes, f)
	}
	if len(r.Unrecoverable) > 0 {
		causes = append(causes, fmt.Errorf("%w: %s", ErrUnrecoverable, joinIDs(r.Unrecoverable)))
	}
	if len(causes) == 0 {
		return nil
	}
	return &ReloadError{Causes: causes}
}

// Reload unloads every module, rediscovers candidates from the source and
// loads them in dependency order. Individual failures never abort the cycle;
// they are collected in the report and returned together as a *ReloadError
// once the cycle completed. A concurrent call returns ErrReloadInProgress.
// Once started, a reload runs to completion: cancellation of ctx is ignored
// while its values are kept.
func (c *Controller) Reload(ctx context.Context) (*Report, error) {
	if !c.reloading.CompareAndSwap(false, true) {
		return nil, ErrReloadInProgress
	}
	defer c.reloading.Store(false)
	ctx = context.WithoutCancel(ctx)

	c.opMu.Lock()
	defer c.opMu.Unlock()

	start := c.now()
	c.logger.Info("reloading modules")

	settings, err := c.readSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read module settings: %w", err)
	}

	rep := &Report{}

	c.unloadAll(ctx)
	c.source.Invalidate()

	cands := c.discover(ctx, rep)

	c.mu.Lock()
	c.known = make(map[module.ID]*module.Descriptor, len(cands.descs)+1)
	c.known[BaselineID] = c.baseline()
	for id, d := range cands.descs {
		c.known[id] = d
	}
	c.reasons = make(map[module.ID]string)
	c.mu.Unlock()

	disabled := make(map[module.ID]bool)
	for _, id := range cands.order {
		if c.isDisabled(id) {
			disabled[id] = true
			rep.Disabled = append(rep.Disabled, id)
			c.logger.Info("skipping disabled module", "module", id)
		}
	}
	cands.remove(func(id module.ID) bool { return disabled[id] })

	if settings.Reload.LoadBaseline {
		c.loadInto(ctx, rep, BaselineID, c.baseline())
	}

	c.validate(ctx, rep, cands, disabled)
	c.loadQueue(ctx, rep, cands)

	c.router.Prune(func(owner module.ID) bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		_, ok := c.enabled[owner]
		return ok
	})
	c.router.RefreshCommandCache(ctx, settings.Reload.ClearOldCommands)

	rep.Duration = c.now().Sub(start)
	c.logger.Info("reload finished", "summary", rep.Summary(), "duration", rep.Duration)
	c.record(ctx, "", ActionReloaded, rep.Summary())
	c.emit(ChangeReloaded, "")

	return rep, rep.Err()
}

// unloadAll unloads every enabled module, dependents first. A module whose
// unload hook fails is added to the disabled list.
func (c *Controller) unloadAll(ctx context.Context) {
	enabled := c.Enabled()
	for _, id := range slices.Backward(enabled) {
		err := c.unload(ctx, id, false)
		if err == nil {
			continue
		}
		c.logger.Warn("disabling module after failed unload", "module", id)
		if err := c.updateDisabled(ctx, func(s *config.ModuleSettings) bool { return s.AddDisabled(string(id)) }); err != nil {
			c.logger.Error("failed to persist disabled module", "module", id, "err", err)
		}
	}
}

// discover lists and fetches candidates. Malformed, reserved, duplicate
// and unfetchable IDs are skipped.
func (c *Controller) discover(ctx context.Context, rep *Report) *candidates {
	cands := &candidates{descs: make(map[module.ID]*module.Descriptor)}

	ids, err := c.source.ListCandidateIDs(ctx)
	if err != nil {
		c.logger.Warn("module discovery reported errors", "err", err)
	}

	reject := func(id module.ID, reason string) {
		c.logger.Warn("skipping module candidate", "module", id, "reason", reason)
		rep.Rejected = append(rep.Rejected, Skip{ID: id, Reason: reason})
		c.record(ctx, id, ActionSkipped, reason)
	}

	for _, raw := range ids {
		id, err := module.ParseID(raw)
		switch {
		case err != nil:
			reject(module.ID(raw), err.Error())
			continue
		case id == BaselineID:
			reject(id, "module id is reserved")
			continue
		case cands.descs[id] != nil:
			reject(id, "duplicate module id")
			continue
		}

		desc, err := c.source.Fetch(ctx, id)
		if err != nil {
			reject(id, err.Error())
			continue
		}
		cands.order = append(cands.order, id)
		cands.descs[id] = desc
	}
	return cands
}

// validate evicts candidates whose dependency chain is cyclic or reaches a
// module that is neither a candidate nor loaded. It repeats until a pass
// evicts nothing.
func (c *Controller) validate(ctx context.Context, rep *Report, cands *candidates, disabled map[module.ID]bool) {
	blocked := make(map[module.ID]bool)
	gone := make(map[module.ID]bool)
	for {
		evicted := false
		for _, id := range slices.Clone(cands.order) {
			reason, isBlocked := c.checkChain(id, cands, disabled, blocked, gone)
			if reason == "" {
				continue
			}
			evicted = true
			cands.remove(func(o module.ID) bool { return o == id })

			c.mu.Lock()
			c.reasons[id] = reason
			c.mu.Unlock()
			c.record(ctx, id, ActionSkipped, reason)

			if isBlocked {
				blocked[id] = true
				rep.Blocked = append(rep.Blocked, Skip{ID: id, Reason: reason})
				c.logger.Info("module blocked by disabled dependency", "module", id, "reason", reason)
			} else {
				gone[id] = true
				rep.Evicted = append(rep.Evicted, Skip{ID: id, Reason: reason})
				c.logger.Warn("evicting module", "module", id, "reason", reason)
			}
		}
		if !evicted {
			return
		}
	}
}

// checkChain walks the dependency chain of id depth-first. It returns a
// non-empty reason when the chain is unsatisfiable, and whether that is due
// to a disabled module.
func (c *Controller) checkChain(id module.ID, cands *candidates, disabled, blocked, gone map[module.ID]bool) (string, bool) {
	visited := map[module.ID]bool{id: true}
	var walk func(cur module.ID) (string, bool)
	walk = func(cur module.ID) (string, bool) {
		for _, dep := range cands.descs[cur].Dependencies {
			switch {
			case dep == id:
				if cur == id {
					return "depends on itself", false
				}
				return fmt.Sprintf("depends on itself through %s", cur), false
			case disabled[dep] || blocked[dep]:
				return fmt.Sprintf("requires disabled module %s", dep), true
			case gone[dep]:
				return fmt.Sprintf("depends on evicted module %s", dep), false
			case cands.descs[dep] != nil:
				if visited[dep] {
					continue
				}
				visited[dep] = true
				if reason, b := walk(dep); reason != "" {
					return reason, b
				}
			case c.IsEnabled(dep):
			default:
				return fmt.Sprintf("depends on missing module %s", dep), false
			}
		}
		return "", false
	}
	return walk(id)
}

// loadQueue loads candidates whose dependencies are all loaded, rotating
// the others to the back of the queue. A full pass without progress stops
// the cycle and reports the rest as unrecoverable.
func (c *Controller) loadQueue(ctx context.Context, rep *Report, cands *candidates) {
	queue := slices.Clone(cands.order)
	for len(queue) > 0 {
		progressed := false
		for range len(queue) {
			id := queue[0]
			queue = queue[1:]
			desc := cands.descs[id]
			if !c.depsLoaded(desc) {
				queue = append(queue, id)
				continue
			}
			c.loadInto(ctx, rep, id, desc)
			progressed = true
		}
		if !progressed {
			c.logger.Error("load queue stalled", "remaining", joinIDs(queue))
			rep.Unrecoverable = queue
			c.mu.Lock()
			for _, id := range queue {
				c.reasons[id] = "dependencies never loaded"
			}
			c.mu.Unlock()
			return
		}
	}
}

func (c *Controller) loadInto(ctx context.Context, rep *Report, id module.ID, desc *module.Descriptor) {
	if err := c.load(ctx, id, desc); err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			le = &LoadError{ID: id, Cause: err}
		}
		rep.Failed = append(rep.Failed, le)
		rep.FailedReasons = append(rep.FailedReasons, Skip{ID: id, Reason: le.Cause.Error()})
		c.mu.Lock()
		c.reasons[id] = le.Cause.Error()
		c.mu.Unlock()
		return
	}
	rep.Loaded = append(rep.Loaded, id)
}

func (c *Controller) depsLoaded(desc *module.Descriptor) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, dep := range desc.Dependencies {
		if _, ok := c.enabled[dep]; !ok {
			return false
		}
	}
	return true
}

func (cs *candidates) remove(drop func(module.ID) bool) {
	cs.order = slices.DeleteFunc(cs.order, drop)
	for id := range cs.descs {
		if drop(id) {
			delete(cs.descs, id)
		}
	}
}

func joinIDs(ids []module.ID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}
