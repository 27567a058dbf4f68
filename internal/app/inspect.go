// SPDX-License-Identifier: MPL-2.0

package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/modhost/modhost/internal/dag"
	"github.com/modhost/modhost/internal/lifecycle"
	"github.com/modhost/modhost/internal/source"
	"github.com/modhost/modhost/pkg/module"
)

type (
	// Entry is one discovered module.
	Entry struct {
		ID         module.ID
		Descriptor *module.Descriptor
		Disabled   bool
	}

	// Problem explains why a module is unusable.
	Problem struct {
		ID     module.ID
		Reason string
	}

	// Inventory is an offline view of what a reload would find. It is
	// built without running any hook.
	Inventory struct {
		// Modules lists the fetched candidates in discovery order.
		Modules []Entry
		// Rejected lists candidates that failed discovery.
		Rejected []Problem
		// Missing maps modules to the dependencies nothing provides.
		Missing map[string][]string
		// Cycles lists the dependency cycles.
		Cycles [][]string
		// Skipped lists the fetched modules a reload would not load, with
		// the reason, in discovery order.
		Skipped []Problem
		// Layers is the load order of the remaining modules. Modules in
		// the same layer do not depend on each other.
		Layers [][]string
	}
)

// OK reports whether discovery found no broken module. Disabled modules
// and their dependents are not problems.
func (inv *Inventory) OK() bool {
	return len(inv.Rejected) == 0 && len(inv.Missing) == 0 && len(inv.Cycles) == 0
}

// Inspect discovers the modules of src the way a reload does and checks
// their dependency graph. disabled is the persisted disabled list.
func Inspect(ctx context.Context, src source.Source, disabled []string) (*Inventory, error) {
	ids, listErr := src.ListCandidateIDs(ctx)
	if listErr != nil && len(ids) == 0 {
		return nil, fmt.Errorf("list modules: %w", listErr)
	}

	inv := &Inventory{}
	seen := make(map[module.ID]bool)
	for _, raw := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := module.ParseID(raw)
		switch {
		case err != nil:
			inv.Rejected = append(inv.Rejected, Problem{ID: module.ID(raw), Reason: err.Error()})
			continue
		case id == lifecycle.BaselineID:
			inv.Rejected = append(inv.Rejected, Problem{ID: id, Reason: "module id is reserved"})
			continue
		case seen[id]:
			inv.Rejected = append(inv.Rejected, Problem{ID: id, Reason: "duplicate module id"})
			continue
		}
		seen[id] = true

		desc, err := src.Fetch(ctx, id)
		if err != nil {
			inv.Rejected = append(inv.Rejected, Problem{ID: id, Reason: err.Error()})
			continue
		}
		inv.Modules = append(inv.Modules, Entry{
			ID:         id,
			Descriptor: desc,
			Disabled:   slices.Contains(disabled, string(id)),
		})
	}

	inv.check()
	return inv, nil
}

func (inv *Inventory) check() {
	deps := make(map[string][]string, len(inv.Modules))
	for _, e := range inv.Modules {
		ds := make([]string, 0, len(e.Descriptor.Dependencies))
		for _, d := range e.Descriptor.Dependencies {
			ds = append(ds, string(d))
		}
		deps[string(e.ID)] = ds
	}

	g, missing := dag.FromDependencies(deps)
	inv.Missing = missing
	inv.Cycles = g.Cycles()

	reasons := make(map[string]string)
	for id, m := range missing {
		reasons[id] = "missing dependency " + strings.Join(m, ", ")
	}
	for _, c := range inv.Cycles {
		for _, id := range c {
			reasons[id] = "dependency cycle " + strings.Join(c, " -> ")
		}
	}
	for _, e := range inv.Modules {
		if e.Disabled {
			reasons[string(e.ID)] = "disabled"
		}
	}

	// Everything depending on a skipped module is skipped too.
	queue := make([]string, 0, len(reasons))
	for _, n := range g.Nodes() {
		if _, ok := reasons[n]; ok {
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependents(cur) {
			if _, ok := reasons[dep]; ok {
				continue
			}
			reasons[dep] = "depends on " + cur + " which cannot be loaded"
			queue = append(queue, dep)
		}
	}

	loadable := make(map[string][]string)
	for _, e := range inv.Modules {
		id := string(e.ID)
		if r, ok := reasons[id]; ok {
			inv.Skipped = append(inv.Skipped, Problem{ID: e.ID, Reason: r})
			continue
		}
		loadable[id] = deps[id]
	}

	sub, _ := dag.FromDependencies(loadable)
	// The remaining subgraph has no cycles by construction.
	inv.Layers, _ = sub.Layers()
}
