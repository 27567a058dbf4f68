// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/modhost/modhost/internal/app"
	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/dag"
	"github.com/modhost/modhost/internal/issue"
	"github.com/modhost/modhost/internal/journal"
	"github.com/modhost/modhost/internal/lifecycle"
	"github.com/modhost/modhost/pkg/module"
)

const reloadHint = "Changes take effect on the next reload (/reload, POST /api/modules/reload or a restart)."

// offline is the module view built without a running host.
type offline struct {
	cfg      *config.Config
	store    *config.ModuleStore
	settings *config.ModuleSettings
	inv      *app.Inventory
}

// newModulesCommand creates the `modhost modules` command tree.
func newModulesCommand(a *App) *cobra.Command {
	modCmd := &cobra.Command{
		Use:     "modules",
		Aliases: []string{"module", "mod"},
		Short:   "Inspect and manage modules",
		Long: `Inspect and manage modules without a running host.

These commands read the module directory and the persisted module state.
enable and disable edit the disabled list; a running host applies the
change on its next reload.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	modCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List discovered modules and whether a reload would load them",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return listModules(cmd.Context(), a)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check manifests and the dependency graph",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return validateModules(cmd.Context(), a)
			},
		},
		newGraphCommand(a),
		newToggleCommand(a, true),
		newToggleCommand(a, false),
		newHistoryCommand(a),
	)
	return modCmd
}

func (a *App) loadOffline(ctx context.Context) (*offline, error) {
	resolved, err := a.resolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	cfg := resolved.Config
	logger, err := a.newLogger(cfg)
	if err != nil {
		return nil, err
	}

	store := config.NewModuleStore(cfg.Modules.StateFile)
	settings, err := store.Load(ctx)
	if err != nil {
		return nil, issue.Fail(issue.ModuleStateInvalidId).On(cfg.Modules.StateFile).Because(err)
	}

	inv, err := app.Inspect(ctx, app.Source(cfg, a.Catalog, logger), settings.Disabled)
	if err != nil {
		return nil, issue.Fail(issue.ModulesDirNotFoundId).On(cfg.Modules.Dir).Because(err)
	}
	return &offline{cfg: cfg, store: store, settings: settings, inv: inv}, nil
}

func listModules(ctx context.Context, a *App) error {
	off, err := a.loadOffline(ctx)
	if err != nil {
		return err
	}

	skipped := make(map[module.ID]string, len(off.inv.Skipped))
	for _, p := range off.inv.Skipped {
		skipped[p.ID] = p.Reason
	}

	t := newTable("ID", "NAME", "VERSION", "STATE", "DESCRIPTION")
	t.Row(string(lifecycle.BaselineID), "Default", "", "builtin", "Module management and reload commands")
	for _, e := range off.inv.Modules {
		state := SuccessStyle.Render("loadable")
		if reason, ok := skipped[e.ID]; ok {
			state = WarningStyle.Render(reason)
		}
		if e.Disabled {
			state = SubtitleStyle.Render("disabled")
		}
		desc := e.Descriptor.Description
		if len(e.Descriptor.Authors) > 0 {
			desc = strings.TrimSpace(desc + " " + VerboseStyle.Render("by "+strings.Join(e.Descriptor.Authors, ", ")))
		}
		t.Row(string(e.ID), e.Descriptor.Name, e.Descriptor.Version, state, desc)
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Modules")+" "+SubtitleStyle.Render(off.cfg.Modules.Dir))
	fmt.Fprintln(a.stdout, t.Render())
	printRejected(a, off.inv.Rejected)
	return nil
}

func validateModules(ctx context.Context, a *App) error {
	off, err := a.loadOffline(ctx)
	if err != nil {
		return err
	}
	inv := off.inv

	printRejected(a, inv.Rejected)
	for _, id := range slices.Sorted(maps.Keys(inv.Missing)) {
		fmt.Fprintf(a.stdout, "%s %s depends on missing %s\n",
			ErrorStyle.Render("✗"), CmdStyle.Render(id), strings.Join(inv.Missing[id], ", "))
	}
	for _, c := range inv.Cycles {
		fmt.Fprintf(a.stdout, "%s dependency cycle: %s\n",
			ErrorStyle.Render("✗"), CmdStyle.Render(strings.Join(append(slices.Clone(c), c[0]), " -> ")))
	}

	if inv.OK() {
		fmt.Fprintf(a.stdout, "%s %d module(s) valid\n", SuccessStyle.Render("✓"), len(inv.Modules))
		return nil
	}

	id := issue.ManifestParseErrorId
	switch {
	case len(inv.Cycles) > 0:
		id = issue.DependencyCycleId
	case len(inv.Missing) > 0:
		id = issue.ModuleNotFoundId
	}
	problems := len(inv.Rejected) + len(inv.Missing) + len(inv.Cycles)
	return &ExitError{
		Code: 1,
		Err: issue.Fail(id).
			During("validate modules").
			On(off.cfg.Modules.Dir).
			Because(fmt.Errorf("%d problem(s) found", problems)),
	}
}

func printRejected(a *App, rejected []app.Problem) {
	for _, p := range rejected {
		fmt.Fprintf(a.stdout, "%s %s: %s\n", ErrorStyle.Render("✗"), CmdStyle.Render(string(p.ID)), p.Reason)
	}
}

func newGraphCommand(a *App) *cobra.Command {
	var dot bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the order a reload would load modules in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			off, err := a.loadOffline(cmd.Context())
			if err != nil {
				return err
			}
			if dot {
				fmt.Fprint(a.stdout, graphviz(off.inv))
				return nil
			}
			printLayers(a, off)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dot, "dot", false, "print the dependency graph in Graphviz dot format")
	return cmd
}

func printLayers(a *App, off *offline) {
	fmt.Fprintln(a.stdout, TitleStyle.Render("Load order"))
	step := 0
	if off.settings.Reload.LoadBaseline {
		step++
		fmt.Fprintf(a.stdout, "  %d. %s %s\n", step, CmdStyle.Render(string(lifecycle.BaselineID)), SubtitleStyle.Render("(builtin)"))
	}
	for _, layer := range off.inv.Layers {
		step++
		fmt.Fprintf(a.stdout, "  %d. %s\n", step, CmdStyle.Render(strings.Join(layer, ", ")))
	}
	if len(off.inv.Skipped) == 0 {
		return
	}
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, TitleStyle.Render("Not loaded"))
	for _, p := range off.inv.Skipped {
		fmt.Fprintf(a.stdout, "  %s %s\n", CmdStyle.Render(string(p.ID)), SubtitleStyle.Render(p.Reason))
	}
}

func graphviz(inv *app.Inventory) string {
	var sb strings.Builder
	sb.WriteString("digraph modules {\n\trankdir=LR;\n")
	for _, e := range inv.Modules {
		fmt.Fprintf(&sb, "\t%q;\n", string(e.ID))
		for _, dep := range e.Descriptor.Dependencies {
			fmt.Fprintf(&sb, "\t%q -> %q;\n", string(dep), string(e.ID))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func newToggleCommand(a *App, enable bool) *cobra.Command {
	use, short := "disable <id>", "Add a module to the disabled list"
	if enable {
		use, short = "enable <id>", "Remove a module from the disabled list"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return toggleCandidates(cmd.Context(), a, enable), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return toggleModule(cmd.Context(), a, args[0], enable)
		},
	}
}

// toggleCandidates offers the disabled modules to enable and the others
// to disable.
func toggleCandidates(ctx context.Context, a *App, enable bool) []string {
	off, err := a.loadOffline(ctx)
	if err != nil {
		return nil
	}
	var ids []string
	for _, e := range off.inv.Modules {
		if e.Disabled == enable {
			ids = append(ids, string(e.ID))
		}
	}
	return ids
}

func toggleModule(ctx context.Context, a *App, raw string, enable bool) error {
	op := "disable"
	if enable {
		op = "enable"
	}
	refuse := func(id module.ID, reason error) error {
		return issue.Fail(issue.ModuleToggleRefusedId).
			During(op + " module").
			On(raw).
			Because(&lifecycle.PreconditionError{Op: op, ID: id, Reason: reason})
	}

	id, err := module.ParseID(raw)
	if err != nil {
		return refuse(module.ID(raw), lifecycle.ErrInvalidModuleID)
	}
	if id == lifecycle.BaselineID {
		return refuse(id, lifecycle.ErrProtectedModule)
	}

	off, err := a.loadOffline(ctx)
	if err != nil {
		return err
	}
	known := slices.ContainsFunc(off.inv.Modules, func(e app.Entry) bool { return e.ID == id })
	if enable && !known && !off.settings.IsDisabled(string(id)) {
		return issue.Fail(issue.ModuleNotFoundId).
			During(op + " module").
			On(raw).
			Because(lifecycle.ErrUnknownModule)
	}

	changed := off.settings.AddDisabled
	if enable {
		changed = off.settings.RemoveDisabled
	}
	if !changed(string(id)) {
		fmt.Fprintf(a.stdout, "%s %s is already %sd\n", WarningStyle.Render("!"), CmdStyle.Render(string(id)), op)
		return nil
	}
	if err := off.store.Save(ctx, off.settings); err != nil {
		return issue.Fail(issue.ModuleStateInvalidId).
			During("save module state").
			On(off.store.Path()).
			Because(err)
	}

	fmt.Fprintf(a.stdout, "%s %s %sd\n", SuccessStyle.Render("✓"), CmdStyle.Render(string(id)), op)
	if !enable {
		if deps := dependentsOf(off.inv, id); len(deps) > 0 {
			fmt.Fprintf(a.stdout, "%s also stops: %s\n", WarningStyle.Render("!"), strings.Join(deps, ", "))
		}
	}
	fmt.Fprintln(a.stdout, SubtitleStyle.Render(reloadHint))
	return nil
}

// dependentsOf returns every module whose dependency chain reaches id.
func dependentsOf(inv *app.Inventory, id module.ID) []string {
	deps := make(map[string][]string, len(inv.Modules))
	for _, e := range inv.Modules {
		ds := make([]string, 0, len(e.Descriptor.Dependencies))
		for _, d := range e.Descriptor.Dependencies {
			ds = append(ds, string(d))
		}
		deps[string(e.ID)] = ds
	}
	g, _ := dag.FromDependencies(deps)

	seen := map[string]bool{string(id): true}
	queue := []string{string(id)}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.Dependents(cur) {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	slices.Sort(out)
	return out
}

type historyFlagValues struct {
	module string
	action string
	limit  int
	prune  time.Duration
}

func newHistoryCommand(a *App) *cobra.Command {
	var flags historyFlagValues
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded lifecycle transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showHistory(cmd.Context(), a, flags)
		},
	}
	cmd.Flags().StringVar(&flags.module, "module", "", "only show transitions of this module")
	cmd.Flags().StringVar(&flags.action, "action", "", "only show this action (loaded, load_failed, unloaded, enabled, disabled, skipped, reloaded)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 20, "maximum number of transitions")
	cmd.Flags().DurationVar(&flags.prune, "prune", 0, "delete transitions older than this age instead of listing")
	return cmd
}

func showHistory(ctx context.Context, a *App, flags historyFlagValues) error {
	resolved, err := a.resolveConfig(ctx)
	if err != nil {
		return err
	}
	cfg := resolved.Config
	if !cfg.Journal.Enabled {
		return issue.Fail(issue.JournalUnavailableId).
			During("read lifecycle journal").
			Suggest("Set journal.enabled to true and restart the host").
			Because(errors.New("journal is disabled"))
	}

	j, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		return issue.Fail(issue.JournalUnavailableId).On(cfg.Journal.Path).Because(err)
	}
	defer j.Close()

	if flags.prune > 0 {
		n, err := j.Prune(ctx, time.Now().Add(-flags.prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s pruned %d transition(s)\n", SuccessStyle.Render("✓"), n)
		return nil
	}

	hist, err := j.History(ctx, journal.Query{
		Module: module.ID(flags.module),
		Action: lifecycle.Action(flags.action),
		Limit:  flags.limit,
	})
	if err != nil {
		return err
	}
	if len(hist) == 0 {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("no transitions recorded"))
		return nil
	}

	t := newTable("TIME", "ACTION", "MODULE", "DETAIL")
	for _, tr := range hist {
		t.Row(tr.At.Local().Format(time.DateTime), string(tr.Action), string(tr.Module), tr.Detail)
	}
	fmt.Fprintln(a.stdout, t.Render())
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TitleStyle.PaddingRight(2)
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})
}

