// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/pkg/module"
)

// BaselineID is the reserved ID of the built-in administration module.
const BaselineID module.ID = "default"

const maxSuggestions = 25

// baseline describes the built-in module. It provides the reload and
// modules commands and can be neither discovered nor disabled.
func (c *Controller) baseline() *module.Descriptor {
	moduleOpt := module.OptionDef{
		Name:         "module",
		Description:  "Module ID",
		Type:         module.OptionString,
		Required:     true,
		Autocomplete: true,
	}
	return &module.Descriptor{
		Name:        "Default",
		Version:     "1.0.0",
		Description: "Built-in module administration commands.",
		Authors:     []string{"modhost"},
		Commands: []module.Command{
			{
				Label: "Reload",
				Definition: module.CommandDef{
					Name:        "reload",
					Description: "Reload every module",
				},
				Handler: c.handleReload,
			},
			{
				Label: "Modules",
				Definition: module.CommandDef{
					Name:        "modules",
					Description: "Manage modules",
					Options: []module.OptionDef{
						{Name: "list", Description: "List known modules", Type: module.OptionSubcommand},
						{Name: "enable", Description: "Enable a module", Type: module.OptionSubcommand, Options: []module.OptionDef{moduleOpt}},
						{Name: "disable", Description: "Disable a module", Type: module.OptionSubcommand, Options: []module.OptionDef{moduleOpt}},
					},
				},
				Handler:      c.handleModules,
				Autocomplete: c.completeModules,
			},
		},
	}
}

func (c *Controller) reply(ctx context.Context, ev *module.Event, color func(interaction.Theme) int, title, desc string) error {
	return ev.Reply(ctx, module.Message{
		Title:       title,
		Description: desc,
		Color:       color(c.router.Theme()),
		Footer:      "Requested by " + ev.User,
		Timestamp:   c.now(),
	})
}

func standby(t interaction.Theme) int { return t.Standby }
func success(t interaction.Theme) int { return t.Success }
func failure(t interaction.Theme) int { return t.Error }
func warn(t interaction.Theme) int    { return t.Warn }

func (c *Controller) handleReload(ctx context.Context, ev *module.Event) error {
	if err := c.reply(ctx, ev, standby, "Reloading", "Reloading modules..."); err != nil {
		return err
	}

	rep, err := c.Reload(ctx)
	switch {
	case errors.Is(err, ErrReloadInProgress):
		return c.reply(ctx, ev, warn, "Reload", "A reload is already in progress.")
	case rep == nil:
		return interaction.CommandError("Failed to reload modules").WithDiagnostic(err)
	case err != nil:
		return c.reply(ctx, ev, failure, "Reload finished with errors",
			rep.Summary()+"\n```\n"+err.Error()+"\n```")
	default:
		return c.reply(ctx, ev, success, "Reloaded", rep.Summary())
	}
}

func (c *Controller) handleModules(ctx context.Context, ev *module.Event) error {
	switch ev.Subcommand {
	case "list":
		return ev.Reply(ctx, c.listMessage(ev))
	case "enable", "disable":
		return c.handleToggle(ctx, ev)
	default:
		return interaction.UnknownSubCommand(ev.Group, ev.Subcommand)
	}
}

func (c *Controller) handleToggle(ctx context.Context, ev *module.Event) error {
	raw, _ := ev.Option("module")
	id := module.ID(strings.TrimSpace(raw))
	verb := ev.Subcommand

	progress := strings.TrimSuffix(verb, "e") + "ing"
	title := strings.ToUpper(progress[:1]) + progress[1:]
	if err := c.reply(ctx, ev, standby, title, fmt.Sprintf("%s module `%s`...", title, id)); err != nil {
		return err
	}

	var err error
	if verb == "enable" {
		err = c.Enable(ctx, id)
	} else {
		err = c.Disable(ctx, id)
	}

	var pe *PreconditionError
	switch {
	case errors.As(err, &pe) && pe.ID == id:
		return c.reply(ctx, ev, failure, "Module "+verb+" refused", "`"+pe.Error()+"`")
	case err != nil:
		return c.reply(ctx, ev, failure, "Module "+verb+" failed", "```\n"+err.Error()+"\n```")
	default:
		return c.reply(ctx, ev, success, "Module "+verb+"d", fmt.Sprintf("Module `%s` is now %sd.", id, verb))
	}
}

func (c *Controller) listMessage(ev *module.Event) module.Message {
	statuses := c.Status()
	fields := make([]module.Field, 0, len(statuses))
	for _, st := range statuses {
		d := st.Descriptor
		var sb strings.Builder
		if d.Description != "" {
			sb.WriteString(d.Description)
			sb.WriteString("\n")
		}
		if len(d.Authors) > 0 {
			fmt.Fprintf(&sb, "Authors: %s\n", strings.Join(d.Authors, ", "))
		}
		fmt.Fprintf(&sb, "Status: %s", st.State)
		if st.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", st.Reason)
		}
		name := fmt.Sprintf("%s (%s)", d.Name, st.ID)
		if d.Version != "" {
			name += " v" + d.Version
		}
		fields = append(fields, module.Field{Name: name, Value: sb.String()})
	}
	return module.Message{
		Title:     "Modules",
		Fields:    fields,
		Color:     c.router.Theme().Neutral,
		Footer:    "Requested by " + ev.User,
		Timestamp: c.now(),
	}
}

// completeModules offers disabled modules to enable and enabled modules
// to disable.
func (c *Controller) completeModules(ctx context.Context, ev *module.Event) error {
	if ev.Focused != "" && ev.Focused != "module" {
		return nil
	}
	typed, _ := ev.Option("module")
	typed = strings.ToLower(strings.TrimSpace(typed))

	var choices []module.Choice
	for _, st := range c.Status() {
		if st.ID == BaselineID {
			continue
		}
		enabled := st.State == StateEnabled
		if (ev.Subcommand == "enable") == enabled {
			continue
		}
		if !strings.HasPrefix(string(st.ID), typed) {
			continue
		}
		choices = append(choices, module.Choice{Name: fmt.Sprintf("%s (%s)", st.Descriptor.Name, st.ID), Value: string(st.ID)})
		if len(choices) == maxSuggestions {
			break
		}
	}
	return ev.Responder.Suggest(ctx, choices)
}
