// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/script"
	"github.com/modhost/modhost/pkg/module"
)

// maxChoices is the number of autocomplete suggestions forwarded to the
// platform.
const maxChoices = 25

// describe turns a manifest into a descriptor whose handlers and hooks run
// the manifest's scripts with dir as working directory.
func (m *ManifestDir) describe(id module.ID, dir string, man *Manifest) *module.Descriptor {
	d := &module.Descriptor{
		Name:        man.Name,
		Version:     man.Version,
		Description: man.Description,
		Authors:     slices.Clone(man.Authors),
	}
	for _, dep := range man.Dependencies {
		d.Dependencies = append(d.Dependencies, module.ID(dep))
	}

	for _, c := range man.Commands {
		cmd := module.Command{
			Label:      c.Label,
			Definition: commandDef(c),
			Handler:    m.handler(id, dir, module.KindCommand, "commands."+c.Name, c.Script),
		}
		if c.Autocomplete != "" {
			cmd.Autocomplete = m.completer(id, dir, "commands."+c.Name+".autocomplete", c.Autocomplete)
		}
		d.Commands = append(d.Commands, cmd)
	}

	d.Buttons = m.bindings(id, dir, module.KindButton, "buttons", man.Buttons)
	d.Modals = m.bindings(id, dir, module.KindModal, "modals", man.Modals)
	d.Menus = m.bindings(id, dir, module.KindSelectMenu, "menus", man.Menus)

	if man.Load != "" {
		d.Load = m.hook(dir, "load", man.Load)
	}
	if man.Unload != "" {
		d.Unload = m.hook(dir, "unload", man.Unload)
	}
	return d
}

func commandDef(c ManifestCommand) module.CommandDef {
	def := module.CommandDef{Name: c.Name, Description: c.Description}
	if def.Description == "" {
		def.Description = c.Name
	}
	for _, o := range c.Options {
		opt := module.OptionDef{
			Name:         o.Name,
			Description:  o.Description,
			Type:         module.OptionType(o.Type),
			Required:     o.Required,
			Autocomplete: o.Autocomplete,
		}
		for _, choice := range o.Choices {
			opt.Choices = append(opt.Choices, module.Choice{Name: choice, Value: choice})
		}
		def.Options = append(def.Options, opt)
	}
	return def
}

func (m *ManifestDir) bindings(id module.ID, dir string, kind module.Kind, label string, in []ManifestBinding) map[string]module.Handler {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]module.Handler, len(in))
	for _, b := range in {
		out[b.ID] = m.handler(id, dir, kind, label+"."+b.ID, b.Script)
	}
	return out
}

// handler runs body for an event and replies with its stdout. A non-zero
// exit becomes an interaction error carrying the last line of stderr.
func (m *ManifestDir) handler(id module.ID, dir string, kind module.Kind, label, body string) module.Handler {
	return func(ctx context.Context, ev *module.Event) error {
		res, err := m.runner.Run(ctx, script.Request{
			Name:   string(id) + "/" + label,
			Script: body,
			Dir:    dir,
			Env:    EventEnv(id, ev),
		})
		if err != nil {
			return failure(kind, "the handler script could not run").WithDiagnostic(err)
		}
		if res.ExitCode != 0 {
			return failure(kind, res.Failure())
		}

		out := strings.TrimSpace(res.Stdout)
		if out == "" {
			if kind != module.KindCommand {
				return nil
			}
			out = "Done."
		}
		return ev.Reply(ctx, module.Message{Description: out})
	}
}

// completer runs body and offers each stdout line as a suggestion. A line
// of the form "name<TAB>value" sets both fields.
func (m *ManifestDir) completer(id module.ID, dir, label, body string) module.Handler {
	return func(ctx context.Context, ev *module.Event) error {
		res, err := m.runner.Run(ctx, script.Request{
			Name:   string(id) + "/" + label,
			Script: body,
			Dir:    dir,
			Env:    EventEnv(id, ev),
		})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("autocomplete: %s", res.Failure())
		}

		var choices []module.Choice
		for line := range strings.Lines(res.Stdout) {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			name, value, ok := strings.Cut(line, "\t")
			if !ok {
				value = name
			}
			choices = append(choices, module.Choice{Name: name, Value: value})
			if len(choices) == maxChoices {
				break
			}
		}
		return ev.Responder.Suggest(ctx, choices)
	}
}

func (m *ManifestDir) hook(dir, label, body string) module.Hook {
	return func(ctx context.Context, host module.Host) error {
		res, err := m.runner.Run(ctx, script.Request{
			Name:   string(host.ModuleID()) + "/" + label,
			Script: body,
			Dir:    dir,
			Env:    map[string]string{"MODHOST_MODULE": string(host.ModuleID())},
		})
		if err != nil {
			return err
		}
		if out := strings.TrimSpace(res.Stdout); out != "" {
			host.Logger().Info(label+" script output", "output", out)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("%s script: %s", label, res.Failure())
		}
		return nil
	}
}

func failure(kind module.Kind, msg string) *interaction.Error {
	switch kind {
	case module.KindCommand:
		return interaction.CommandError(msg)
	case module.KindButton:
		return interaction.ButtonError(msg)
	case module.KindModal:
		return interaction.ModalError(msg)
	default:
		return interaction.NewError(msg)
	}
}

// EventEnv exposes ev to a script as MODHOST_* variables. Options become
// MODHOST_OPT_<NAME> with the name upper-cased and '-' mapped to '_';
// select-menu values are newline separated in MODHOST_VALUES.
func EventEnv(id module.ID, ev *module.Event) map[string]string {
	env := map[string]string{
		"MODHOST_MODULE":     string(id),
		"MODHOST_EVENT_ID":   ev.ID,
		"MODHOST_EVENT_KIND": ev.Kind.String(),
		"MODHOST_USER":       ev.User,
		"MODHOST_COMMAND":    ev.Name,
		"MODHOST_GROUP":      ev.Group,
		"MODHOST_SUBCOMMAND": ev.Subcommand,
		"MODHOST_CUSTOM_ID":  ev.CustomID,
		"MODHOST_FOCUSED":    ev.Focused,
		"MODHOST_VALUES":     strings.Join(ev.Values, "\n"),
	}
	for _, name := range slices.Sorted(maps.Keys(ev.Options)) {
		key := "MODHOST_OPT_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env[key] = ev.Options[name]
	}
	return env
}
