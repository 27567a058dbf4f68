// SPDX-License-Identifier: MPL-2.0

// Package echo provides the echo module. It depends on ping and shows every
// kind of interaction: a command with autocomplete, a button, a modal and
// a select menu.
package echo

import (
	"context"
	"strings"
	"sync"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/source"
	"github.com/modhost/modhost/modules/ping"
	"github.com/modhost/modhost/pkg/module"
)

const (
	// ID is the module ID echo registers under.
	ID module.ID = "echo"

	// ButtonRepeat repeats the last echoed text.
	ButtonRepeat = "echo-repeat"
	// ModalCompose echoes the modal's text field.
	ModalCompose = "echo-compose"
	// MenuShout echoes every selected value in upper case.
	MenuShout = "echo-shout"

	historySize = 10
)

func init() {
	source.Register(ID, New)
}

// history keeps the most recent echoes, newest first.
type history struct {
	mu    sync.Mutex
	texts []string
}

func (h *history) add(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.texts = append([]string{s}, h.texts...)
	if len(h.texts) > historySize {
		h.texts = h.texts[:historySize]
	}
}

func (h *history) last() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.texts) == 0 {
		return "", false
	}
	return h.texts[0], true
}

func (h *history) matching(prefix string) []module.Choice {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []module.Choice
	for _, t := range h.texts {
		if strings.HasPrefix(strings.ToLower(t), strings.ToLower(prefix)) {
			out = append(out, module.Choice{Name: t, Value: t})
		}
	}
	return out
}

// New builds a fresh echo descriptor with an empty history.
func New() (*module.Descriptor, error) {
	h := &history{}

	echo := func(ctx context.Context, ev *module.Event, text string) error {
		if strings.TrimSpace(text) == "" {
			return interaction.CommandError("Nothing to echo")
		}
		h.add(text)
		return ev.Reply(ctx, module.Message{Content: text})
	}

	return &module.Descriptor{
		Name:         "Echo",
		Version:      "1.0.0",
		Description:  "Repeats what it is given.",
		Authors:      []string{"modhost"},
		Dependencies: []module.ID{ping.ID},
		Commands: []module.Command{{
			Label: "Echo",
			Definition: module.CommandDef{
				Name:        "echo",
				Description: "Repeat a message",
				Options: []module.OptionDef{{
					Name:         "text",
					Description:  "What to repeat",
					Type:         module.OptionString,
					Required:     true,
					Autocomplete: true,
				}},
			},
			Handler: func(ctx context.Context, ev *module.Event) error {
				text, _ := ev.Option("text")
				return echo(ctx, ev, text)
			},
			Autocomplete: func(ctx context.Context, ev *module.Event) error {
				prefix, _ := ev.Option(ev.Focused)
				return ev.Responder.Suggest(ctx, h.matching(prefix))
			},
		}},
		Buttons: map[string]module.Handler{
			ButtonRepeat: func(ctx context.Context, ev *module.Event) error {
				text, ok := h.last()
				if !ok {
					return interaction.ButtonError("Nothing has been echoed yet")
				}
				return ev.Reply(ctx, module.Message{Content: text})
			},
		},
		Modals: map[string]module.Handler{
			ModalCompose: func(ctx context.Context, ev *module.Event) error {
				text, _ := ev.Option("text")
				return echo(ctx, ev, text)
			},
		},
		Menus: map[string]module.Handler{
			MenuShout: func(ctx context.Context, ev *module.Event) error {
				return echo(ctx, ev, strings.ToUpper(strings.Join(ev.Values, " ")))
			},
		},
	}, nil
}
