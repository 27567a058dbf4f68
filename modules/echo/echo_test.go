// SPDX-License-Identifier: MPL-2.0

package echo

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/modules/ping"
	"github.com/modhost/modhost/pkg/module"
)

func call(t *testing.T, h module.Handler, ev *module.Event) (*platform.Collector, error) {
	t.Helper()
	c := &platform.Collector{}
	ev.Responder = c
	return c, h(context.Background(), ev)
}

func TestEcho_DependsOnPing(t *testing.T) {
	t.Parallel()

	d, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !d.DependsOn(ping.ID) {
		t.Errorf("Dependencies = %v, want %s", d.Dependencies, ping.ID)
	}
}

func TestEcho_Interactions(t *testing.T) {
	t.Parallel()

	d, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cmd := d.Commands[0]

	if _, err := call(t, d.Buttons[ButtonRepeat], &module.Event{Kind: module.KindButton, CustomID: ButtonRepeat}); err == nil {
		t.Error("repeat before any echo succeeded")
	}

	tests := []struct {
		name    string
		handler module.Handler
		ev      *module.Event
		want    string
	}{
		{"command", cmd.Handler, &module.Event{Kind: module.KindCommand, Name: "echo", Options: map[string]string{"text": "hello"}}, "hello"},
		{"repeat", d.Buttons[ButtonRepeat], &module.Event{Kind: module.KindButton, CustomID: ButtonRepeat}, "hello"},
		{"modal", d.Modals[ModalCompose], &module.Event{Kind: module.KindModal, CustomID: ModalCompose, Options: map[string]string{"text": "help me"}}, "help me"},
		{"menu", d.Menus[MenuShout], &module.Event{Kind: module.KindSelectMenu, CustomID: MenuShout, Values: []string{"a", "b"}}, "A B"},
	}
	for _, tt := range tests {
		c, err := call(t, tt.handler, tt.ev)
		if err != nil {
			t.Fatalf("%s: error = %v", tt.name, err)
		}
		msg, ok := c.Last()
		if !ok || msg.Content != tt.want {
			t.Errorf("%s: reply = %q, want %q", tt.name, msg.Content, tt.want)
		}
	}

	c, err := call(t, cmd.Autocomplete, &module.Event{
		Kind:    module.KindAutocomplete,
		Name:    "echo",
		Focused: "text",
		Options: map[string]string{"text": "HEL"},
	})
	if err != nil {
		t.Fatalf("autocomplete error = %v", err)
	}
	var got []string
	for _, ch := range c.Choices() {
		got = append(got, ch.Value)
	}
	if !slices.Equal(got, []string{"help me", "hello"}) {
		t.Errorf("suggestions = %v, want [help me hello]", got)
	}
}

func TestEcho_EmptyText(t *testing.T) {
	t.Parallel()

	d, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = call(t, d.Commands[0].Handler, &module.Event{Kind: module.KindCommand, Name: "echo", Options: map[string]string{"text": "  "}})
	var ie *interaction.Error
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want *interaction.Error", err)
	}
}
