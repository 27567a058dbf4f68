// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/pkg/module"
)

func dispatch(h *harness, ev *module.Event) *platform.Collector {
	col := &platform.Collector{}
	ev.Responder = col
	if ev.User == "" {
		ev.User = "tester"
	}
	h.c.Router().Dispatch(context.Background(), ev)
	return col
}

func modulesCmd(sub, id string) *module.Event {
	ev := &module.Event{Kind: module.KindCommand, Name: "modules", Subcommand: sub}
	if id != "" {
		ev.Options = map[string]string{"module": id}
	}
	return ev
}

func TestBaseline_List(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newStubSource().add("mod-a", desc("mod-a")).add("mod-b", desc("mod-b")), newMemStore("mod-b"))
	h.reload(t)

	col := dispatch(h, modulesCmd("list", ""))
	msg, ok := col.Last()
	if !ok {
		t.Fatal("no reply")
	}
	if msg.Title != "Modules" || len(msg.Fields) != 3 {
		t.Fatalf("reply = %+v", msg)
	}
	var text strings.Builder
	for _, f := range msg.Fields {
		text.WriteString(f.Name + "\n" + f.Value + "\n")
	}
	for _, want := range []string{"Module mod-a (mod-a) v1.0.0", "Status: enabled", "Status: disabled", "Authors: tests"} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("list does not mention %q:\n%s", want, text.String())
		}
	}
	if msg.Color != h.c.Router().Theme().Neutral {
		t.Errorf("Color = %d, want neutral", msg.Color)
	}
}

func TestBaseline_DisableAndEnable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newStubSource().add("mod-a", desc("mod-a")), nil)
	h.reload(t)
	theme := h.c.Router().Theme()

	col := dispatch(h, modulesCmd("disable", "mod-a"))
	replies := col.Replies()
	if len(replies) != 2 || replies[0].Kind != platform.ReplySent || replies[1].Kind != platform.ReplyEdited {
		t.Fatalf("replies = %+v", replies)
	}
	if replies[0].Message.Color != theme.Standby {
		t.Errorf("progress colour = %d, want standby", replies[0].Message.Color)
	}
	if final := replies[1].Message; final.Color != theme.Success || !strings.Contains(final.Description, "disabled") {
		t.Errorf("final reply = %+v", final)
	}
	if h.c.IsEnabled("mod-a") {
		t.Fatal("mod-a should be disabled")
	}

	col = dispatch(h, modulesCmd("enable", "mod-a"))
	if final, _ := col.Last(); final.Color != theme.Success {
		t.Errorf("enable reply = %+v", final)
	}
	if !h.c.IsEnabled("mod-a") {
		t.Error("mod-a should be enabled")
	}
}

func TestBaseline_RefusesProtectedModule(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newStubSource(), nil)
	h.reload(t)

	col := dispatch(h, modulesCmd("disable", string(BaselineID)))
	final, _ := col.Last()
	if final.Color != h.c.Router().Theme().Error || !strings.Contains(final.Description, "protected") {
		t.Errorf("reply = %+v", final)
	}
	if !h.c.IsEnabled(BaselineID) {
		t.Error("baseline must stay enabled")
	}
}

func TestBaseline_Reload(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	h := newHarness(t, src, nil)
	h.reload(t)

	src.add("mod-new", desc("mod-new"))
	col := dispatch(h, &module.Event{Kind: module.KindCommand, Name: "reload"})

	final, _ := col.Last()
	if final.Title != "Reloaded" || final.Color != h.c.Router().Theme().Success {
		t.Errorf("reply = %+v", final)
	}
	if !h.c.IsEnabled("mod-new") {
		t.Error("mod-new should be loaded by the reload command")
	}
}

func TestBaseline_ReloadReportsFailures(t *testing.T) {
	t.Parallel()

	broken := desc("mod-bad")
	broken.Load = func(context.Context, module.Host) error { return context.DeadlineExceeded }
	h := newHarness(t, newStubSource().add("mod-bad", broken), nil)
	if _, err := h.c.Reload(context.Background()); err == nil {
		t.Fatal("expected the first reload to fail")
	}

	col := dispatch(h, &module.Event{Kind: module.KindCommand, Name: "reload"})
	final, _ := col.Last()
	if final.Color != h.c.Router().Theme().Error || !strings.Contains(final.Description, "mod-bad") {
		t.Errorf("reply = %+v", final)
	}
}

func TestBaseline_UnknownSubcommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newStubSource(), nil)
	h.reload(t)

	col := dispatch(h, modulesCmd("purge", ""))
	final, _ := col.Last()
	if !strings.Contains(final.Description, "Sub command purge does not exist.") {
		t.Errorf("reply = %+v", final)
	}
}

func TestBaseline_Autocomplete(t *testing.T) {
	t.Parallel()

	src := newStubSource().
		add("mod-a", desc("mod-a")).
		add("mod-b", desc("mod-b")).
		add("other", desc("other"))
	h := newHarness(t, src, newMemStore("mod-b", "other"))
	h.reload(t)

	complete := func(sub, typed string) []string {
		ev := &module.Event{
			Kind:       module.KindAutocomplete,
			Name:       "modules",
			Subcommand: sub,
			Focused:    "module",
			Options:    map[string]string{"module": typed},
		}
		var values []string
		for _, c := range dispatch(h, ev).Choices() {
			values = append(values, c.Value)
		}
		return values
	}

	if got := complete("enable", "mod"); !slices.Equal(got, []string{"mod-b"}) {
		t.Errorf("enable suggestions = %v", got)
	}
	if got := complete("enable", ""); !slices.Equal(got, []string{"mod-b", "other"}) {
		t.Errorf("enable suggestions = %v", got)
	}
	if got := complete("disable", ""); !slices.Equal(got, []string{"mod-a"}) {
		t.Errorf("disable suggestions = %v", got)
	}
}
