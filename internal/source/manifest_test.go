// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/script"
	"github.com/modhost/modhost/pkg/module"

	"github.com/charmbracelet/log"
)

const greeterCUE = `
name:        "Greeter"
version:     "1.2.0"
description: "Says hello"
authors: ["ops"]
dependencies: ["core-lib"]
commands: [{
	name:        "hello"
	description: "Greets the caller"
	options: [{name: "who", required: true, autocomplete: true}]
	script: """
		echo "hello $MODHOST_OPT_WHO from $MODHOST_USER"
		"""
	autocomplete: """
		echo alice
		printf 'Bob\tbob\n'
		"""
}, {
	name:   "fail"
	script: "echo 'no luck' >&2; exit 2"
}]
buttons: [{id: "wave", script: "echo waved"}]
load: "echo loading"
`

const greeterTOML = `
name = "Toml Greeter"
version = "0.1.0"

[[commands]]
name = "hi"
script = "echo hi"

[[menus]]
id = "pick"
script = "echo \"picked $MODHOST_VALUES\""
`

type stubResponder struct {
	replies []module.Message
	choices []module.Choice
}

func (s *stubResponder) Reply(_ context.Context, m module.Message) error {
	s.replies = append(s.replies, m)
	return nil
}

func (s *stubResponder) EditReply(_ context.Context, m module.Message) error {
	s.replies = append(s.replies, m)
	return nil
}

func (s *stubResponder) Replied() bool { return len(s.replies) > 0 }

func (s *stubResponder) Suggest(_ context.Context, c []module.Choice) error {
	s.choices = c
	return nil
}

type stubHost struct{ id module.ID }

func (h stubHost) ModuleID() module.ID { return h.id }
func (h stubHost) Logger() *log.Logger { return log.NewWithOptions(io.Discard, log.Options{}) }

func writeModule(t *testing.T, root, id, file, body string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestDir(t *testing.T) (*ManifestDir, string) {
	t.Helper()
	root := t.TempDir()
	return NewManifestDir(root, &script.Runner{}, log.NewWithOptions(io.Discard, log.Options{})), root
}

func TestManifestDirListCandidates(t *testing.T) {
	t.Parallel()

	m, root := newTestDir(t)
	writeModule(t, root, "greeter", CUEManifest, greeterCUE)
	writeModule(t, root, "Bad ID", CUEManifest, greeterCUE)
	writeModule(t, root, ".hidden", CUEManifest, greeterCUE)
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := m.ListCandidateIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"Bad ID", "greeter"}) {
		t.Errorf("ids = %v", ids)
	}

	missing := NewManifestDir(filepath.Join(root, "nope"), nil, nil)
	if ids, err := missing.ListCandidateIDs(context.Background()); err != nil || len(ids) != 0 {
		t.Errorf("missing root: %v, %v", ids, err)
	}
}

func TestManifestDirFetchCUE(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, root := newTestDir(t)
	writeModule(t, root, "greeter", CUEManifest, greeterCUE)

	d, err := m.Fetch(ctx, "greeter")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if d.Name != "Greeter" || d.Version != "1.2.0" || !d.DependsOn("core-lib") {
		t.Errorf("descriptor = %+v", d)
	}
	if !slices.Equal(d.CommandNames(), []string{"hello", "fail"}) {
		t.Errorf("commands = %v", d.CommandNames())
	}
	if opt := d.Commands[0].Definition.Options[0]; opt.Type != module.OptionString || !opt.Required {
		t.Errorf("option = %+v", opt)
	}

	resp := &stubResponder{}
	ev := &module.Event{Kind: module.KindCommand, Name: "hello", User: "carol",
		Options: map[string]string{"who": "world"}, Responder: resp}
	if err := d.Commands[0].Handler(ctx, ev); err != nil {
		t.Fatalf("hello handler: %v", err)
	}
	if len(resp.replies) != 1 || resp.replies[0].Description != "hello world from carol" {
		t.Errorf("replies = %+v", resp.replies)
	}

	ac := &module.Event{Kind: module.KindAutocomplete, Name: "hello", Focused: "who", Responder: resp}
	if err := d.Commands[0].Autocomplete(ctx, ac); err != nil {
		t.Fatalf("autocomplete: %v", err)
	}
	want := []module.Choice{{Name: "alice", Value: "alice"}, {Name: "Bob", Value: "bob"}}
	if !slices.Equal(resp.choices, want) {
		t.Errorf("choices = %+v", resp.choices)
	}

	err = d.Commands[1].Handler(ctx, &module.Event{Kind: module.KindCommand, Name: "fail", Responder: &stubResponder{}})
	var ie *interaction.Error
	if !errors.As(err, &ie) || ie.Error() != "Failed to execute command: no luck" {
		t.Errorf("fail handler error = %v", err)
	}

	btn := &stubResponder{}
	if err := d.Buttons["wave"](ctx, &module.Event{Kind: module.KindButton, CustomID: "wave", Responder: btn}); err != nil {
		t.Fatal(err)
	}
	if btn.replies[0].Description != "waved" {
		t.Errorf("button reply = %+v", btn.replies)
	}

	if err := d.Load(ctx, stubHost{id: "greeter"}); err != nil {
		t.Errorf("load hook: %v", err)
	}
}

func TestManifestDirFetchTOML(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, root := newTestDir(t)
	writeModule(t, root, "toml-mod", TOMLManifest, greeterTOML)

	d, err := m.Fetch(ctx, "toml-mod")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if d.Name != "Toml Greeter" || len(d.Commands) != 1 || d.Menus["pick"] == nil {
		t.Fatalf("descriptor = %+v", d)
	}

	resp := &stubResponder{}
	ev := &module.Event{Kind: module.KindSelectMenu, CustomID: "pick", Values: []string{"red"}, Responder: resp}
	if err := d.Menus["pick"](ctx, ev); err != nil {
		t.Fatal(err)
	}
	if resp.replies[0].Description != "picked red" {
		t.Errorf("reply = %+v", resp.replies)
	}
}

func TestManifestDirFetchErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, root := newTestDir(t)
	writeModule(t, root, "nameless", CUEManifest, `version: "1.0.0"`)
	writeModule(t, root, "invalid", CUEManifest, `name: "x", commands: [{name: "BAD NAME", script: "echo"}]`)
	writeModule(t, root, "badscript", CUEManifest, `name: "x", load: "echo 'unterminated"`)
	writeModule(t, root, "empty", "README.md", "nothing here")

	tests := []struct {
		id module.ID
		is error
	}{
		{"missing", ErrNotFound},
		{"nameless", ErrNotAModule},
		{"empty", ErrNotAModule},
		{"invalid", ErrConstructionFailed},
		{"badscript", ErrConstructionFailed},
	}
	for _, tt := range tests {
		if _, err := m.Fetch(ctx, tt.id); !errors.Is(err, tt.is) {
			t.Errorf("Fetch(%s) = %v, want %v", tt.id, err, tt.is)
		}
	}
}

func TestManifestDirInvalidateRereads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, root := newTestDir(t)
	writeModule(t, root, "editable", CUEManifest, `name: "Before"`)
	d, err := m.Fetch(ctx, "editable")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Before" {
		t.Fatalf("name = %q", d.Name)
	}

	writeModule(t, root, "editable", CUEManifest, `name: "After"`)
	if d, _ := m.Fetch(ctx, "editable"); d.Name != "Before" {
		t.Errorf("cached fetch should not see the edit, got %q", d.Name)
	}
	m.Invalidate()
	if d, _ := m.Fetch(ctx, "editable"); d.Name != "After" {
		t.Errorf("fetch after Invalidate = %q", d.Name)
	}
}

func TestEventEnv(t *testing.T) {
	t.Parallel()

	env := EventEnv("mod", &module.Event{
		Kind:    module.KindModal,
		User:    "dave",
		Options: map[string]string{"first-name": "Dave"},
		Values:  []string{"a", "b"},
	})
	if env["MODHOST_OPT_FIRST_NAME"] != "Dave" || env["MODHOST_EVENT_KIND"] != "modal" {
		t.Errorf("env = %v", env)
	}
	if !strings.Contains(env["MODHOST_VALUES"], "a\nb") {
		t.Errorf("values = %q", env["MODHOST_VALUES"])
	}
}
