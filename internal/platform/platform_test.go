// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/modhost/modhost/pkg/module"
)

func TestMemory_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(module.CommandDef{Name: "stale"})

	ping, err := m.Create(ctx, module.CommandDef{Name: "ping", Description: "v1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ping.ID == "" {
		t.Fatal("Create() returned an empty ID")
	}

	updated, err := m.Update(ctx, ping.ID, module.CommandDef{Name: "ping", Description: "v2"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ID != ping.ID || updated.Description != "v2" {
		t.Errorf("Update() = %+v", updated)
	}

	list, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "ping" || list[1].Name != "stale" {
		t.Errorf("List() = %+v", list)
	}

	if err := m.Delete(ctx, ping.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete(ctx, ping.ID); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("second Delete() error = %v, want ErrCommandNotFound", err)
	}
	if _, err := m.Update(ctx, "missing", module.CommandDef{Name: "x"}); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrCommandNotFound", err)
	}
	if got := m.Names(); !slices.Equal(got, []string{"stale"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestMemory_CreateReplacesSameName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	first, _ := m.Create(ctx, module.CommandDef{Name: "ping"})
	second, _ := m.Create(ctx, module.CommandDef{Name: "ping"})
	if first.ID == second.ID {
		t.Error("expected a new ID")
	}
	if got := m.Names(); !slices.Equal(got, []string{"ping"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestMemory_FailOn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("boom")
	m := NewMemory()
	m.FailOn(OpCreate, boom)

	if _, err := m.Create(ctx, module.CommandDef{Name: "ping"}); !errors.Is(err, boom) {
		t.Errorf("Create() error = %v, want boom", err)
	}
	if m.Calls(OpCreate) != 1 {
		t.Errorf("Calls(create) = %d", m.Calls(OpCreate))
	}

	m.FailOn(OpCreate, nil)
	if _, err := m.Create(ctx, module.CommandDef{Name: "ping"}); err != nil {
		t.Errorf("Create() after clearing error = %v", err)
	}
}

func TestCollector(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var seen []ReplyKind
	c := &Collector{OnReply: func(r Reply) { seen = append(seen, r.Kind) }}

	if err := c.EditReply(ctx, module.Message{}); !errors.Is(err, ErrNoReply) {
		t.Errorf("EditReply() before Reply error = %v", err)
	}
	if c.Replied() {
		t.Error("Replied() = true before any reply")
	}
	if err := c.Reply(ctx, module.Message{Description: "working"}); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if err := c.Reply(ctx, module.Message{}); !errors.Is(err, ErrAlreadyReplied) {
		t.Errorf("second Reply() error = %v", err)
	}
	if err := c.EditReply(ctx, module.Message{Description: "done"}); err != nil {
		t.Fatalf("EditReply() error = %v", err)
	}
	if err := c.Suggest(ctx, []module.Choice{{Name: "a", Value: "a"}}); err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}

	last, ok := c.Last()
	if !ok || last.Description != "done" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
	if got := c.Choices(); len(got) != 1 || got[0].Value != "a" {
		t.Errorf("Choices() = %v", got)
	}
	if want := []ReplyKind{ReplySent, ReplyEdited, ReplySuggested}; !slices.Equal(seen, want) {
		t.Errorf("OnReply saw %v, want %v", seen, want)
	}
}
