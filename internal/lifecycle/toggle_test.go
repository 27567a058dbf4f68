// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/pkg/module"

	"github.com/charmbracelet/log"
)

func TestLoad_RejectsSecondLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, newStubSource(), nil)

	if err := h.c.Load(ctx, "mod-a", desc("mod-a")); err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	err := h.c.Load(ctx, "mod-a", desc("mod-a"))
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T: %v", err, err)
	}
	wantPrecondition(t, err, ErrAlreadyEnabled)

	if got := h.api.Calls(platform.OpCreate); got != 1 {
		t.Errorf("platform create calls = %d, want 1", got)
	}
	if got := h.api.Calls(platform.OpUpdate); got != 0 {
		t.Errorf("platform update calls = %d, want 0", got)
	}
	if !slices.Equal(h.c.Enabled(), []module.ID{"mod-a"}) {
		t.Errorf("Enabled() = %v", h.c.Enabled())
	}
}

func TestLoad_Preconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		id     module.ID
		desc   *module.Descriptor
		want   error
		setup  func(h *harness)
		reason bool
	}{
		{name: "invalid id", id: "A", desc: desc("A"), want: ErrInvalidModuleID, reason: true},
		{name: "missing name", id: "mod-a", desc: &module.Descriptor{}, want: module.ErrMissingName},
		{name: "nil descriptor", id: "mod-a", want: module.ErrMissingName},
		{name: "disabled", id: "mod-off", desc: desc("mod-off"), want: ErrModuleDisabled, reason: true},
		{name: "dependency not loaded", id: "mod-b", desc: desc("mod-b", "mod-a"), want: ErrDependencyNotLoaded, reason: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, newStubSource(), newMemStore("mod-off"))
			err := h.c.Load(context.Background(), tt.id, tt.desc)
			var le *LoadError
			if !errors.As(err, &le) || le.ID != tt.id {
				t.Fatalf("expected *LoadError for %s, got %v", tt.id, err)
			}
			if tt.reason {
				wantPrecondition(t, err, tt.want)
			} else if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if h.c.IsEnabled(tt.id) {
				t.Error("module must not be enabled")
			}
		})
	}
}

func TestLoad_HookFailureLeavesNoRegistrations(t *testing.T) {
	t.Parallel()

	d := desc("mod-a")
	d.Load = func(context.Context, module.Host) error { return errors.New("no config") }
	h := newHarness(t, newStubSource(), nil)

	if err := h.c.Load(context.Background(), "mod-a", d); err == nil {
		t.Fatal("expected an error")
	}
	if b := h.c.Router().Bindings("mod-a"); !b.Empty() {
		t.Errorf("bindings left after failed load: %+v", b)
	}
	if len(h.api.Names()) != 0 {
		t.Errorf("platform commands = %v", h.api.Names())
	}
}

func TestLoad_HookSeesHost(t *testing.T) {
	t.Parallel()

	var got module.ID
	d := desc("mod-a")
	d.Load = func(_ context.Context, host module.Host) error {
		got = host.ModuleID()
		if host.Logger() == nil {
			return errors.New("no logger")
		}
		return nil
	}
	h := newHarness(t, newStubSource(), nil)
	if err := h.c.Load(context.Background(), "mod-a", d); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "mod-a" {
		t.Errorf("host.ModuleID() = %q", got)
	}
}

func TestUnload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hookErr := errors.New("flush failed")
	d := desc("mod-a")
	d.Unload = func(context.Context, module.Host) error { return hookErr }
	h := newHarness(t, newStubSource(), nil)

	if err := h.c.Unload(ctx, "mod-a", true); err != nil {
		t.Errorf("Unload() of a module that is not loaded = %v, want nil", err)
	}

	if err := h.c.Load(ctx, "mod-a", d); err != nil {
		t.Fatal(err)
	}
	err := h.c.Unload(ctx, "mod-a", true)
	var ue *UnloadError
	if !errors.As(err, &ue) || !errors.Is(err, hookErr) {
		t.Fatalf("Unload() error = %v, want *UnloadError wrapping the hook error", err)
	}
	if h.c.IsEnabled("mod-a") {
		t.Error("a failing unload hook must not keep the module enabled")
	}
	if b := h.c.Router().Bindings("mod-a"); !b.Empty() {
		t.Errorf("bindings left: %+v", b)
	}
}

func TestUnload_KeepsRegistrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, newStubSource(), nil)
	if err := h.c.Load(ctx, "mod-a", desc("mod-a")); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Unload(ctx, "mod-a", false); err != nil {
		t.Fatal(err)
	}
	if b := h.c.Router().Bindings("mod-a"); len(b.Commands) != 1 || len(b.Buttons) != 1 {
		t.Errorf("registrations should be kept: %+v", b)
	}

	// Kept bindings no longer reach the unloaded module's handlers.
	called := false
	d := desc("mod-a")
	d.Buttons = map[string]module.Handler{"mod-a:btn": func(context.Context, *module.Event) error {
		called = true
		return nil
	}}
	col := dispatch(h, &module.Event{Kind: module.KindButton, CustomID: "mod-a:btn"})
	if msg, ok := col.Last(); !ok || !strings.Contains(msg.Description, "Module is reloading") {
		t.Errorf("suspended button reply = %+v", msg)
	}
	if called {
		t.Fatal("handler ran while its module was unloaded")
	}

	if err := h.c.Load(ctx, "mod-a", d); err != nil {
		t.Fatal(err)
	}
	dispatch(h, &module.Event{Kind: module.KindButton, CustomID: "mod-a:btn"})
	if !called {
		t.Error("button handler not resumed after the module loaded again")
	}
}

func TestDisable_CascadesToDependents(t *testing.T) {
	t.Parallel()

	src := newStubSource().
		add("mod-a", desc("mod-a")).
		add("mod-b", desc("mod-b", "mod-a")).
		add("mod-c", desc("mod-c", "mod-b")).
		add("mod-d", desc("mod-d"))
	h := newHarness(t, src, nil)
	h.reload(t)

	var changes []Change
	h.c.Notifier().Subscribe(func(c Change) { changes = append(changes, c) })

	if got := h.c.Dependents("mod-a"); !slices.Equal(got, []module.ID{"mod-b"}) {
		t.Errorf("Dependents(mod-a) = %v", got)
	}

	if err := h.c.Disable(context.Background(), "mod-a"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}

	if want := []module.ID{BaselineID, "mod-d"}; !slices.Equal(h.c.Enabled(), want) {
		t.Errorf("Enabled() = %v, want %v", h.c.Enabled(), want)
	}
	disabled := h.store.disabled()
	slices.Sort(disabled)
	if want := []string{"mod-a", "mod-b", "mod-c"}; !slices.Equal(disabled, want) {
		t.Errorf("persisted disabled list = %v, want %v", disabled, want)
	}
	owners := commandOwners(h.c.Router())
	for _, id := range []string{"mod-a", "mod-b", "mod-c"} {
		if _, ok := owners[id]; ok {
			t.Errorf("command %s still registered", id)
		}
		if slices.Contains(h.api.Names(), id) {
			t.Errorf("platform command %s still present", id)
		}
	}
	if len(changes) != 1 || changes[0].Kind != ChangeDisabled || changes[0].Module != "mod-a" {
		t.Errorf("notifications = %+v", changes)
	}
}

func TestDisable_CyclicDependentsTerminate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newStubSource(), nil)
	c := h.c

	// Cyclic dependencies never get loaded by a reload, so inject them.
	c.mu.Lock()
	for _, pair := range [][2]module.ID{{"mod-x", "mod-y"}, {"mod-y", "mod-x"}} {
		d := desc(pair[0], pair[1])
		c.known[pair[0]] = d
		c.enabled[pair[0]] = &record{id: pair[0], desc: d}
		c.order = append(c.order, pair[0])
	}
	c.mu.Unlock()

	var logs bytes.Buffer
	c.logger = log.New(&logs)

	if err := c.Disable(context.Background(), "mod-x"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if !strings.Contains(logs.String(), "dependency cycle while disabling") {
		t.Errorf("expected a cycle warning, logs:\n%s", logs.String())
	}
	if len(c.Enabled()) != 0 {
		t.Errorf("Enabled() = %v, want none", c.Enabled())
	}
	disabled := h.store.disabled()
	slices.Sort(disabled)
	if !slices.Equal(disabled, []string{"mod-x", "mod-y"}) {
		t.Errorf("persisted disabled list = %v", disabled)
	}
}

func TestDisable_DiamondIsNotACycle(t *testing.T) {
	t.Parallel()

	src := newStubSource().
		add("mod-a", desc("mod-a")).
		add("mod-b", desc("mod-b", "mod-a")).
		add("mod-c", desc("mod-c", "mod-a", "mod-b"))
	h := newHarness(t, src, nil)
	h.reload(t)

	var logs bytes.Buffer
	h.c.logger = log.New(&logs)

	if err := h.c.Disable(context.Background(), "mod-a"); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if want := []module.ID{BaselineID}; !slices.Equal(h.c.Enabled(), want) {
		t.Errorf("Enabled() = %v, want %v", h.c.Enabled(), want)
	}
	if strings.Contains(logs.String(), "dependency cycle") {
		t.Errorf("diamond reported as a cycle:\n%s", logs.String())
	}
}

func TestDisable_Preconditions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newStubSource().add("mod-a", desc("mod-a")), newMemStore("mod-a"))
	h.reload(t)
	ctx := context.Background()

	wantPrecondition(t, h.c.Disable(ctx, BaselineID), ErrProtectedModule)
	wantPrecondition(t, h.c.Disable(ctx, "mod-nope"), ErrUnknownModule)
	wantPrecondition(t, h.c.Disable(ctx, "mod-a"), ErrNotEnabled)
}

func TestEnable(t *testing.T) {
	t.Parallel()

	src := newStubSource().
		add("mod-a", desc("mod-a")).
		add("mod-b", desc("mod-b", "mod-a")).
		add("mod-c", desc("mod-c", "mod-b"))
	h := newHarness(t, src, newMemStore("mod-b"))
	h.reload(t)
	ctx := context.Background()

	var changes []Change
	h.c.Notifier().Subscribe(func(c Change) { changes = append(changes, c) })

	if err := h.c.Enable(ctx, "mod-b"); err != nil {
		t.Fatalf("Enable(mod-b) error = %v", err)
	}
	if !h.c.IsEnabled("mod-b") {
		t.Error("mod-b should be enabled")
	}
	if h.c.IsEnabled("mod-c") {
		t.Error("enabling a dependency must not load its dependents")
	}
	if len(h.store.disabled()) != 0 {
		t.Errorf("persisted disabled list = %v", h.store.disabled())
	}
	if err := h.c.Enable(ctx, "mod-c"); err != nil {
		t.Fatalf("Enable(mod-c) error = %v", err)
	}

	wantPrecondition(t, h.c.Enable(ctx, "mod-c"), ErrAlreadyEnabled)
	wantPrecondition(t, h.c.Enable(ctx, "mod-zzz"), ErrUnknownModule)
	wantPrecondition(t, h.c.Enable(ctx, "NO"), ErrInvalidModuleID)

	if len(changes) != 2 || changes[0].Kind != ChangeEnabled {
		t.Errorf("notifications = %+v", changes)
	}
}

func TestEnable_DependencyNotLoaded(t *testing.T) {
	t.Parallel()

	src := newStubSource().
		add("mod-a", desc("mod-a")).
		add("mod-b", desc("mod-b", "mod-a"))
	h := newHarness(t, src, newMemStore("mod-a", "mod-b"))
	h.reload(t)

	err := h.c.Enable(context.Background(), "mod-b")
	if !errors.Is(err, ErrDependencyNotLoaded) {
		t.Fatalf("Enable() error = %v, want ErrDependencyNotLoaded", err)
	}
	var pe *PreconditionError
	if errors.As(err, &pe) && pe.Detail != "mod-a" {
		t.Errorf("Detail = %q, want mod-a", pe.Detail)
	}
}

func TestEnable_FetchesFreshDescriptor(t *testing.T) {
	t.Parallel()

	src := newStubSource().add("mod-a", desc("mod-a"))
	h := newHarness(t, src, newMemStore("mod-a"))
	h.reload(t)

	fresh := desc("mod-a")
	fresh.Version = "2.0.0"
	src.descs["mod-a"] = fresh

	if err := h.c.Enable(context.Background(), "mod-a"); err != nil {
		t.Fatal(err)
	}
	if d, _ := h.c.Descriptor("mod-a"); d.Version != "2.0.0" {
		t.Errorf("Descriptor version = %q, want 2.0.0", d.Version)
	}
}
