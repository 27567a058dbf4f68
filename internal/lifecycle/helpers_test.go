// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/internal/source"
	"github.com/modhost/modhost/internal/testutil"
	"github.com/modhost/modhost/pkg/module"

	"github.com/charmbracelet/log"
)

type memStore struct {
	mu       sync.Mutex
	settings *config.ModuleSettings
	saves    int
}

func newMemStore(disabled ...string) *memStore {
	s := config.DefaultModuleSettings()
	for _, id := range disabled {
		s.AddDisabled(id)
	}
	return &memStore{settings: s}
}

func (m *memStore) Load(context.Context) (*config.ModuleSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Clone(), nil
}

func (m *memStore) Save(_ context.Context, s *config.ModuleSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.settings = s.Clone()
	return nil
}

func (m *memStore) disabled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.settings.Disabled)
}

// stubSource lists raw IDs so that malformed and duplicate candidates can
// be exercised.
type stubSource struct {
	mu          sync.Mutex
	ids         []string
	descs       map[module.ID]*module.Descriptor
	invalidated int
}

func newStubSource() *stubSource {
	return &stubSource{descs: make(map[module.ID]*module.Descriptor)}
}

func (s *stubSource) add(id module.ID, d *module.Descriptor) *stubSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, string(id))
	s.descs[id] = d
	return s
}

func (s *stubSource) drop(id module.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = slices.DeleteFunc(s.ids, func(o string) bool { return o == string(id) })
	delete(s.descs, id)
}

func (s *stubSource) ListCandidateIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids), nil
}

func (s *stubSource) Fetch(_ context.Context, id module.ID) (*module.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.descs[id]
	if !ok {
		return nil, &source.FetchError{ID: id, Kind: source.FetchNotFound}
	}
	return d, nil
}

func (s *stubSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
}

type memRecorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *memRecorder) Record(_ context.Context, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
	return nil
}

func (r *memRecorder) actions(id module.ID) []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Action
	for _, t := range r.transitions {
		if t.Module == id {
			out = append(out, t.Action)
		}
	}
	return out
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func noop(context.Context, *module.Event) error { return nil }

// desc declares a module with a single command named after the module.
func desc(id module.ID, deps ...module.ID) *module.Descriptor {
	return &module.Descriptor{
		Name:         "Module " + string(id),
		Version:      "1.0.0",
		Authors:      []string{"tests"},
		Dependencies: deps,
		Commands: []module.Command{{
			Label:      string(id),
			Definition: module.CommandDef{Name: string(id), Description: "test command"},
			Handler:    noop,
		}},
		Buttons: map[string]module.Handler{string(id) + ":btn": noop},
	}
}

type harness struct {
	c     *Controller
	src   *stubSource
	store *memStore
	api   *platform.Memory
	rec   *memRecorder
	clock *testutil.FakeClock
}

func newHarness(t *testing.T, src *stubSource, store *memStore) *harness {
	t.Helper()
	if store == nil {
		store = newMemStore()
	}
	api := platform.NewMemory()
	rec := &memRecorder{}
	clock := testutil.NewFakeClock(time.Time{})
	c, err := New(Options{
		Source:   src,
		Router:   interaction.New(api, quietLogger()),
		Store:    store,
		Logger:   quietLogger(),
		Recorder: rec,
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &harness{c: c, src: src, store: store, api: api, rec: rec, clock: clock}
}

func (h *harness) reload(t *testing.T) *Report {
	t.Helper()
	rep, err := h.c.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return rep
}

func skipIDs(skips []Skip) []module.ID {
	out := make([]module.ID, 0, len(skips))
	for _, s := range skips {
		out = append(out, s.ID)
	}
	return out
}

func commandOwners(r *interaction.Router) map[string]module.ID {
	out := make(map[string]module.ID)
	for _, ci := range r.Commands() {
		out[ci.Name] = ci.Owner
	}
	return out
}

func wantPrecondition(t *testing.T, err error, reason error) {
	t.Helper()
	if !errors.Is(err, reason) {
		t.Fatalf("error = %v, want %v", err, reason)
	}
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PreconditionError, got %T", err)
	}
}
