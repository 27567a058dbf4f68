// SPDX-License-Identifier: MPL-2.0

package app

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"

	"github.com/modhost/modhost/internal/source"
	"github.com/modhost/modhost/pkg/module"
)

// listSource offers raw candidate IDs, including malformed ones.
type listSource struct {
	ids   []string
	descs map[module.ID]*module.Descriptor
}

func (s *listSource) ListCandidateIDs(context.Context) ([]string, error) {
	return slices.Clone(s.ids), nil
}

func (s *listSource) Fetch(_ context.Context, id module.ID) (*module.Descriptor, error) {
	d, ok := s.descs[id]
	if !ok {
		return nil, &source.FetchError{ID: id, Kind: source.FetchNotFound}
	}
	return d, nil
}

func (s *listSource) Invalidate() {}

func descWith(deps ...module.ID) *module.Descriptor {
	return &module.Descriptor{Name: "test", Dependencies: deps}
}

func problemIDs(ps []Problem) []module.ID {
	ids := make([]module.ID, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestInspect(t *testing.T) {
	t.Parallel()

	src := &listSource{
		ids: []string{"base", "api", "web", "Bad", "default", "base", "ghost", "orphan", "loop-a", "loop-b", "needs-loop", "off", "needs-off"},
		descs: map[module.ID]*module.Descriptor{
			"base":       descWith(),
			"api":        descWith("base"),
			"web":        descWith("api", "base"),
			"orphan":     descWith("nowhere"),
			"loop-a":     descWith("loop-b"),
			"loop-b":     descWith("loop-a"),
			"needs-loop": descWith("loop-a"),
			"off":        descWith(),
			"needs-off":  descWith("off"),
		},
	}

	inv, err := Inspect(t.Context(), src, []string{"off"})
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if got, want := problemIDs(inv.Rejected), []module.ID{"Bad", "default", "base", "ghost"}; !slices.Equal(got, want) {
		t.Errorf("Rejected = %v, want %v", got, want)
	}
	if got := slices.Sorted(maps.Keys(inv.Missing)); !slices.Equal(got, []string{"orphan"}) {
		t.Errorf("Missing keys = %v, want [orphan]", got)
	}
	if len(inv.Cycles) != 1 || !slices.Equal(inv.Cycles[0], []string{"loop-a", "loop-b"}) {
		t.Errorf("Cycles = %v, want [[loop-a loop-b]]", inv.Cycles)
	}
	if got, want := problemIDs(inv.Skipped), []module.ID{"orphan", "loop-a", "loop-b", "needs-loop", "off", "needs-off"}; !slices.Equal(got, want) {
		t.Errorf("Skipped = %v, want %v", got, want)
	}

	wantLayers := [][]string{{"base"}, {"api"}, {"web"}}
	if !slices.EqualFunc(inv.Layers, wantLayers, slices.Equal[[]string]) {
		t.Errorf("Layers = %v, want %v", inv.Layers, wantLayers)
	}
	if inv.OK() {
		t.Error("OK() = true for an inventory with problems")
	}

	off := inv.Modules[slices.IndexFunc(inv.Modules, func(e Entry) bool { return e.ID == "off" })]
	if !off.Disabled {
		t.Error("off is not marked disabled")
	}
}

func TestInspect_Healthy(t *testing.T) {
	t.Parallel()

	src := &listSource{
		ids:   []string{"alpha", "beta"},
		descs: map[module.ID]*module.Descriptor{"alpha": descWith(), "beta": descWith()},
	}
	inv, err := Inspect(t.Context(), src, nil)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !inv.OK() {
		t.Errorf("OK() = false, rejected %v missing %v cycles %v", inv.Rejected, inv.Missing, inv.Cycles)
	}
	if len(inv.Layers) != 1 || !slices.Equal(inv.Layers[0], []string{"alpha", "beta"}) {
		t.Errorf("Layers = %v, want [[alpha beta]]", inv.Layers)
	}
}

func TestInspect_Canceled(t *testing.T) {
	t.Parallel()

	src := &listSource{ids: []string{"alpha"}, descs: map[module.ID]*module.Descriptor{"alpha": descWith()}}
	_, err := Inspect(canceledContext(t), src, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Inspect() error = %v, want context.Canceled", err)
	}
}
