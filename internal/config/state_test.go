// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestModuleStore_LoadCreatesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", ModulesStateFileName)
	store := NewModuleStore(path)

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := DefaultModuleSettings()
	if got.Colours != want.Colours || got.ResponseDeletionTime != want.ResponseDeletionTime || got.Reload != want.Reload {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if got.Disabled == nil || len(got.Disabled) != 0 {
		t.Errorf("Disabled = %#v, want empty non-nil", got.Disabled)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults were not written back: %v", err)
	}
}

func TestModuleStore_SaveLoad(t *testing.T) {
	t.Parallel()

	store := NewModuleStore(filepath.Join(t.TempDir(), ModulesStateFileName))
	ctx := context.Background()

	settings := DefaultModuleSettings()
	settings.AddDisabled("weather")
	settings.AddDisabled("quotes")
	settings.Colours.Error = 0xFF0000
	settings.ResponseDeletionTime = 0
	settings.Reload.ClearOldCommands = true

	if err := store.Save(ctx, settings); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !slices.Equal(got.Disabled, []string{"weather", "quotes"}) {
		t.Errorf("Disabled = %v", got.Disabled)
	}
	if got.Colours.Error != 0xFF0000 {
		t.Errorf("Colours.Error = %d", got.Colours.Error)
	}
	if got.ResponseDeletion() != 0 {
		t.Errorf("ResponseDeletion() = %s", got.ResponseDeletion())
	}
	if !got.Reload.ClearOldCommands || !got.Reload.LoadBaseline {
		t.Errorf("Reload = %+v", got.Reload)
	}
}

func TestModuleStore_PartialFileGetsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ModulesStateFileName)
	if err := os.WriteFile(path, []byte(`disabled: ["weather"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewModuleStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.IsDisabled("weather") {
		t.Error("expected weather to be disabled")
	}
	if got.Colours.Success != 6549575 || got.ResponseDeletion() != 15*time.Second {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestModuleStore_InvalidFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "disabled: ["},
		{"colour out of range", "colours: error: 16777216"},
		{"negative deletion time", "response_deletion_time: -1"},
		{"wrong type", `reload: load_baseline: "yes"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), ModulesStateFileName)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewModuleStore(path).Load(context.Background()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestModuleSettings_Disabled(t *testing.T) {
	t.Parallel()

	s := DefaultModuleSettings()
	if !s.AddDisabled("alpha") {
		t.Error("first AddDisabled should change the list")
	}
	if s.AddDisabled("alpha") {
		t.Error("duplicate AddDisabled should not change the list")
	}
	s.AddDisabled("beta")

	c := s.Clone()
	if !s.RemoveDisabled("alpha") {
		t.Error("RemoveDisabled should report a change")
	}
	if s.RemoveDisabled("alpha") {
		t.Error("second RemoveDisabled should not report a change")
	}
	if !slices.Equal(s.Disabled, []string{"beta"}) {
		t.Errorf("Disabled = %v", s.Disabled)
	}
	if !slices.Equal(c.Disabled, []string{"alpha", "beta"}) {
		t.Errorf("clone shares storage: %v", c.Disabled)
	}
}
