// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"testing"
)

func TestIDValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id    ID
		valid bool
	}{
		{"abc", true},
		{"my-module", true},
		{"mod_2", true},
		{"default", true},
		{"ab", false},
		{"", false},
		{"Upper", false},
		{"has space", false},
		{"dots.not.allowed", false},
		{"ümlaut", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			t.Parallel()
			err := tt.id.Validate()
			if tt.valid && err != nil {
				t.Fatalf("Validate(%q) = %v, want nil", tt.id, err)
			}
			if !tt.valid {
				if !errors.Is(err, ErrInvalidID) {
					t.Fatalf("Validate(%q) = %v, want ErrInvalidID", tt.id, err)
				}
				var idErr *InvalidIDError
				if !errors.As(err, &idErr) || idErr.Value != tt.id {
					t.Errorf("expected *InvalidIDError carrying %q, got %v", tt.id, err)
				}
			}
		})
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := ParseID("ping")
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if id != "ping" {
		t.Errorf("id = %q, want ping", id)
	}
	if _, err := ParseID("no"); err == nil {
		t.Error("expected error for short id")
	}
}

func TestDescriptorValidate(t *testing.T) {
	t.Parallel()

	var nilDesc *Descriptor
	if !errors.Is(nilDesc.Validate(), ErrMissingName) {
		t.Error("nil descriptor should be invalid")
	}
	if !errors.Is((&Descriptor{}).Validate(), ErrMissingName) {
		t.Error("descriptor without name should be invalid")
	}
	d := &Descriptor{Name: "Ping", Dependencies: []ID{"core"}}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if !d.DependsOn("core") || d.DependsOn("other") {
		t.Error("DependsOn mismatch")
	}
}

func TestEventKeyAndKind(t *testing.T) {
	t.Parallel()

	cmd := &Event{Kind: KindCommand, Name: "ping", CustomID: "ignored"}
	if cmd.Key() != "ping" {
		t.Errorf("command key = %q", cmd.Key())
	}
	btn := &Event{Kind: KindButton, Name: "ignored", CustomID: "confirm"}
	if btn.Key() != "confirm" {
		t.Errorf("button key = %q", btn.Key())
	}
	for k := KindCommand; k <= KindSelectMenu; k++ {
		if ParseKind(k.String()) != k {
			t.Errorf("ParseKind(%q) did not round trip", k.String())
		}
	}
	if ParseKind("bogus") != KindUnknown {
		t.Error("unrecognised kind should map to KindUnknown")
	}
}
