// SPDX-License-Identifier: MPL-2.0

package ping

import (
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/internal/source"
	"github.com/modhost/modhost/pkg/module"
)

type host struct{}

func (host) ModuleID() module.ID  { return ID }
func (host) Logger() *log.Logger { return log.Default() }

func TestPing_Registered(t *testing.T) {
	t.Parallel()

	if !source.Default().Has(ID) {
		t.Fatalf("%s is not registered with the default catalog", ID)
	}
}

func TestPing_CountsPerLoad(t *testing.T) {
	t.Parallel()

	run := func(d *module.Descriptor) string {
		t.Helper()
		c := &platform.Collector{}
		ev := &module.Event{Kind: module.KindCommand, Name: "ping", Responder: c}
		if err := d.Commands[0].Handler(context.Background(), ev); err != nil {
			t.Fatalf("handler error = %v", err)
		}
		msg, ok := c.Last()
		if !ok {
			t.Fatal("no reply")
		}
		return msg.Description
	}

	d, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := d.Load(t.Context(), host{}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	run(d)
	if got := run(d); !strings.Contains(got, "ping #2") {
		t.Errorf("second reply = %q, want ping #2", got)
	}

	fresh, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := run(fresh); !strings.Contains(got, "ping #1") {
		t.Errorf("reply of a fresh descriptor = %q, want ping #1", got)
	}
}
