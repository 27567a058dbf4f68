// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{FormatText, func(t *testing.T, out string) {
			if !strings.Contains(out, "module loaded") || !strings.Contains(out, "module=ping") {
				t.Errorf("text output = %q", out)
			}
		}},
		{FormatLogfmt, func(t *testing.T, out string) {
			if !strings.Contains(out, `msg="module loaded"`) || !strings.Contains(out, "module=ping") {
				t.Errorf("logfmt output = %q", out)
			}
		}},
		{FormatJSON, func(t *testing.T, out string) {
			var m map[string]any
			if err := json.Unmarshal([]byte(out), &m); err != nil {
				t.Fatalf("json output %q: %v", out, err)
			}
			if m["msg"] != "module loaded" || m["module"] != "ping" {
				t.Errorf("json output = %v", m)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			l, err := New(Options{Format: tt.format, Output: &buf})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			l.Info("module loaded", "module", "ping")
			tt.check(t, strings.TrimSpace(buf.String()))
		})
	}
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected an error for an invalid level")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected an error for an invalid format")
	}
}
