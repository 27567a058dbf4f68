// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
)

func TestFail_ClassDefaults(t *testing.T) {
	t.Parallel()

	for id := range classes {
		t.Run(fmt.Sprint(id), func(t *testing.T) {
			t.Parallel()
			e := Fail(id)
			if e.Issue != id {
				t.Errorf("Issue = %d, want %d", e.Issue, id)
			}
			if e.Operation == "" {
				t.Error("class has no operation")
			}
			if Get(id) == nil {
				t.Error("class has no guidance issue")
			}
		})
	}
}

func TestFail_DoesNotShareClassSuggestions(t *testing.T) {
	t.Parallel()

	a := Fail(ModuleNotFoundId).Suggest("first")
	b := Fail(ModuleNotFoundId)
	if len(b.Suggestions) != 1 || b.Suggestions[0] != classes[ModuleNotFoundId].suggestions[0] {
		t.Errorf("class suggestions changed by another error: %v", b.Suggestions)
	}
	if a.Suggestions[0] != "first" {
		t.Errorf("Suggestions = %v, want specific hint first", a.Suggestions)
	}
}

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("file not found")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "class operation only",
			err:  Fail(ManifestParseErrorId).Because(nil),
			want: "failed to parse module manifest",
		},
		{
			name: "with resource and cause",
			err:  Fail(ManifestParseErrorId).On("./modules/ping/module.cue").Because(cause),
			want: "failed to parse module manifest: ./modules/ping/module.cue: file not found",
		},
		{
			name: "overridden operation",
			err:  Fail(ServerStartFailedId).During("start http server").On("127.0.0.1:8080").Because(cause),
			want: "failed to start http server: 127.0.0.1:8080: file not found",
		},
		{
			name: "unknown class",
			err:  Fail(0).Because(cause),
			want: "failed to complete operation: file not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("disk full")
	err := Fail(ModuleStateInvalidId).During("save module state").Because(fmt.Errorf("write: %w", sentinel))
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if got := Classify(fmt.Errorf("cli: %w", err)); got != ModuleStateInvalidId {
		t.Errorf("Classify() = %d, want ModuleStateInvalidId", got)
	}
	if got := Classify(sentinel); got != 0 {
		t.Errorf("Classify(plain) = %d, want 0", got)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	inner := errors.New("permission denied")
	e := Fail(JournalUnavailableId).
		On("/var/lib/modhost/journal.db").
		Suggest("Set journal.enabled to false to run without history")
	_ = e.Because(fmt.Errorf("open database: %w", inner))

	short := e.Format(false)
	for _, want := range []string{
		"failed to open lifecycle journal: /var/lib/modhost/journal.db: open database: permission denied",
		"\n\n  • Set journal.enabled to false to run without history",
	} {
		if !strings.Contains(short, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, short)
		}
	}
	if strings.Contains(short, "Error chain") {
		t.Errorf("Format(false) should not include the chain:\n%s", short)
	}

	long := e.Format(true)
	for _, want := range []string{"Error chain:", "1. open database: permission denied", "2. permission denied"} {
		if !strings.Contains(long, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, long)
		}
	}
}

func TestActionableError_HasSuggestions(t *testing.T) {
	t.Parallel()

	if !Fail(ModuleNotFoundId).HasSuggestions() {
		t.Error("class suggestions should count")
	}
	if Fail(ReloadFailedId).HasSuggestions() {
		t.Error("ReloadFailedId carries no suggestions")
	}
	if got := Fail(ReloadFailedId).Suggest("a", "b").Suggestions; !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Suggestions = %v", got)
	}
}

func TestActionableError_Guidance(t *testing.T) {
	stubRender(t)

	out, err := Fail(ConfigLoadFailedId).Guidance("")
	if err != nil {
		t.Fatalf("Guidance() error = %v", err)
	}
	if !strings.Contains(out, "modhost config init") {
		t.Errorf("Guidance() = %q", out)
	}

	if out, _ := Fail(0).Guidance(""); out != "" {
		t.Errorf("Guidance() without class = %q, want empty", out)
	}
}
