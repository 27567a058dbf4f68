// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"slices"
	"testing"
)

func TestNotifier(t *testing.T) {
	t.Parallel()

	n := NewNotifier()
	var got []string
	unsubA := n.Subscribe(func(c Change) { got = append(got, "a:"+string(c.Kind)) })
	n.Subscribe(func(c Change) { got = append(got, "b:"+string(c.Kind)) })

	n.Emit(Change{Kind: ChangeReloaded})
	unsubA()
	unsubA()
	n.Emit(Change{Kind: ChangeEnabled})

	want := []string{"a:reloaded", "b:reloaded", "b:enabled"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
