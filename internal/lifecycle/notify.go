// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"slices"
	"sync"
	"time"

	"github.com/modhost/modhost/pkg/module"
)

const (
	// ChangeReloaded follows a completed reload.
	ChangeReloaded ChangeKind = "reloaded"
	// ChangeEnabled follows a successful Enable.
	ChangeEnabled ChangeKind = "enabled"
	// ChangeDisabled follows a Disable, including its cascade.
	ChangeDisabled ChangeKind = "disabled"
)

type (
	// ChangeKind names what changed the enabled set.
	ChangeKind string

	// Change describes a modification of the enabled module set.
	Change struct {
		Kind ChangeKind
		// Module is the target of Enable or Disable; empty for reloads.
		Module  module.ID
		Enabled []module.ID
		At      time.Time
	}

	// Listener receives Change notifications. Listeners run synchronously
	// on the goroutine that made the change and must not call back into the
	// controller.
	Listener func(Change)

	// Notifier fans Change notifications out to subscribers. Subscriptions
	// survive reloads.
	Notifier struct {
		mu        sync.RWMutex
		next      int
		listeners map[int]Listener
	}
)

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn Listener) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	n.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.listeners, id)
		})
	}
}

// Emit calls every listener with c in subscription order.
func (n *Notifier) Emit(c Change) {
	n.mu.RLock()
	ids := make([]int, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	fns := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, n.listeners[id])
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
