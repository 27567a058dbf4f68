// SPDX-License-Identifier: MPL-2.0

package serverbase

const (
	// StateCreated means Start has not been called.
	StateCreated State = iota
	// StateStarting means the listener is being opened.
	StateStarting
	// StateRunning means the server accepts connections.
	StateRunning
	// StateStopping means Stop is draining the server.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal; LastError holds the cause.
	StateFailed
)

// State is the lifecycle state of a server.
type State int32

var stateNames = [...]string{"created", "starting", "running", "stopping", "stopped", "failed"}

// String returns the lowercase state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
