// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modhost/modhost/pkg/module"
)

var (
	// ErrUnknownModule means the ID was not found by the last discovery.
	ErrUnknownModule = errors.New("unknown module")
	// ErrAlreadyEnabled means the module is already loaded.
	ErrAlreadyEnabled = errors.New("module is already enabled")
	// ErrNotEnabled means the module is not loaded.
	ErrNotEnabled = errors.New("module is not enabled")
	// ErrModuleDisabled means the module is on the disabled list.
	ErrModuleDisabled = errors.New("module is disabled")
	// ErrProtectedModule means the operation is not allowed on the baseline module.
	ErrProtectedModule = errors.New("module is protected")
	// ErrDependencyNotLoaded means a declared dependency is not loaded.
	ErrDependencyNotLoaded = errors.New("dependency is not loaded")
	// ErrInvalidModuleID means the ID does not match the module ID format.
	ErrInvalidModuleID = errors.New("invalid module id")
	// ErrReloadInProgress is returned when a reload is requested while
	// another one is running.
	ErrReloadInProgress = errors.New("reload already in progress")
	// ErrUnrecoverable is wrapped when a reload pass stalls with modules
	// left that can never be loaded.
	ErrUnrecoverable = errors.New("unrecoverable modules left in load queue")
)

type (
	// PreconditionError reports a lifecycle operation refused because of
	// the module's current state. Reason is one of the Err* sentinels.
	PreconditionError struct {
		Op     string
		ID     module.ID
		Reason error
		// Detail adds context such as the missing dependency.
		Detail string
	}

	// LoadError reports a module that failed to load.
	LoadError struct {
		ID    module.ID
		Cause error
	}

	// UnloadError reports a failing unload hook. The module is unloaded
	// regardless.
	UnloadError struct {
		ID    module.ID
		Cause error
	}

	// ReloadError aggregates the failures of a completed reload.
	ReloadError struct {
		Causes []error
	}
)

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("cannot %s module %s: %v", e.Op, e.ID, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the reason sentinel.
func (e *PreconditionError) Unwrap() error { return e.Reason }

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load module %s: %v", e.ID, e.Cause)
}

// Unwrap returns the cause.
func (e *LoadError) Unwrap() error { return e.Cause }

// Error implements the error interface.
func (e *UnloadError) Error() string {
	return fmt.Sprintf("failed to unload module %s: %v", e.ID, e.Cause)
}

// Unwrap returns the cause.
func (e *UnloadError) Unwrap() error { return e.Cause }

// Error implements the error interface.
func (e *ReloadError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "reload finished with %d failure(s)", len(e.Causes))
	for _, c := range e.Causes {
		sb.WriteString("\n  - ")
		sb.WriteString(c.Error())
	}
	return sb.String()
}

// Unwrap exposes every cause to errors.Is and errors.As.
func (e *ReloadError) Unwrap() []error { return e.Causes }

func precondition(op string, id module.ID, reason error) *PreconditionError {
	return &PreconditionError{Op: op, ID: id, Reason: reason}
}
