// SPDX-License-Identifier: MPL-2.0

package interaction

import (
	"errors"
	"fmt"

	"github.com/modhost/modhost/pkg/module"
)

const (
	// KindInteraction is a generic interaction failure.
	KindInteraction ErrorKind = iota
	// KindCommand is a command handler failure.
	KindCommand
	// KindButton is a button handler failure.
	KindButton
	// KindModal is a modal handler failure.
	KindModal
)

const defaultErrorMessage = "An unknown exception occurred"

var (
	// ErrUnknownCommand is wrapped by the error returned for commands that
	// have no registered handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownSubCommand is wrapped by UnknownSubCommand errors.
	ErrUnknownSubCommand = errors.New("unknown subcommand")
	// ErrModuleUnavailable is wrapped by the error returned for events whose
	// module is suspended.
	ErrModuleUnavailable = errors.New("module unavailable")
)

type (
	// ErrorKind selects the user-facing prefix of an Error.
	ErrorKind int

	// Error is a recoverable, user-reportable interaction failure. Handlers
	// return it to control what the user sees: the message alone, or the
	// message followed by the diagnostic detail of Cause when ShowDiagnostic
	// is set.
	Error struct {
		Kind           ErrorKind
		Message        string
		ShowDiagnostic bool
		Cause          error
	}

	// PanicError is produced when a handler panics.
	PanicError struct {
		Value any
		Stack []byte
	}
)

func (k ErrorKind) prefix() string {
	switch k {
	case KindCommand:
		return "Failed to execute command: "
	case KindButton:
		return "Failed to process button: "
	case KindModal:
		return "Failed to process modal: "
	default:
		return "Failed to process interaction: "
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultErrorMessage
	}
	return e.Kind.prefix() + msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Wrap attaches cause without exposing it to the user.
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDiagnostic attaches cause and asks for it to be shown to the user.
func (e *Error) WithDiagnostic(cause error) *Error {
	e.Cause = cause
	e.ShowDiagnostic = true
	return e
}

// NewError returns a generic interaction error.
func NewError(msg string) *Error {
	return &Error{Kind: KindInteraction, Message: msg}
}

// CommandError returns an error reported as a failed command.
func CommandError(msg string) *Error {
	return &Error{Kind: KindCommand, Message: msg}
}

// ButtonError returns an error reported as a failed button.
func ButtonError(msg string) *Error {
	return &Error{Kind: KindButton, Message: msg}
}

// ModalError returns an error reported as a failed modal.
func ModalError(msg string) *Error {
	return &Error{Kind: KindModal, Message: msg}
}

// UnknownCommand is returned by the router for a command nobody owns.
func UnknownCommand() *Error {
	return &Error{Kind: KindCommand, Message: "Command does not exist on bot", Cause: ErrUnknownCommand}
}

// Unavailable is returned by the router for an event owned by a suspended
// module.
func Unavailable(kind ErrorKind, owner module.ID) *Error {
	return &Error{
		Kind:    kind,
		Message: "Module is reloading, try again shortly",
		Cause:   fmt.Errorf("%w: %s", ErrModuleUnavailable, owner),
	}
}

// UnknownSubCommand is returned by command handlers that do not recognise
// the requested subcommand. group may be empty.
func UnknownSubCommand(group, name string) *Error {
	msg := fmt.Sprintf("Sub command %s does not exist.", name)
	if group != "" {
		msg = fmt.Sprintf("Sub command %s %s does not exist.", group, name)
	}
	return &Error{Kind: KindCommand, Message: msg, Cause: ErrUnknownSubCommand}
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}
