// SPDX-License-Identifier: MPL-2.0

package module

import (
	"context"
	"time"
)

const (
	// KindUnknown marks an event the router cannot classify.
	KindUnknown Kind = iota
	// KindCommand is a slash-style command invocation.
	KindCommand
	// KindAutocomplete asks the owning command for option suggestions.
	KindAutocomplete
	// KindButton is a button press identified by its custom ID.
	KindButton
	// KindModal is a submitted form identified by its custom ID.
	KindModal
	// KindSelectMenu is a select-menu choice identified by its custom ID.
	KindSelectMenu
)

type (
	// Kind classifies an inbound interaction.
	Kind int

	// Handler processes one interaction. Returning an error hands it to the
	// router, which turns it into an error reply.
	Handler func(ctx context.Context, ev *Event) error

	// Event is an inbound interaction delivered by a platform adapter.
	Event struct {
		// ID is the adapter-assigned event identifier.
		ID string
		// Kind classifies the event.
		Kind Kind
		// Name is the command name for command and autocomplete events.
		Name string
		// Group and Subcommand select a subcommand, when the command has any.
		Group      string
		Subcommand string
		// CustomID identifies the button, modal or select menu.
		CustomID string
		// Options carries command options, or modal field values.
		Options map[string]string
		// Values are the selected select-menu values.
		Values []string
		// Focused names the option being completed in an autocomplete event.
		Focused string
		// User identifies who triggered the event.
		User string
		// Responder delivers replies back to the platform.
		Responder Responder
	}

	// Responder delivers replies for a single event.
	Responder interface {
		// Reply sends the first reply to the event.
		Reply(ctx context.Context, msg Message) error
		// EditReply replaces the previously sent reply.
		EditReply(ctx context.Context, msg Message) error
		// Replied reports whether Reply has already succeeded.
		Replied() bool
		// Suggest answers an autocomplete event.
		Suggest(ctx context.Context, choices []Choice) error
	}

	// Choice is a name/value pair offered by autocomplete or option choices.
	Choice struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}

	// Field is a titled section of a Message.
	Field struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline,omitempty"`
	}

	// Message is a reply rendered by the platform adapter. Description is
	// markdown; Color is a 24-bit RGB value.
	Message struct {
		Content     string        `json:"content,omitempty"`
		Title       string        `json:"title,omitempty"`
		Description string        `json:"description,omitempty"`
		Fields      []Field       `json:"fields,omitempty"`
		Footer      string        `json:"footer,omitempty"`
		Color       int           `json:"color,omitempty"`
		Timestamp   time.Time     `json:"timestamp,omitzero"`
		Ephemeral   bool          `json:"ephemeral,omitempty"`
		DeleteAfter time.Duration `json:"delete_after,omitempty"`
	}
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindAutocomplete:
		return "autocomplete"
	case KindButton:
		return "button"
	case KindModal:
		return "modal"
	case KindSelectMenu:
		return "select_menu"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String. Unrecognised names map to
// KindUnknown.
func ParseKind(s string) Kind {
	for k := KindCommand; k <= KindSelectMenu; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindUnknown
}

// Key returns the registry key for the event: the command name for command
// and autocomplete events, the custom ID otherwise.
func (e *Event) Key() string {
	if e.Kind == KindCommand || e.Kind == KindAutocomplete {
		return e.Name
	}
	return e.CustomID
}

// Option returns the named option value.
func (e *Event) Option(name string) (string, bool) {
	v, ok := e.Options[name]
	return v, ok
}

// Reply sends msg as the first reply, or edits the existing reply when the
// event has already been answered.
func (e *Event) Reply(ctx context.Context, msg Message) error {
	if e.Responder.Replied() {
		return e.Responder.EditReply(ctx, msg)
	}
	return e.Responder.Reply(ctx, msg)
}
