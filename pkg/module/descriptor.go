// SPDX-License-Identifier: MPL-2.0

package module

import (
	"context"
	"errors"
	"slices"

	"github.com/charmbracelet/log"
)

// ErrMissingName is returned by Descriptor.Validate for a descriptor without a name.
var ErrMissingName = errors.New("module descriptor has no name")

type (
	// Hook is a load or unload hook. It may block; the context is the one the
	// lifecycle operation was started with.
	Hook func(ctx context.Context, host Host) error

	// Host is what a hook can see of the process hosting the module.
	Host interface {
		ModuleID() ID
		Logger() *log.Logger
	}

	// Command binds a command definition to its handlers. Label is a human
	// readable name used in listings and logs; Autocomplete is optional.
	Command struct {
		Label        string
		Definition   CommandDef
		Handler      Handler
		Autocomplete Handler
	}

	// Descriptor is what a module declares about itself.
	Descriptor struct {
		Name         string
		Version      string
		Description  string
		Authors      []string
		Dependencies []ID

		Commands []Command
		// Buttons, Modals and Menus map custom IDs to handlers.
		Buttons map[string]Handler
		Modals  map[string]Handler
		Menus   map[string]Handler

		Load   Hook
		Unload Hook
	}
)

// Validate checks the descriptor invariants.
func (d *Descriptor) Validate() error {
	if d == nil || d.Name == "" {
		return ErrMissingName
	}
	return nil
}

// DependsOn reports whether id is a declared dependency.
func (d *Descriptor) DependsOn(id ID) bool {
	return slices.Contains(d.Dependencies, id)
}

// CommandNames returns the names of the declared commands in declaration order.
func (d *Descriptor) CommandNames() []string {
	names := make([]string, 0, len(d.Commands))
	for _, c := range d.Commands {
		names = append(names, c.Definition.Name)
	}
	return names
}
