// SPDX-License-Identifier: MPL-2.0

package module

import "context"

const (
	OptionString          OptionType = "string"
	OptionInteger         OptionType = "integer"
	OptionBoolean         OptionType = "boolean"
	OptionSubcommand      OptionType = "subcommand"
	OptionSubcommandGroup OptionType = "subcommand_group"
)

type (
	// OptionType is the value type of a command option.
	OptionType string

	// OptionDef declares one command option or subcommand.
	OptionDef struct {
		Name         string      `json:"name"`
		Description  string      `json:"description,omitempty"`
		Type         OptionType  `json:"type"`
		Required     bool        `json:"required,omitempty"`
		Autocomplete bool        `json:"autocomplete,omitempty"`
		Choices      []Choice    `json:"choices,omitempty"`
		Options      []OptionDef `json:"options,omitempty"`
	}

	// CommandDef is the raw command definition registered with the platform.
	CommandDef struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Options     []OptionDef `json:"options,omitempty"`
	}

	// RemoteCommand is a command as known by the platform, with the ID the
	// platform assigned to it.
	RemoteCommand struct {
		ID string `json:"id"`
		CommandDef
	}

	// CommandAPI is the platform's command-registration API. Every call may
	// fail independently.
	CommandAPI interface {
		List(ctx context.Context) ([]RemoteCommand, error)
		Create(ctx context.Context, def CommandDef) (RemoteCommand, error)
		Update(ctx context.Context, id string, def CommandDef) (RemoteCommand, error)
		Delete(ctx context.Context, id string) error
	}
)
