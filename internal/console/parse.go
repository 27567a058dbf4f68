// SPDX-License-Identifier: MPL-2.0

package console

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/modhost/modhost/pkg/module"
)

const (
	builtinNone builtin = iota
	builtinHelp
	builtinCommands
	builtinExit
)

var (
	// ErrEmptyLine is returned for blank input.
	ErrEmptyLine = errors.New("empty line")
	// ErrSyntax wraps every parse failure.
	ErrSyntax = errors.New("syntax error")
)

type builtin int

// noEnv keeps shell expansion from reading the server's environment.
func noEnv(string) string { return "" }

// parseLine turns one input line into an event, or names a builtin.
func parseLine(line string) (*module.Event, builtin, error) {
	fields, err := shell.Fields(line, noEnv)
	if err != nil {
		return nil, builtinNone, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	if len(fields) == 0 {
		return nil, builtinNone, ErrEmptyLine
	}

	head, rest := fields[0], fields[1:]
	switch {
	case strings.HasPrefix(head, "/"):
		ev, err := commandEvent(module.KindCommand, head, rest)
		return ev, builtinNone, err
	case head == "complete":
		if len(rest) == 0 || !strings.HasPrefix(rest[0], "/") {
			return nil, builtinNone, fmt.Errorf("%w: complete needs a /command", ErrSyntax)
		}
		ev, err := commandEvent(module.KindAutocomplete, rest[0], rest[1:])
		if err != nil {
			return nil, builtinNone, err
		}
		if len(ev.Options) != 1 {
			return nil, builtinNone, fmt.Errorf("%w: complete needs exactly one option=prefix", ErrSyntax)
		}
		for name := range ev.Options {
			ev.Focused = name
		}
		return ev, builtinNone, nil
	case head == "button", head == "modal", head == "menu":
		ev, err := customEvent(head, rest)
		return ev, builtinNone, err
	case head == "help":
		return nil, builtinHelp, nil
	case head == "commands":
		return nil, builtinCommands, nil
	case head == "exit", head == "quit":
		return nil, builtinExit, nil
	default:
		return nil, builtinNone, fmt.Errorf("%w: unknown input %q, try help", ErrSyntax, head)
	}
}

func commandEvent(kind module.Kind, head string, rest []string) (*module.Event, error) {
	name := strings.TrimPrefix(head, "/")
	if name == "" {
		return nil, fmt.Errorf("%w: missing command name", ErrSyntax)
	}
	ev := &module.Event{Kind: kind, Name: name}

	var positional []string
	for _, f := range rest {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			if ev.Options != nil {
				return nil, fmt.Errorf("%w: %q follows an option", ErrSyntax, f)
			}
			positional = append(positional, f)
			continue
		}
		if k == "" {
			return nil, fmt.Errorf("%w: option without a name in %q", ErrSyntax, f)
		}
		if ev.Options == nil {
			ev.Options = make(map[string]string)
		}
		ev.Options[k] = v
	}

	switch len(positional) {
	case 0:
	case 1:
		ev.Subcommand = positional[0]
	case 2:
		ev.Group, ev.Subcommand = positional[0], positional[1]
	default:
		return nil, fmt.Errorf("%w: too many subcommands in /%s", ErrSyntax, name)
	}
	return ev, nil
}

func customEvent(head string, rest []string) (*module.Event, error) {
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: %s needs a custom id", ErrSyntax, head)
	}
	ev := &module.Event{CustomID: rest[0]}
	args := rest[1:]

	switch head {
	case "button":
		ev.Kind = module.KindButton
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: button takes no arguments", ErrSyntax)
		}
	case "menu":
		ev.Kind = module.KindSelectMenu
		ev.Values = args
	case "modal":
		ev.Kind = module.KindModal
		ev.Options = make(map[string]string, len(args))
		for _, a := range args {
			k, v, ok := strings.Cut(a, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("%w: modal field %q is not field=value", ErrSyntax, a)
			}
			ev.Options[k] = v
		}
	}
	return ev, nil
}
