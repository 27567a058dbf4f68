// SPDX-License-Identifier: MPL-2.0

// Package console is the SSH platform adapter. Each input line is parsed
// into an interaction event, dispatched through the router and the replies
// are rendered back to the terminal.
//
// Line syntax:
//
//	/<command> [group] [subcommand] [option=value ...]
//	button <custom-id>
//	modal <custom-id> [field=value ...]
//	menu <custom-id> [value ...]
//	complete /<command> [group] [subcommand] <option>=<prefix>
//	commands | help | exit
//
// Lines are split with shell quoting rules, so values may be quoted.
package console
