// SPDX-License-Identifier: MPL-2.0

// Package app wires the module host together for the serve command: the
// module sources, the lifecycle controller with its journal, the HTTP and
// SSH adapters and the manifest watcher. It also offers an offline
// inspection of the module directory used by the CLI.
package app
