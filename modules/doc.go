// SPDX-License-Identifier: MPL-2.0

// Package modules holds the modules compiled into modhost. Each
// subpackage registers itself with the default source catalog from its
// init function; importing it for side effects is enough to make the
// module discoverable.
package modules
