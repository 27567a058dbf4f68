// SPDX-License-Identifier: MPL-2.0

// Package interaction routes inbound platform events to the handlers that
// modules register.
//
// The Router owns four independent registries (commands, buttons, modals and
// select menus). Commands are additionally reconciled with the platform's
// command-registration API. Dispatch contains every handler failure: errors
// and panics become error replies to the originating event and never escape
// to the caller.
package interaction
