// SPDX-License-Identifier: MPL-2.0

// Package lifecycle discovers modules, orders them by their declared
// dependencies and loads, unloads, reloads, enables and disables them at
// runtime.
//
// The Controller owns the known and enabled module sets and drives the
// interaction router: loading a module registers its commands, buttons,
// modals and select menus; unloading or disabling it removes them. A reload
// is a full cycle of discovery, validation and ordered loading that never
// aborts because of a single module.
//
// Lifecycle operations are serialized. Load and unload hooks run while the
// controller holds its operation lock and must not call back into the
// controller.
package lifecycle
