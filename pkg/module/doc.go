// SPDX-License-Identifier: MPL-2.0

// Package module is the public SDK for modhost modules.
//
// A module is described by a Descriptor: its identity, the IDs of the modules
// it depends on, the interactions it handles (commands, buttons, modals and
// select menus) and optional load/unload hooks. Descriptors are produced by a
// descriptor source (a compiled catalog or a manifest directory) and handed
// to the lifecycle controller, which registers their bindings with the
// interaction router.
package module
