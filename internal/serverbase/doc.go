// SPDX-License-Identifier: MPL-2.0

// Package serverbase runs a listener-backed server through its lifecycle:
// listening, readiness signalling, goroutine tracking and graceful shutdown.
//
// The HTTP webhook and the SSH console embed a Base and only supply the
// functions that serve a listener and shut the server down.
package serverbase
