// SPDX-License-Identifier: MPL-2.0

// Package platform provides the in-process stand-in for a chat platform:
// an in-memory command registry implementing module.CommandAPI and a reply
// collector implementing module.Responder. The HTTP and SSH adapters use
// them to expose the router without a real platform behind it.
package platform
