// SPDX-License-Identifier: MPL-2.0

// Package config handles modhost configuration using Viper with CUE as the
// file format.
//
// Process configuration is read from config.cue in the config directory
// ($XDG_CONFIG_HOME/modhost on Linux, ~/Library/Application Support/modhost
// on macOS, %APPDATA%\modhost on Windows) and validated against the embedded
// config_schema.cue. MODHOST_* environment variables override file values.
//
// Module state (the disabled list, reply theme and reload policy) lives in a
// separate modules.cue file managed by ModuleStore, because it is rewritten
// at runtime whenever modules are enabled or disabled.
package config
