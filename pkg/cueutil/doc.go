// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes CUE documents against embedded schemas.
//
// It is used for module manifests (module.cue) and the persisted module
// state file (modules.cue). Decoding compiles the schema, unifies the user
// document with the schema's root definition, validates the result and
// decodes it into a Go value. Errors carry JSON-path locations such as
// "commands[0].script".
//
//	//go:embed manifest_schema.cue
//	var manifestSchema []byte
//
//	res, err := cueutil.ParseAndDecode[Manifest](manifestSchema, data, "#Module",
//	    cueutil.WithFilename(path))
package cueutil
