// SPDX-License-Identifier: MPL-2.0

// Package source turns module IDs into module descriptors.
//
// Three sources are provided: Catalog holds modules compiled into the binary
// and registered explicitly; ManifestDir reads declarative manifests
// (module.cue or module.toml) whose handlers are shell scripts; Composite
// chains several sources. Reloading re-runs discovery against the same
// sources, so manifest edits take effect on the next reload.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/modhost/modhost/pkg/module"
)

const (
	// FetchInvalidID means the candidate ID is malformed.
	FetchInvalidID FetchErrorKind = iota + 1
	// FetchNotFound means the source has nothing under that ID.
	FetchNotFound
	// FetchNotAModule means something exists under the ID but it does not
	// describe a module.
	FetchNotAModule
	// FetchConstructionFailed means building the descriptor failed.
	FetchConstructionFailed
)

var (
	// ErrNotFound is wrapped by FetchErrors of kind FetchNotFound.
	ErrNotFound = errors.New("module not found")
	// ErrNotAModule is wrapped by FetchErrors of kind FetchNotAModule.
	ErrNotAModule = errors.New("not a module")
	// ErrConstructionFailed is wrapped by FetchErrors of kind FetchConstructionFailed.
	ErrConstructionFailed = errors.New("failed to fetch module")
	// ErrDuplicateModule is returned when registering an ID twice.
	ErrDuplicateModule = errors.New("module already registered")
)

type (
	// FetchErrorKind classifies a FetchError.
	FetchErrorKind int

	// FetchError reports why an ID could not be turned into a descriptor.
	FetchError struct {
		ID    module.ID
		Kind  FetchErrorKind
		Cause error
	}

	// Source yields module descriptors.
	Source interface {
		// ListCandidateIDs enumerates the IDs the source may be able to
		// fetch. IDs are returned as found and may be malformed.
		ListCandidateIDs(ctx context.Context) ([]string, error)
		// Fetch builds a fresh descriptor for id.
		Fetch(ctx context.Context, id module.ID) (*module.Descriptor, error)
		// Invalidate drops any cached state so the next Fetch re-reads it.
		Invalidate()
	}
)

func (k FetchErrorKind) sentinel() error {
	switch k {
	case FetchInvalidID:
		return module.ErrInvalidID
	case FetchNotFound:
		return ErrNotFound
	case FetchNotAModule:
		return ErrNotAModule
	default:
		return ErrConstructionFailed
	}
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind.sentinel(), e.ID)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind.sentinel(), e.ID, e.Cause)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *FetchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Cause}
}

func fetchErr(id module.ID, kind FetchErrorKind, cause error) *FetchError {
	return &FetchError{ID: id, Kind: kind, Cause: cause}
}

// checkDescriptor rejects descriptors that do not describe a module.
func checkDescriptor(id module.ID, d *module.Descriptor) error {
	if err := d.Validate(); err != nil {
		return fetchErr(id, FetchNotAModule, err)
	}
	return nil
}
