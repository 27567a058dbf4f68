// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidID is the sentinel error wrapped by InvalidIDError.
var ErrInvalidID = errors.New("invalid module id")

var idPattern = regexp.MustCompile(`^[a-z0-9_-]{3,}$`)

type (
	// ID identifies a module for discovery, persistence and disable-lists.
	// A valid ID is at least three characters of lowercase letters, digits,
	// '-' or '_'.
	ID string

	// InvalidIDError is returned when an ID does not match the allowed syntax.
	// It wraps ErrInvalidID for errors.Is() compatibility.
	InvalidIDError struct {
		Value ID
	}
)

// Error implements the error interface.
func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid module id %q (must match %s)", e.Value, idPattern.String())
}

// Unwrap returns ErrInvalidID for errors.Is() compatibility.
func (e *InvalidIDError) Unwrap() error { return ErrInvalidID }

// Validate returns an *InvalidIDError if the ID is malformed.
func (id ID) Validate() error {
	if !idPattern.MatchString(string(id)) {
		return &InvalidIDError{Value: id}
	}
	return nil
}

// String returns the ID as a plain string.
func (id ID) String() string { return string(id) }

// ParseID converts s to an ID and validates it.
func ParseID(s string) (ID, error) {
	id := ID(s)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}
