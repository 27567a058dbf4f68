// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/modhost/modhost/pkg/module"
)

// defaultCatalog receives registrations made from package init functions.
var defaultCatalog = NewCatalog()

type (
	// Factory builds a fresh descriptor. It is called on every fetch, so
	// each load sees new handler state.
	Factory func() (*module.Descriptor, error)

	// Catalog is a static registry of modules compiled into the binary.
	Catalog struct {
		mu        sync.RWMutex
		factories map[module.ID]Factory
		order     []module.ID
	}
)

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[module.ID]Factory)}
}

// Default returns the catalog that Register adds to.
func Default() *Catalog { return defaultCatalog }

// Register adds a compiled module to the default catalog. It panics on an
// invalid or duplicate ID, which is a programming error.
func Register(id module.ID, f Factory) {
	if err := defaultCatalog.Register(id, f); err != nil {
		panic(err)
	}
}

// Register adds a module factory under id.
func (c *Catalog) Register(id module.ID, f Factory) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("register %s: nil factory", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.factories[id]; ok {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateModule)
	}
	c.factories[id] = f
	c.order = append(c.order, id)
	return nil
}

// ListCandidateIDs returns the registered IDs in registration order.
func (c *Catalog) ListCandidateIDs(context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.order))
	for _, id := range c.order {
		ids = append(ids, string(id))
	}
	return ids, nil
}

// Has reports whether id is registered.
func (c *Catalog) Has(id module.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.order, id)
}

// Fetch calls the factory registered under id. Factory errors and panics
// are reported as FetchConstructionFailed.
func (c *Catalog) Fetch(_ context.Context, id module.ID) (d *module.Descriptor, err error) {
	if verr := id.Validate(); verr != nil {
		return nil, fetchErr(id, FetchInvalidID, verr)
	}
	c.mu.RLock()
	f, ok := c.factories[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fetchErr(id, FetchNotFound, nil)
	}

	defer func() {
		if p := recover(); p != nil {
			d, err = nil, fetchErr(id, FetchConstructionFailed, fmt.Errorf("factory panicked: %v", p))
		}
	}()
	d, err = f()
	if err != nil {
		return nil, fetchErr(id, FetchConstructionFailed, err)
	}
	if err := checkDescriptor(id, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Invalidate is a no-op: compiled descriptors have no cached state.
func (c *Catalog) Invalidate() {}
