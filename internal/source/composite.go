// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"sync"

	"github.com/modhost/modhost/pkg/module"
)

// Composite chains sources. Candidate IDs are listed source by source; an ID
// offered by several sources is fetched from the first one that listed it.
type Composite struct {
	sources []Source

	mu    sync.Mutex
	owner map[module.ID]Source
}

// NewComposite creates a Composite over sources, in priority order.
func NewComposite(sources ...Source) *Composite {
	return &Composite{sources: sources, owner: make(map[module.ID]Source)}
}

// ListCandidateIDs concatenates the candidates of every source, keeping
// duplicates so discovery can report them. A failing source is skipped and
// its error joined into the result.
func (c *Composite) ListCandidateIDs(ctx context.Context) ([]string, error) {
	owner := make(map[module.ID]Source)
	var (
		ids  []string
		errs []error
	)
	for _, src := range c.sources {
		found, err := src.ListCandidateIDs(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, raw := range found {
			if _, taken := owner[module.ID(raw)]; !taken {
				owner[module.ID(raw)] = src
			}
			ids = append(ids, raw)
		}
	}

	c.mu.Lock()
	c.owner = owner
	c.mu.Unlock()
	return ids, errors.Join(errs...)
}

// Fetch asks the source that first listed id, falling back to trying every
// source in order when id was never listed.
func (c *Composite) Fetch(ctx context.Context, id module.ID) (*module.Descriptor, error) {
	c.mu.Lock()
	src, ok := c.owner[id]
	c.mu.Unlock()
	if ok {
		return src.Fetch(ctx, id)
	}

	for _, s := range c.sources {
		d, err := s.Fetch(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return d, err
	}
	return nil, fetchErr(id, FetchNotFound, nil)
}

// Invalidate invalidates every source.
func (c *Composite) Invalidate() {
	for _, s := range c.sources {
		s.Invalidate()
	}
}
