// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/modhost/modhost/pkg/module"

	"github.com/google/uuid"
)

const (
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ErrCommandNotFound is returned for an unknown platform command ID.
var ErrCommandNotFound = errors.New("platform command not found")

type (
	// Op names a CommandAPI method, for failure injection and call counts.
	Op string

	// Memory is an in-memory module.CommandAPI. Command IDs are random
	// UUIDs. Creating a command whose name already exists replaces it, as
	// chat platforms do.
	Memory struct {
		mu    sync.Mutex
		cmds  map[string]module.RemoteCommand
		fail  map[Op]error
		calls map[Op]int
	}
)

// NewMemory creates a registry pre-populated with seed.
func NewMemory(seed ...module.CommandDef) *Memory {
	m := &Memory{
		cmds:  make(map[string]module.RemoteCommand),
		fail:  make(map[Op]error),
		calls: make(map[Op]int),
	}
	for _, def := range seed {
		id := uuid.NewString()
		m.cmds[id] = module.RemoteCommand{ID: id, CommandDef: def}
	}
	return m
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *Memory) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

// Calls returns how many times op was called.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Names returns the registered command names, sorted.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.cmds))
	for _, rc := range m.cmds {
		names = append(names, rc.Name)
	}
	slices.Sort(names)
	return names
}

func (m *Memory) begin(op Op) error {
	m.calls[op]++
	if err := m.fail[op]; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// List implements module.CommandAPI. Commands are sorted by name.
func (m *Memory) List(ctx context.Context) ([]module.RemoteCommand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpList); err != nil {
		return nil, err
	}
	out := slices.Collect(maps.Values(m.cmds))
	slices.SortFunc(out, func(a, b module.RemoteCommand) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// Create implements module.CommandAPI.
func (m *Memory) Create(ctx context.Context, def module.CommandDef) (module.RemoteCommand, error) {
	if err := ctx.Err(); err != nil {
		return module.RemoteCommand{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpCreate); err != nil {
		return module.RemoteCommand{}, err
	}
	maps.DeleteFunc(m.cmds, func(_ string, rc module.RemoteCommand) bool { return rc.Name == def.Name })
	rc := module.RemoteCommand{ID: uuid.NewString(), CommandDef: def}
	m.cmds[rc.ID] = rc
	return rc, nil
}

// Update implements module.CommandAPI.
func (m *Memory) Update(ctx context.Context, id string, def module.CommandDef) (module.RemoteCommand, error) {
	if err := ctx.Err(); err != nil {
		return module.RemoteCommand{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpUpdate); err != nil {
		return module.RemoteCommand{}, err
	}
	if _, ok := m.cmds[id]; !ok {
		return module.RemoteCommand{}, fmt.Errorf("%w: %s", ErrCommandNotFound, id)
	}
	rc := module.RemoteCommand{ID: id, CommandDef: def}
	m.cmds[id] = rc
	return rc, nil
}

// Delete implements module.CommandAPI.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(OpDelete); err != nil {
		return err
	}
	if _, ok := m.cmds[id]; !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, id)
	}
	delete(m.cmds, id)
	return nil
}
