// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/modhost/modhost/pkg/cueutil"
)

// ModulesStateFileName is the default file name of the module state.
const ModulesStateFileName = "modules.cue"

//go:embed module_state_schema.cue
var moduleStateSchema []byte

type (
	// ModuleSettings is the persisted module state.
	ModuleSettings struct {
		// Disabled lists module IDs that must not be loaded, in the order
		// they were disabled.
		Disabled []string `json:"disabled"`
		Colours  Colours  `json:"colours"`
		// ResponseDeletionTime is how long, in milliseconds, error replies
		// stay visible. Zero keeps them.
		ResponseDeletionTime int          `json:"response_deletion_time"`
		Reload               ReloadPolicy `json:"reload"`
	}

	// Colours are the reply colours as 24-bit RGB integers.
	Colours struct {
		Error   int `json:"error"`
		Success int `json:"success"`
		Warn    int `json:"warn"`
		Standby int `json:"standby"`
		Neutral int `json:"neutral"`
	}

	// ReloadPolicy tunes what a reload does besides loading modules.
	ReloadPolicy struct {
		// LoadBaseline loads the built-in baseline module before the others.
		LoadBaseline bool `json:"load_baseline"`
		// ClearOldCommands deletes platform commands no module registered.
		ClearOldCommands bool `json:"clear_old_commands"`
	}

	// ModuleStore reads and writes ModuleSettings at a fixed path.
	ModuleStore struct {
		path string
		mu   sync.Mutex
	}
)

// DefaultModuleSettings returns the settings written when no state file exists.
func DefaultModuleSettings() *ModuleSettings {
	return &ModuleSettings{
		Disabled: []string{},
		Colours: Colours{
			Error:   15747399,
			Success: 6549575,
			Warn:    16763481,
			Standby: 10395294,
			Neutral: 3259125,
		},
		ResponseDeletionTime: 15000,
		Reload:               ReloadPolicy{LoadBaseline: true},
	}
}

// ResponseDeletion returns ResponseDeletionTime as a duration.
func (s *ModuleSettings) ResponseDeletion() time.Duration {
	return time.Duration(s.ResponseDeletionTime) * time.Millisecond
}

// IsDisabled reports whether id is on the disabled list.
func (s *ModuleSettings) IsDisabled(id string) bool {
	return slices.Contains(s.Disabled, id)
}

// AddDisabled appends id to the disabled list. It reports whether the list
// changed.
func (s *ModuleSettings) AddDisabled(id string) bool {
	if s.IsDisabled(id) {
		return false
	}
	s.Disabled = append(s.Disabled, id)
	return true
}

// RemoveDisabled removes id from the disabled list. It reports whether the
// list changed.
func (s *ModuleSettings) RemoveDisabled(id string) bool {
	n := len(s.Disabled)
	s.Disabled = slices.DeleteFunc(s.Disabled, func(d string) bool { return d == id })
	return len(s.Disabled) != n
}

// Clone returns a deep copy.
func (s *ModuleSettings) Clone() *ModuleSettings {
	c := *s
	c.Disabled = slices.Clone(s.Disabled)
	if c.Disabled == nil {
		c.Disabled = []string{}
	}
	return &c
}

// NewModuleStore creates a store for the state file at path.
func NewModuleStore(path string) *ModuleStore {
	return &ModuleStore{path: path}
}

// Path returns the state file path.
func (s *ModuleStore) Path() string { return s.path }

// Load reads the state file. A missing file is created with the defaults.
func (s *ModuleStore) Load(ctx context.Context) (*ModuleSettings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := cueutil.DecodeFile[ModuleSettings](moduleStateSchema, s.path, "#ModuleSettings")
	if errors.Is(err, fs.ErrNotExist) {
		settings = DefaultModuleSettings()
		if err := s.write(settings); err != nil {
			return nil, err
		}
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load module state: %w", err)
	}
	if settings.Disabled == nil {
		settings.Disabled = []string{}
	}
	return settings, nil
}

// Save writes settings to the state file atomically.
func (s *ModuleStore) Save(ctx context.Context, settings *ModuleSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(settings)
}

func (s *ModuleStore) write(settings *ModuleSettings) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create module state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".modules-*.cue")
	if err != nil {
		return fmt.Errorf("failed to write module state: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.WriteString(GenerateModuleStateCUE(settings)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write module state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write module state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to write module state: %w", err)
	}
	return nil
}

// GenerateModuleStateCUE renders settings as a modules.cue document.
func GenerateModuleStateCUE(settings *ModuleSettings) string {
	var sb strings.Builder

	sb.WriteString("// modhost module state. Rewritten by 'modhost modules enable|disable'.\n\n")

	if len(settings.Disabled) == 0 {
		sb.WriteString("disabled: []\n")
	} else {
		sb.WriteString("disabled: [\n")
		for _, id := range settings.Disabled {
			fmt.Fprintf(&sb, "\t%q,\n", id)
		}
		sb.WriteString("]\n")
	}

	c := settings.Colours
	sb.WriteString("\ncolours: {\n")
	fmt.Fprintf(&sb, "\terror:   %d\n", c.Error)
	fmt.Fprintf(&sb, "\tsuccess: %d\n", c.Success)
	fmt.Fprintf(&sb, "\twarn:    %d\n", c.Warn)
	fmt.Fprintf(&sb, "\tstandby: %d\n", c.Standby)
	fmt.Fprintf(&sb, "\tneutral: %d\n", c.Neutral)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nresponse_deletion_time: %d\n", settings.ResponseDeletionTime)

	sb.WriteString("\nreload: {\n")
	fmt.Fprintf(&sb, "\tload_baseline:      %v\n", settings.Reload.LoadBaseline)
	fmt.Fprintf(&sb, "\tclear_old_commands: %v\n", settings.Reload.ClearOldCommands)
	sb.WriteString("}\n")

	return sb.String()
}
