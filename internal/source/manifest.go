// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modhost/modhost/internal/script"
	"github.com/modhost/modhost/pkg/cueutil"
	"github.com/modhost/modhost/pkg/module"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

const (
	// CUEManifest is the preferred manifest file name.
	CUEManifest = "module.cue"
	// TOMLManifest is read when no CUE manifest exists.
	TOMLManifest = "module.toml"
)

//go:embed manifest_schema.cue
var manifestSchema []byte

type (
	// Manifest is the declarative form of a module.
	Manifest struct {
		Name         string            `json:"name"`
		Version      string            `json:"version"`
		Description  string            `json:"description"`
		Authors      []string          `json:"authors"`
		Dependencies []string          `json:"dependencies"`
		Commands     []ManifestCommand `json:"commands"`
		Buttons      []ManifestBinding `json:"buttons"`
		Modals       []ManifestBinding `json:"modals"`
		Menus        []ManifestBinding `json:"menus"`
		Load         string            `json:"load"`
		Unload       string            `json:"unload"`
	}

	// ManifestCommand declares a command whose handler is a script.
	// Autocomplete, when set, is a script printing one suggestion per line.
	ManifestCommand struct {
		Name         string           `json:"name"`
		Label        string           `json:"label"`
		Description  string           `json:"description"`
		Options      []ManifestOption `json:"options"`
		Script       string           `json:"script"`
		Autocomplete string           `json:"autocomplete"`
	}

	// ManifestOption declares a command option.
	ManifestOption struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Type         string   `json:"type"`
		Required     bool     `json:"required"`
		Autocomplete bool     `json:"autocomplete"`
		Choices      []string `json:"choices"`
	}

	// ManifestBinding binds a button, modal or menu custom ID to a script.
	ManifestBinding struct {
		ID     string `json:"id"`
		Script string `json:"script"`
	}

	// ManifestDir discovers modules as subdirectories of a root directory,
	// each holding a module.cue or module.toml manifest.
	ManifestDir struct {
		root   string
		runner *script.Runner
		logger *log.Logger

		mu    sync.Mutex
		cache map[module.ID]*Manifest
	}
)

// ParseManifest reads and validates a manifest file. TOML manifests are
// converted to JSON and validated against the same schema as CUE ones.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".toml" {
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	res, err := cueutil.ParseAndDecode[Manifest](manifestSchema, data, "#Module", cueutil.WithFilename(path))
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Check parses every script in the manifest.
func (m *Manifest) Check() error {
	var errs []error
	check := func(label, body string) {
		if body == "" {
			return
		}
		if err := script.Check(label, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
	}
	check("load", m.Load)
	check("unload", m.Unload)
	for _, c := range m.Commands {
		check("commands."+c.Name, c.Script)
		check("commands."+c.Name+".autocomplete", c.Autocomplete)
	}
	for _, group := range []struct {
		label    string
		bindings []ManifestBinding
	}{{"buttons", m.Buttons}, {"modals", m.Modals}, {"menus", m.Menus}} {
		for _, b := range group.bindings {
			check(group.label+"."+b.ID, b.Script)
		}
	}
	return errors.Join(errs...)
}

// NewManifestDir creates a source reading manifests under root and running
// their scripts with runner.
func NewManifestDir(root string, runner *script.Runner, logger *log.Logger) *ManifestDir {
	if runner == nil {
		runner = &script.Runner{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ManifestDir{
		root:   root,
		runner: runner,
		logger: logger.WithPrefix("manifests"),
		cache:  make(map[module.ID]*Manifest),
	}
}

// Root returns the directory manifests are read from.
func (m *ManifestDir) Root() string { return m.root }

// ListCandidateIDs returns the names of the non-hidden subdirectories of the
// root. A missing root yields no candidates.
func (m *ManifestDir) ListCandidateIDs(context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list modules in %s: %w", m.root, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Fetch builds a descriptor from the manifest in <root>/<id>.
func (m *ManifestDir) Fetch(_ context.Context, id module.ID) (*module.Descriptor, error) {
	if err := id.Validate(); err != nil {
		return nil, fetchErr(id, FetchInvalidID, err)
	}
	man, err := m.manifest(id)
	if err != nil {
		return nil, err
	}
	d := m.describe(id, filepath.Join(m.root, string(id)), man)
	if err := checkDescriptor(id, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Invalidate forgets every parsed manifest.
func (m *ManifestDir) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.cache)
}

func (m *ManifestDir) manifest(id module.ID) (*Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if man, ok := m.cache[id]; ok {
		return man, nil
	}

	dir := filepath.Join(m.root, string(id))
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fetchErr(id, FetchNotFound, nil)
	}
	if err != nil {
		return nil, fetchErr(id, FetchConstructionFailed, err)
	}
	if !info.IsDir() {
		return nil, fetchErr(id, FetchNotAModule, fmt.Errorf("%s is not a directory", dir))
	}

	path, ok := FindManifest(dir)
	if !ok {
		return nil, fetchErr(id, FetchNotAModule, fmt.Errorf("no %s or %s in %s", CUEManifest, TOMLManifest, dir))
	}
	man, err := ParseManifest(path)
	if err != nil {
		return nil, fetchErr(id, FetchConstructionFailed, err)
	}
	if man.Name == "" {
		return nil, fetchErr(id, FetchNotAModule, module.ErrMissingName)
	}
	if err := man.Check(); err != nil {
		return nil, fetchErr(id, FetchConstructionFailed, err)
	}

	m.cache[id] = man
	return man, nil
}

// FindManifest returns the manifest file in dir, preferring CUE over TOML.
func FindManifest(dir string) (string, bool) {
	for _, name := range []string{CUEManifest, TOMLManifest} {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}
