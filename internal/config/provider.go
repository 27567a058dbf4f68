// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific config file when set.
		ConfigFilePath string
		// ConfigDirPath overrides the config directory lookup when set.
		ConfigDirPath string
	}

	// Resolved is a loaded configuration together with where it came from.
	Resolved struct {
		Config *Config
		// Path is the config file that was read, or "" for pure defaults.
		Path string
		// Dir is the config directory default paths are rooted at.
		Dir string
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
		Resolve(ctx context.Context, opts LoadOptions) (*Resolved, error)
	}

	// ProviderOption configures a Provider created by NewProvider.
	ProviderOption func(*fileProvider)

	fileProvider struct {
		// dir replaces the ConfigDir lookup for calls without ConfigDirPath.
		dir string
	}
)

// WithDefaultDir roots every load that does not name a config directory at
// dir instead of the user's configuration directory.
func WithDefaultDir(dir string) ProviderOption {
	return func(p *fileProvider) { p.dir = dir }
}

// NewProvider creates a configuration provider.
func NewProvider(opts ...ProviderOption) Provider {
	p := &fileProvider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	r, err := p.Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	return r.Config, nil
}

// Resolve reads configuration and reports the file and directory used.
func (p *fileProvider) Resolve(ctx context.Context, opts LoadOptions) (*Resolved, error) {
	dir, err := p.configDir(opts)
	if err != nil {
		return nil, err
	}
	cfg, path, err := load(ctx, dir, opts.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	return &Resolved{Config: cfg, Path: path, Dir: dir}, nil
}

func (p *fileProvider) configDir(opts LoadOptions) (string, error) {
	switch {
	case opts.ConfigDirPath != "":
		return opts.ConfigDirPath, nil
	case p.dir != "":
		return p.dir, nil
	default:
		return ConfigDir()
	}
}
