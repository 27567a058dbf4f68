// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modhost/modhost/internal/issue"
	"github.com/modhost/modhost/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "modhost"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. MODHOST_HTTP_ADDR.
	EnvPrefix = "MODHOST"
	// ConfigDirEnv relocates the configuration directory.
	ConfigDirEnv = EnvPrefix + "_CONFIG_DIR"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the modhost configuration directory: $MODHOST_CONFIG_DIR
// when set, otherwise a modhost directory under the user's configuration root
// (%AppData% on Windows, ~/Library/Application Support on macOS,
// $XDG_CONFIG_HOME or ~/.config elsewhere).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}
	root, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(root, AppName), nil
}

// ConfigFilePath returns the config.cue path inside dir.
func ConfigFilePath(dir string) string {
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
}

func joinDir(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// load reads the configuration rooted at cfgDir. It returns the resolved
// config file path, or "" when only defaults and environment overrides were
// applied.
func load(ctx context.Context, cfgDir, filePath string) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig(cfgDir))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if filePath != "" {
		if !fileExists(filePath) {
			return nil, "", issue.Fail(issue.ConfigLoadFailedId).
				On(filePath).
				Suggest("Verify the file path is correct", "Use 'modhost config init' to write a default configuration").
				Because(fmt.Errorf("config file not found: %s", filePath))
		}
		resolvedPath = filePath
	} else if cuePath := ConfigFilePath(cfgDir); fileExists(cuePath) {
		resolvedPath = cuePath
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.Fail(issue.ConfigLoadFailedId).
				On(resolvedPath).
				Suggest("Check the CUE syntax and that values match the #Config schema").
				Because(err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.Fail(issue.ConfigLoadFailedId).
			During("validate configuration").
			On(resolvedPath).
			Suggest("Fix the listed fields or unset the matching MODHOST_* variables").
			Because(err)
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", string(d.Log.Format))
	v.SetDefault("modules.dir", d.Modules.Dir)
	v.SetDefault("modules.state_file", d.Modules.StateFile)
	v.SetDefault("modules.allow_exec", d.Modules.AllowExec)
	v.SetDefault("modules.script_timeout", d.Modules.ScriptTimeout)
	v.SetDefault("http.enabled", d.HTTP.Enabled)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.allowed_origins", d.HTTP.AllowedOrigins)
	v.SetDefault("ssh.enabled", d.SSH.Enabled)
	v.SetDefault("ssh.addr", d.SSH.Addr)
	v.SetDefault("ssh.host_key_path", d.SSH.HostKeyPath)
	v.SetDefault("ssh.password", d.SSH.Password)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.path", d.Journal.Path)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Config decodes to map[string]any rather than a struct so that Viper keeps
// its defaults and environment overrides, and every field is optional, so
// this does not go through cueutil.ParseAndDecode.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config.cue into dir unless one
// already exists. It returns the file path.
func CreateDefaultConfig(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := ConfigFilePath(dir)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig(dir))), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// Save writes cfg to config.cue in dir.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(ConfigFilePath(dir), []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modhost configuration file\n")
	sb.WriteString("// Values may be overridden with MODHOST_* environment variables.\n\n")

	sb.WriteString("log: {\n")
	fmt.Fprintf(&sb, "\tlevel:  %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")

	sb.WriteString("\nmodules: {\n")
	fmt.Fprintf(&sb, "\tdir:            %q\n", cfg.Modules.Dir)
	fmt.Fprintf(&sb, "\tstate_file:     %q\n", cfg.Modules.StateFile)
	fmt.Fprintf(&sb, "\tallow_exec:     %v\n", cfg.Modules.AllowExec)
	fmt.Fprintf(&sb, "\tscript_timeout: %q\n", formatDuration(cfg.Modules.ScriptTimeout))
	sb.WriteString("}\n")

	sb.WriteString("\nhttp: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.HTTP.Enabled)
	fmt.Fprintf(&sb, "\taddr:    %q\n", cfg.HTTP.Addr)
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		sb.WriteString("\tallowed_origins: [\n")
		for _, o := range cfg.HTTP.AllowedOrigins {
			fmt.Fprintf(&sb, "\t\t%q,\n", o)
		}
		sb.WriteString("\t]\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\nssh: {\n")
	fmt.Fprintf(&sb, "\tenabled:       %v\n", cfg.SSH.Enabled)
	fmt.Fprintf(&sb, "\taddr:          %q\n", cfg.SSH.Addr)
	fmt.Fprintf(&sb, "\thost_key_path: %q\n", cfg.SSH.HostKeyPath)
	if cfg.SSH.Password != "" {
		fmt.Fprintf(&sb, "\tpassword:      %q\n", cfg.SSH.Password)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tenabled:  %v\n", cfg.Watch.Enabled)
	fmt.Fprintf(&sb, "\tdebounce: %q\n", formatDuration(cfg.Watch.Debounce))
	sb.WriteString("}\n")

	sb.WriteString("\njournal: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Journal.Enabled)
	fmt.Fprintf(&sb, "\tpath:    %q\n", cfg.Journal.Path)
	sb.WriteString("}\n")

	return sb.String()
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	return d.String()
}
