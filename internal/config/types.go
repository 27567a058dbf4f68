// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// LogFormatText is the human readable charmbracelet/log format.
	LogFormatText LogFormat = "text"
	// LogFormatLogfmt emits logfmt key=value lines.
	LogFormatLogfmt LogFormat = "logfmt"
	// LogFormatJSON emits one JSON object per line.
	LogFormatJSON LogFormat = "json"
)

var (
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogFormat selects the log line encoding.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	// It wraps ErrInvalidLogFormat for errors.Is() compatibility.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// InvalidConfigError collects every field that failed validation.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the process configuration.
	Config struct {
		Log     LogConfig     `json:"log" mapstructure:"log"`
		Modules ModulesConfig `json:"modules" mapstructure:"modules"`
		HTTP    HTTPConfig    `json:"http" mapstructure:"http"`
		SSH     SSHConfig     `json:"ssh" mapstructure:"ssh"`
		Watch   WatchConfig   `json:"watch" mapstructure:"watch"`
		Journal JournalConfig `json:"journal" mapstructure:"journal"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level  string    `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}

	// ModulesConfig locates manifest modules and their persisted state.
	ModulesConfig struct {
		// Dir holds one subdirectory per manifest module.
		Dir string `json:"dir" mapstructure:"dir"`
		// StateFile is the modules.cue file managed by ModuleStore.
		StateFile string `json:"state_file" mapstructure:"state_file"`
		// AllowExec lets handler scripts start external programs.
		AllowExec bool `json:"allow_exec" mapstructure:"allow_exec"`
		// ScriptTimeout bounds a single handler script run.
		ScriptTimeout time.Duration `json:"script_timeout" mapstructure:"script_timeout"`
	}

	// HTTPConfig configures the interaction webhook and admin API.
	HTTPConfig struct {
		Enabled        bool     `json:"enabled" mapstructure:"enabled"`
		Addr           string   `json:"addr" mapstructure:"addr"`
		AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	}

	// SSHConfig configures the SSH interaction console.
	SSHConfig struct {
		Enabled     bool   `json:"enabled" mapstructure:"enabled"`
		Addr        string `json:"addr" mapstructure:"addr"`
		HostKeyPath string `json:"host_key_path" mapstructure:"host_key_path"`
		// Password, when set, is required from every SSH client.
		Password string `json:"password" mapstructure:"password"`
	}

	// WatchConfig configures automatic reloads on manifest changes.
	WatchConfig struct {
		Enabled  bool          `json:"enabled" mapstructure:"enabled"`
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	}

	// JournalConfig configures the sqlite lifecycle journal.
	JournalConfig struct {
		Enabled bool   `json:"enabled" mapstructure:"enabled"`
		Path    string `json:"path" mapstructure:"path"`
	}
)

// Error implements the error interface.
func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, logfmt, json)", e.Value)
}

// Unwrap returns ErrInvalidLogFormat for errors.Is() compatibility.
func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// Validate returns an error if the format is not recognized.
func (f LogFormat) Validate() error {
	switch f {
	case LogFormatText, LogFormatLogfmt, LogFormatJSON:
		return nil
	default:
		return &InvalidLogFormatError{Value: f}
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks the constraints CUE cannot express.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Log.Format.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Modules.Dir == "" {
		errs = append(errs, errors.New("modules.dir must not be empty"))
	}
	if c.Modules.StateFile == "" {
		errs = append(errs, errors.New("modules.state_file must not be empty"))
	}
	if c.Modules.ScriptTimeout < 0 {
		errs = append(errs, fmt.Errorf("modules.script_timeout must not be negative, got %s", c.Modules.ScriptTimeout))
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required when http is enabled"))
	}
	if c.SSH.Enabled && c.SSH.Addr == "" {
		errs = append(errs, errors.New("ssh.addr is required when ssh is enabled"))
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required when the journal is enabled"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// DefaultConfig returns the defaults, with paths rooted at cfgDir.
func DefaultConfig(cfgDir string) *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: LogFormatText},
		Modules: ModulesConfig{
			Dir:           joinDir(cfgDir, "modules"),
			StateFile:     joinDir(cfgDir, ModulesStateFileName),
			ScriptTimeout: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Enabled:        true,
			Addr:           "127.0.0.1:8870",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		SSH: SSHConfig{
			Addr:        "127.0.0.1:2222",
			HostKeyPath: joinDir(cfgDir, "ssh_host_ed25519"),
		},
		Watch:   WatchConfig{Debounce: 500 * time.Millisecond},
		Journal: JournalConfig{Enabled: true, Path: joinDir(cfgDir, "journal.db")},
	}
}
