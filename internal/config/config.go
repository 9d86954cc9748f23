// Package config provides configuration management for marksync.
// It supports YAML and TOML configuration files, environment variables,
// flag overrides and sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/state"
	"github.com/klauern/marksync/internal/util"
)

// Adapter kinds.
const (
	KindRaindrop   = "raindrop"
	KindNotebookLM = "notebooklm"
	KindFile       = "file"
	// KindMemory names the in-process adapter used by tests. Validate
	// rejects it because it keeps nothing between runs.
	KindMemory = "memory"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete marksync configuration.
type Config struct {
	// Bookmarks configures the bookmark side adapter
	Bookmarks AdapterConfig `yaml:"bookmarks" toml:"bookmarks" envPrefix:"MARKSYNC_BOOKMARKS_"`

	// Notebooks configures the notebook side adapter
	Notebooks AdapterConfig `yaml:"notebooks" toml:"notebooks" envPrefix:"MARKSYNC_NOTEBOOKS_"`

	// Sync configures reconciliation behavior
	Sync SyncConfig `yaml:"sync" toml:"sync" envPrefix:"MARKSYNC_SYNC_"`

	// Retry bounds the backoff around each service call
	Retry adapter.RetryPolicy `yaml:"retry" toml:"retry" envPrefix:"MARKSYNC_RETRY_"`

	// State configures the sync state store
	State StateConfig `yaml:"state" toml:"state" envPrefix:"MARKSYNC_STATE_"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output" toml:"output" envPrefix:"MARKSYNC_OUTPUT_"`

	// Credentials come from the environment only and are never saved.
	Credentials Credentials `yaml:"-" toml:"-"`
}

// AdapterConfig selects and configures one side's adapter.
type AdapterConfig struct {
	// Kind is raindrop, notebooklm or file
	Kind string `yaml:"kind" toml:"kind" env:"KIND"`
	// BaseURL overrides the service endpoint
	BaseURL string `yaml:"base_url,omitempty" toml:"base_url,omitempty" env:"BASE_URL"`
	// CollectionID scopes a raindrop adapter to one collection (0 = all)
	CollectionID int `yaml:"collection_id,omitempty" toml:"collection_id,omitempty" env:"COLLECTION_ID"`
	// NotebookID selects the notebook for a notebooklm adapter
	NotebookID string `yaml:"notebook_id,omitempty" toml:"notebook_id,omitempty" env:"NOTEBOOK_ID"`
	// PageSize is the list page size
	PageSize int `yaml:"page_size,omitempty" toml:"page_size,omitempty" env:"PAGE_SIZE"`
	// Path is the collection file for a file adapter
	Path string `yaml:"path,omitempty" toml:"path,omitempty" env:"PATH"`
	// Timeout bounds a single HTTP request
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty" env:"TIMEOUT"`
}

// SyncConfig holds reconciliation settings.
type SyncConfig struct {
	// PropagateDeletes deletes on the other side when an item disappears
	PropagateDeletes bool `yaml:"propagate_deletes" toml:"propagate_deletes" env:"PROPAGATE_DELETES"`
	// CallTimeout bounds each adapter call and the state commit
	CallTimeout time.Duration `yaml:"call_timeout" toml:"call_timeout" env:"CALL_TIMEOUT"`
}

// StateConfig holds state store settings.
type StateConfig struct {
	// Backend is file or bolt
	Backend string `yaml:"backend" toml:"backend" env:"BACKEND"`
	// Path is the state file; empty means the default under MARKSYNC_HOME
	Path string `yaml:"path,omitempty" toml:"path,omitempty" env:"PATH"`
	// MaxBackups is the number of prior snapshots kept (file backend)
	MaxBackups int `yaml:"max_backups" toml:"max_backups" env:"MAX_BACKUPS"`
	// MaxBackupAge drops older backups (file backend, 0 keeps all)
	MaxBackupAge time.Duration `yaml:"max_backup_age,omitempty" toml:"max_backup_age,omitempty" env:"MAX_BACKUP_AGE"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Format is the default sync report format (text, json, yaml)
	Format string `yaml:"format" toml:"format" env:"FORMAT"`
	// Color controls color output (auto, always, never)
	Color string `yaml:"color" toml:"color" env:"COLOR"`
	// Verbose enables verbose output
	Verbose bool `yaml:"verbose" toml:"verbose" env:"VERBOSE"`
}

// Credentials holds service tokens.
type Credentials struct {
	RaindropToken string `env:"MARKSYNC_RAINDROP_TOKEN"`
	NotebookToken string `env:"MARKSYNC_NOTEBOOK_TOKEN"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Bookmarks: AdapterConfig{
			Kind: KindRaindrop,
		},
		Notebooks: AdapterConfig{
			Kind: KindNotebookLM,
		},
		Sync: SyncConfig{
			PropagateDeletes: false,
			CallTimeout:      2 * time.Minute,
		},
		Retry: adapter.DefaultRetryPolicy(),
		State: StateConfig{
			Backend:    state.BackendFile,
			MaxBackups: 10,
		},
		Output: OutputConfig{
			Format: FormatText,
			Color:  "auto",
		},
	}
}

// FilePath returns the path to the default config file.
func FilePath() string {
	return util.ConfigPath()
}

// Load loads the configuration from the default file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg, err := LoadFromPath(FilePath())
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		if err := cfg.applyEnvironment(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// LoadFromPath loads configuration from a specific path. Files ending in
// .toml are decoded as TOML, everything else as YAML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveToPath(FilePath())
}

// SaveToPath writes the configuration to a specific path. Credentials are
// never written.
func (c *Config) SaveToPath(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := c.Marshal(path)
	if err != nil {
		return err
	}

	// #nosec G306 - config file holds no secrets
	return os.WriteFile(path, data, 0o644)
}

// Marshal encodes the configuration in the format implied by path.
func (c *Config) Marshal(path string) ([]byte, error) {
	if isTOML(path) {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(c); err != nil {
			return nil, err
		}
		return []byte(sb.String()), nil
	}
	return yaml.Marshal(c)
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}

// Overrides carries command-line settings. Zero values leave the loaded
// configuration untouched.
type Overrides struct {
	PropagateDeletes bool
	OutputFormat     string
	Verbose          bool
	NoColor          bool
}

// Merge applies flag overrides on top of the loaded configuration.
func (c *Config) Merge(o Overrides) error {
	patch := Config{
		Sync:   SyncConfig{PropagateDeletes: o.PropagateDeletes},
		Output: OutputConfig{Format: o.OutputFormat, Verbose: o.Verbose},
	}
	if o.NoColor {
		patch.Output.Color = "never"
	}
	if err := mergo.Merge(c, patch, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge flag overrides: %w", err)
	}
	return nil
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	var errs []error
	if err := validateAdapter("bookmarks", c.Bookmarks, KindRaindrop); err != nil {
		errs = append(errs, err)
	}
	if err := validateAdapter("notebooks", c.Notebooks, KindNotebookLM); err != nil {
		errs = append(errs, err)
	}
	switch c.State.Backend {
	case state.BackendFile, state.BackendBolt:
	default:
		errs = append(errs, fmt.Errorf("%w: state.backend %q (want file or bolt)", ErrInvalid, c.State.Backend))
	}
	if c.Sync.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: sync.call_timeout must be positive", ErrInvalid))
	}
	if c.State.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("%w: state.max_backups must not be negative", ErrInvalid))
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("%w: output.format %q (want text, json or yaml)", ErrInvalid, c.Output.Format))
	}
	return errors.Join(errs...)
}

func validateAdapter(name string, a AdapterConfig, service string) error {
	switch a.Kind {
	case service:
		return nil
	case KindMemory:
		return fmt.Errorf("%w: %s.kind memory keeps nothing between runs and is only for tests", ErrInvalid, name)
	case KindFile:
		if a.Path == "" {
			return fmt.Errorf("%w: %s.path is required for the file adapter", ErrInvalid, name)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s.kind %q (want %s or file)", ErrInvalid, name, a.Kind, service)
	}
}

// StatePath returns the configured state location or the backend default.
func (c *Config) StatePath() string {
	if c.State.Path != "" {
		return util.ExpandPath(c.State.Path)
	}
	if c.State.Backend == state.BackendBolt {
		return util.BoltStatePath()
	}
	return util.StatePath()
}

// StateOptions returns the options for state.Open.
func (c *Config) StateOptions() state.Options {
	return state.Options{
		Backend:      c.State.Backend,
		Path:         c.StatePath(),
		MaxBackups:   c.State.MaxBackups,
		MaxBackupAge: c.State.MaxBackupAge,
	}
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern MARKSYNC_<SECTION>_<KEY>, set
// by the env and envPrefix tags. Values that do not parse are errors.
func (c *Config) applyEnvironment() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
