package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauern/marksync/internal/util"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Check adapter defaults
	if cfg.Bookmarks.Kind != KindRaindrop {
		t.Errorf("expected bookmarks kind %q, got %q", KindRaindrop, cfg.Bookmarks.Kind)
	}
	if cfg.Notebooks.Kind != KindNotebookLM {
		t.Errorf("expected notebooks kind %q, got %q", KindNotebookLM, cfg.Notebooks.Kind)
	}

	// Check sync defaults
	if cfg.Sync.PropagateDeletes {
		t.Error("expected PropagateDeletes to be false by default")
	}
	if cfg.Sync.CallTimeout != 2*time.Minute {
		t.Errorf("expected CallTimeout to be 2m, got %v", cfg.Sync.CallTimeout)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.Retry.MaxRetries)
	}

	// Check state and output defaults
	if cfg.State.Backend != "file" || cfg.State.MaxBackups != 10 {
		t.Errorf("unexpected state defaults: %+v", cfg.State)
	}
	if cfg.Output.Format != FormatText || cfg.Output.Color != "auto" {
		t.Errorf("unexpected output defaults: %+v", cfg.Output)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), name)

			cfg := Default()
			cfg.Bookmarks = AdapterConfig{Kind: KindFile, Path: "~/bookmarks.yaml"}
			cfg.Notebooks.NotebookID = "nb-42"
			cfg.Sync.PropagateDeletes = true
			cfg.Sync.CallTimeout = 30 * time.Second
			cfg.State.Backend = "bolt"

			if err := cfg.SaveToPath(configPath); err != nil {
				t.Fatalf("SaveToPath() error = %v", err)
			}

			loaded, err := LoadFromPath(configPath)
			if err != nil {
				t.Fatalf("LoadFromPath() error = %v", err)
			}

			if loaded.Bookmarks != cfg.Bookmarks {
				t.Errorf("bookmarks = %+v, want %+v", loaded.Bookmarks, cfg.Bookmarks)
			}
			if loaded.Notebooks.NotebookID != "nb-42" {
				t.Errorf("notebook id = %q", loaded.Notebooks.NotebookID)
			}
			if loaded.Sync != cfg.Sync {
				t.Errorf("sync = %+v, want %+v", loaded.Sync, cfg.Sync)
			}
			if loaded.State.Backend != "bolt" {
				t.Errorf("state backend = %q", loaded.State.Backend)
			}
		})
	}
}

func TestSaveNeverWritesCredentials(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Credentials = Credentials{RaindropToken: "secret-raindrop", NotebookToken: "secret-notebook"}

	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("SaveToPath() error = %v", err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("credentials leaked into config file:\n%s", data)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	util.SetHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Bookmarks.Kind != KindRaindrop {
		t.Errorf("expected defaults, got %+v", cfg.Bookmarks)
	}
	if Exists() {
		t.Error("Exists() should be false without a config file")
	}
}

func TestLoadFromPath_Errors(t *testing.T) {
	dir := t.TempDir()
	badYAML := filepath.Join(dir, "bad.yaml")
	util.WriteFile(t, badYAML, "sync: [unclosed")
	badTOML := filepath.Join(dir, "bad.toml")
	util.WriteFile(t, badTOML, "[sync\npropagate_deletes = true")

	tests := map[string]string{
		"missing":  filepath.Join(dir, "nope.yaml"),
		"bad yaml": badYAML,
		"bad toml": badTOML,
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFromPath(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	util.WriteFile(t, configPath, "state:\n  backend: file\n")

	t.Setenv("MARKSYNC_RAINDROP_TOKEN", "rd-token")
	t.Setenv("MARKSYNC_NOTEBOOK_TOKEN", "nb-token")
	t.Setenv("MARKSYNC_NOTEBOOKS_NOTEBOOK_ID", "nb-1")
	t.Setenv("MARKSYNC_NOTEBOOKS_BASE_URL", "http://localhost:9000")
	t.Setenv("MARKSYNC_BOOKMARKS_COLLECTION_ID", "42")
	t.Setenv("MARKSYNC_SYNC_PROPAGATE_DELETES", "true")
	t.Setenv("MARKSYNC_SYNC_CALL_TIMEOUT", "15s")
	t.Setenv("MARKSYNC_STATE_BACKEND", "bolt")
	t.Setenv("MARKSYNC_OUTPUT_FORMAT", "json")
	t.Setenv("MARKSYNC_RETRY_MAX", "7")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Credentials.RaindropToken != "rd-token" || cfg.Credentials.NotebookToken != "nb-token" {
		t.Errorf("credentials = %+v", cfg.Credentials)
	}
	if cfg.Notebooks.NotebookID != "nb-1" || cfg.Notebooks.BaseURL != "http://localhost:9000" {
		t.Errorf("notebooks = %+v", cfg.Notebooks)
	}
	if cfg.Bookmarks.CollectionID != 42 || cfg.Bookmarks.Kind != KindRaindrop {
		t.Errorf("bookmarks = %+v", cfg.Bookmarks)
	}
	if !cfg.Sync.PropagateDeletes || cfg.Sync.CallTimeout != 15*time.Second {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.State.Backend != "bolt" || cfg.Output.Format != FormatJSON || cfg.Retry.MaxRetries != 7 {
		t.Errorf("unexpected overrides: state %+v output %+v retry %+v", cfg.State, cfg.Output, cfg.Retry)
	}
}

func TestEnvironmentOverrides_InvalidValues(t *testing.T) {
	tests := map[string]struct {
		key   string
		value string
	}{
		"duration":      {key: "MARKSYNC_SYNC_CALL_TIMEOUT", value: "ten-seconds"},
		"negative uint": {key: "MARKSYNC_RETRY_MAX", value: "-1"},
		"bool typo":     {key: "MARKSYNC_SYNC_PROPAGATE_DELETES", value: "ture"},
		"int":           {key: "MARKSYNC_BOOKMARKS_COLLECTION_ID", value: "abc"},
		"backups":       {key: "MARKSYNC_STATE_MAX_BACKUPS", value: "many"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			util.WriteFile(t, configPath, "state:\n  backend: file\n")
			t.Setenv(tt.key, tt.value)

			if _, err := LoadFromPath(configPath); err == nil {
				t.Errorf("LoadFromPath() with %s=%q should fail", tt.key, tt.value)
			}

			t.Setenv(util.HomeEnv, t.TempDir())
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	tests := map[string]struct {
		base      func(*Config)
		overrides Overrides
		check     func(*testing.T, *Config)
	}{
		"empty overrides keep file values": {
			base: func(c *Config) {
				c.Sync.PropagateDeletes = true
				c.Output.Format = FormatYAML
			},
			check: func(t *testing.T, c *Config) {
				if !c.Sync.PropagateDeletes || c.Output.Format != FormatYAML {
					t.Errorf("values lost: %+v %+v", c.Sync, c.Output)
				}
			},
		},
		"flags win": {
			overrides: Overrides{PropagateDeletes: true, OutputFormat: FormatJSON, Verbose: true},
			check: func(t *testing.T, c *Config) {
				if !c.Sync.PropagateDeletes || c.Output.Format != FormatJSON || !c.Output.Verbose {
					t.Errorf("overrides not applied: %+v %+v", c.Sync, c.Output)
				}
			},
		},
		"no color": {
			overrides: Overrides{NoColor: true},
			check: func(t *testing.T, c *Config) {
				if c.Output.Color != "never" {
					t.Errorf("color = %q, want never", c.Output.Color)
				}
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			if tt.base != nil {
				tt.base(cfg)
			}
			if err := cfg.Merge(tt.overrides); err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"unknown bookmark kind":          func(c *Config) { c.Bookmarks.Kind = "pocket" },
		"notebook kind on bookmark side": func(c *Config) { c.Bookmarks.Kind = KindNotebookLM },
		"file without path":              func(c *Config) { c.Notebooks.Kind = KindFile },
		"memory kind":                    func(c *Config) { c.Bookmarks.Kind = KindMemory },
		"zero call timeout":              func(c *Config) { c.Sync.CallTimeout = 0 },
		"unknown backend":                func(c *Config) { c.State.Backend = "sqlite" },
		"negative backups":               func(c *Config) { c.State.MaxBackups = -1 },
		"unknown format":                 func(c *Config) { c.Output.Format = "xml" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestStatePath(t *testing.T) {
	home := util.SetHome(t)

	tests := map[string]struct {
		state StateConfig
		want  string
	}{
		"file default": {state: StateConfig{Backend: "file"}, want: filepath.Join(home, "state.json")},
		"bolt default": {state: StateConfig{Backend: "bolt"}, want: filepath.Join(home, "state.db")},
		"explicit":     {state: StateConfig{Backend: "file", Path: "/srv/state.json"}, want: "/srv/state.json"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.State = tt.state
			if got := cfg.StatePath(); got != tt.want {
				t.Errorf("StatePath() = %q, want %q", got, tt.want)
			}
			if opts := cfg.StateOptions(); opts.Path != tt.want || opts.Backend != tt.state.Backend {
				t.Errorf("StateOptions() = %+v", opts)
			}
		})
	}
}
