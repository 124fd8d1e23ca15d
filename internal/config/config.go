package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/example/storyorder/internal/core/resolve"
	"github.com/example/storyorder/internal/core/storyfile"
)

// Defaults
const (
	DefaultDataPath = "data/ArknightsStoryJson"
	DefaultLocale   = "ja_JP"
	configDir       = ".storyorder"
	configFile      = "config.yaml"
	currentVersion  = "1"
)

// Config is the storyorder configuration. File values are overlaid by the
// STORYORDER_* environment variables.
type Config struct {
	Version     string              `yaml:"version"`
	DataPath    string              `yaml:"data_path" env:"STORYORDER_DATA_PATH"`
	Locale      string              `yaml:"locale" env:"STORYORDER_LOCALE"`
	DBPath      string              `yaml:"db_path,omitempty" env:"STORYORDER_DB_PATH"`
	LogLevel    string              `yaml:"log_level,omitempty" env:"STORYORDER_LOG_LEVEL"`
	Concurrency int                 `yaml:"concurrency,omitempty" env:"STORYORDER_CONCURRENCY"`
	PhaseLabels PhaseLabels         `yaml:"phase_labels,omitempty"`
	Overrides   map[string]Override `yaml:"overrides,omitempty"`
}

// PhaseLabels replaces the entry labels; empty fields keep the default.
type PhaseLabels struct {
	PreBattle  string `yaml:"pre_battle,omitempty"`
	PostBattle string `yaml:"post_battle,omitempty"`
	Interlude  string `yaml:"interlude,omitempty"`
}

// Override is a per-event exception layered over the built-in ones.
type Override struct {
	Family        string   `yaml:"family,omitempty"` // STANDARD, MINISTORY, TYPE_ACT4D0, MAIN_STORY
	StagePrefixes []string `yaml:"stage_prefixes,omitempty"`
	TokenPrefix   string   `yaml:"token_prefix,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:     currentVersion,
		DataPath:    DefaultDataPath,
		Locale:      DefaultLocale,
		Concurrency: runtime.GOMAXPROCS(0),
	}
}

// LoadConfig reads .storyorder/config.yaml from the specified directory and
// applies the environment overlay. A missing file yields the defaults.
func LoadConfig(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, configDir, configFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes config.yaml to directory
func SaveConfig(dir string, cfg *Config) error {
	cfgDir := filepath.Join(dir, configDir)
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", configDir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(cfgDir, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Exists reports whether dir already has a config file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, configDir, configFile))
	return err == nil
}

var families = []storyfile.Family{
	storyfile.FamilyStandard,
	storyfile.FamilyMiniStory,
	storyfile.FamilyTypeAct4d0,
	storyfile.FamilyMainStory,
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return errors.New("data_path must not be empty")
	}
	if c.Locale == "" {
		return errors.New("locale must not be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	for id, o := range c.Overrides {
		if o.Family != "" && !slices.Contains(families, storyfile.Family(o.Family)) {
			return fmt.Errorf("override %s: unknown family %q", id, o.Family)
		}
	}
	return nil
}

// LocaleRoot returns the data directory of the configured locale.
func (c *Config) LocaleRoot() string {
	return filepath.Join(c.DataPath, c.Locale)
}

// Policy returns the built-in event exceptions with the configured
// overrides layered on top.
func (c *Config) Policy() storyfile.Policy {
	extra := storyfile.Policy{Events: make(map[string]storyfile.Override, len(c.Overrides))}
	for id, o := range c.Overrides {
		extra.Events[id] = storyfile.Override{
			Family:        storyfile.Family(o.Family),
			StagePrefixes: slices.Clone(o.StagePrefixes),
			TokenPrefix:   o.TokenPrefix,
		}
	}
	return storyfile.DefaultPolicy().Merge(extra)
}

// Labels returns the phase labels with defaults for unset fields.
func (c *Config) Labels() resolve.PhaseLabels {
	l := resolve.DefaultPhaseLabels()
	if c.PhaseLabels.PreBattle != "" {
		l.PreBattle = c.PhaseLabels.PreBattle
	}
	if c.PhaseLabels.PostBattle != "" {
		l.PostBattle = c.PhaseLabels.PostBattle
	}
	if c.PhaseLabels.Interlude != "" {
		l.Interlude = c.PhaseLabels.Interlude
	}
	return l
}

// ResolveDBPath returns the configured database path, or the default under
// the home directory.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	return DefaultDBPath()
}

// DefaultDBPath returns ~/.storyorder/storyorder.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDir, "storyorder.db"), nil
}
