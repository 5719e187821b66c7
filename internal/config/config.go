// Package config resolves csae configuration.
//
// Values are layered, later layers winning:
//
//	built-in defaults
//	$CSAE_HOME/config.yaml
//	.env in the working directory
//	process environment (CSAE_*)
//
// Command-line flags are applied on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvHome            = "CSAE_HOME"
	EnvStore           = "CSAE_STORE"
	EnvHistoryMaxSteps = "CSAE_HISTORY_MAX_STEPS"
	EnvUserAgent       = "CSAE_USER_AGENT"
	EnvChromeBin       = "CSAE_CHROME_BIN"
)

const (
	defaultMaxSteps  = 50
	defaultTimeout   = 30 * time.Second
	defaultMaxBytes  = 10 << 20
	defaultUserAgent = "csae/dev (+https://github.com/csae-toolkit/csae)"
	fileName         = "config.yaml"
)

// Config is the resolved csae configuration.
type Config struct {
	// Home is the directory holding config.yaml and the default store.
	Home    string        `yaml:"-"`
	Store   string        `yaml:"store"`
	Output  string        `yaml:"output"`
	History HistoryConfig `yaml:"history"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Browser BrowserConfig `yaml:"browser"`
}

// HistoryConfig controls the undo/redo timeline.
type HistoryConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

// FetchConfig controls plain HTTP document loading.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
}

// BrowserConfig controls headless Chrome rendering.
type BrowserConfig struct {
	Bin    string `yaml:"bin"`
	Render bool   `yaml:"render"`
	// DisableStealth opens plain tabs instead of stealth-patched ones.
	DisableStealth bool `yaml:"disable_stealth"`
}

// Loader reads configuration. The zero value reads the real environment
// and ./.env.
type Loader struct {
	Getenv  func(string) string
	DotEnv  string
	HomeDir func() (string, error)
}

// Load resolves configuration from the process environment.
func Load() (*Config, error) {
	return Loader{}.Load()
}

// Load resolves configuration using l's sources.
func (l Loader) Load() (*Config, error) {
	if l.Getenv == nil {
		l.Getenv = os.Getenv
	}
	if l.DotEnv == "" {
		l.DotEnv = ".env"
	}
	if l.HomeDir == nil {
		l.HomeDir = defaultHome
	}

	dotenv, err := godotenv.Read(l.DotEnv)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", l.DotEnv, err)
	}
	lookup := func(key string) string {
		if v := l.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	cfg := &Config{Home: lookup(EnvHome)}
	if cfg.Home == "" {
		if cfg.Home, err = l.HomeDir(); err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
	}

	if err := cfg.readFile(filepath.Join(cfg.Home, fileName)); err != nil {
		return nil, err
	}

	if v := lookup(EnvStore); v != "" {
		cfg.Store = v
	}
	if v := lookup(EnvUserAgent); v != "" {
		cfg.Fetch.UserAgent = v
	}
	if v := lookup(EnvChromeBin); v != "" {
		cfg.Browser.Bin = v
	}
	if v := lookup(EnvHistoryMaxSteps); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvHistoryMaxSteps, v, err)
		}
		cfg.History.MaxSteps = n
	}

	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Store == "" {
		c.Store = filepath.Join(c.Home, "csae.db")
	}
	if c.History.MaxSteps == 0 {
		c.History.MaxSteps = defaultMaxSteps
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = defaultTimeout
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = defaultMaxBytes
	}
	if c.Output == "" {
		c.Output = "text"
	}
}

// Validate reports the first invalid value.
func (c *Config) Validate() error {
	if c.History.MaxSteps < 1 {
		return fmt.Errorf("history.max_steps must be at least 1, got %d", c.History.MaxSteps)
	}
	if c.Output != "text" && c.Output != "json" {
		return fmt.Errorf("output must be text or json, got %q", c.Output)
	}
	return nil
}

// Path returns the location of the YAML file for this configuration.
func (c *Config) Path() string {
	return filepath.Join(c.Home, fileName)
}

func defaultHome() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "csae"), nil
}
