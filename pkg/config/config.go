// Package config loads per-project drover configuration from
// .drover/drover.toml and defines the project data layout under .drover/.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DataDirName is the per-project state directory.
const DataDirName = ".drover"

// ConfigFileName is the config file inside the data directory.
const ConfigFileName = "drover.toml"

// ErrNotInitialized means the project has no .drover directory yet.
var ErrNotInitialized = errors.New("project is not initialized (run init first)")

// Config is the full drover.toml document.
type Config struct {
	Agent AgentConfig `toml:"agent"`
	Loop  LoopConfig  `toml:"loop"`
	Plan  PlanConfig  `toml:"plan"`
	Gates []GateEntry `toml:"gates"`
}

// AgentConfig selects the coding agent that build sessions drive.
type AgentConfig struct {
	Type    string `toml:"type"`
	Model   string `toml:"model,omitempty"`
	Verbose bool   `toml:"verbose,omitempty"`
}

// LoopConfig bounds the build loop.
type LoopConfig struct {
	MaxIterations    int      `toml:"max_iterations"`
	MaxRetries       int      `toml:"max_retries"`
	IterationTimeout duration `toml:"iteration_timeout"`
	Cooldown         duration `toml:"cooldown"`
	GracePeriod      duration `toml:"grace_period"`
}

// PlanConfig configures the planning model.
type PlanConfig struct {
	Model         string `toml:"model"`
	ThinkingLevel string `toml:"thinking_level,omitempty"`
}

// GateEntry is one verification command, run in config order.
type GateEntry struct {
	Name     string `toml:"name,omitempty"`
	Command  string `toml:"command"`
	Required bool   `toml:"required"`
}

// duration parses TOML strings like "20m" into time.Duration.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default loop settings.
const (
	DefaultMaxIterations    = 50
	DefaultMaxRetries       = 3
	DefaultIterationTimeout = 20 * time.Minute
	DefaultCooldown         = 2 * time.Second
	DefaultGracePeriod      = 5 * time.Second
)

// DefaultAgentType is used when no agent is configured.
const DefaultAgentType = "claude"

// DefaultPlanModel is the planning model identifier.
const DefaultPlanModel = "gemini-2.5-pro"

// Default returns the configuration a fresh init writes.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Type: DefaultAgentType,
		},
		Loop: LoopConfig{
			MaxIterations:    DefaultMaxIterations,
			MaxRetries:       DefaultMaxRetries,
			IterationTimeout: duration(DefaultIterationTimeout),
			Cooldown:         duration(DefaultCooldown),
			GracePeriod:      duration(DefaultGracePeriod),
		},
		Plan: PlanConfig{
			Model: DefaultPlanModel,
		},
		Gates: nil,
	}
}

// Load reads .drover/drover.toml under projectDir, merged over defaults.
// A project without a .drover directory is not initialized.
func Load(projectDir string) (*Config, error) {
	path := filepath.Join(projectDir, DataDirName, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ConfigFileName, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults restores required values an explicit config zeroed out.
func (c *Config) applyDefaults() {
	if c.Agent.Type == "" {
		c.Agent.Type = DefaultAgentType
	}
	if c.Loop.MaxIterations <= 0 {
		c.Loop.MaxIterations = DefaultMaxIterations
	}
	if c.Loop.MaxRetries <= 0 {
		c.Loop.MaxRetries = DefaultMaxRetries
	}
	if c.Loop.IterationTimeout <= 0 {
		c.Loop.IterationTimeout = duration(DefaultIterationTimeout)
	}
	if c.Loop.Cooldown < 0 {
		c.Loop.Cooldown = duration(DefaultCooldown)
	}
	if c.Loop.GracePeriod <= 0 {
		c.Loop.GracePeriod = duration(DefaultGracePeriod)
	}
	if c.Plan.Model == "" {
		c.Plan.Model = DefaultPlanModel
	}
}

// Save writes the config as TOML, creating the data directory if needed.
func Save(cfg *Config, projectDir string) error {
	dir := filepath.Join(projectDir, DataDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Init creates the .drover layout with a default config. Re-running init
// on an initialized project is an error.
func Init(projectDir string) (*Config, error) {
	dir := filepath.Join(projectDir, DataDirName)
	if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
		return nil, fmt.Errorf("already initialized: %s exists", filepath.Join(DataDirName, ConfigFileName))
	}

	cfg := Default()
	if err := Save(cfg, projectDir); err != nil {
		return nil, err
	}
	for _, sub := range []string{"logs", "memory", "specs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return cfg, nil
}
