// Package config loads repairctl's configuration: defaults, layered under
// an optional TOML file, layered under environment variables (env wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/simjay/celor/internal/core"
	"github.com/simjay/celor/internal/synth"
	"github.com/simjay/celor/pkg/logger"
)

// Config holds all configuration for repairctl: the bank's on-disk
// location, the proposer's transport settings, default synthesis budgets,
// logging, and the ops/watch surfaces.
type Config struct {
	Bank     BankConfig     `toml:"bank"`
	Proposer ProposerConfig `toml:"proposer"`
	Budgets  BudgetsConfig  `toml:"budgets"`
	Log      logger.Config  `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Watch    WatchConfig    `toml:"watch"`
}

// BankConfig configures the repair bank's file-backed store.
type BankConfig struct {
	Path string `toml:"path"`
}

// ProposerConfig configures the remote template proposer client.
type ProposerConfig struct {
	Endpoint string        `toml:"endpoint"`
	Timeout  time.Duration `toml:"-"`
	TimeoutS int           `toml:"timeout_seconds"`
}

// BudgetsConfig mirrors synth.Budgets in a TOML/env-friendly shape.
type BudgetsConfig struct {
	MaxCandidates int           `toml:"max_candidates"`
	MaxIters      int           `toml:"max_iters"`
	Timeout       time.Duration `toml:"-"`
	TimeoutS      int           `toml:"timeout_seconds"`
}

// ToSynthBudgets converts to the synth package's runtime type.
func (b BudgetsConfig) ToSynthBudgets() synth.Budgets {
	return synth.Budgets{
		MaxCandidates: b.MaxCandidates,
		MaxIters:      b.MaxIters,
		Timeout:       b.Timeout,
	}
}

// ServerConfig configures the `serve` subcommand's ops HTTP surface.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// WatchConfig configures the `watch` subcommand.
type WatchConfig struct {
	Dir      string `toml:"dir"`
	Schedule string `toml:"schedule"`
}

func defaults() *Config {
	return &Config{
		Bank: BankConfig{Path: "repair-bank.json"},
		Proposer: ProposerConfig{
			Endpoint: "",
			Timeout:  10 * time.Second,
			TimeoutS: 10,
		},
		Budgets: BudgetsConfig{
			MaxCandidates: 500,
			MaxIters:      50,
			Timeout:       30 * time.Second,
			TimeoutS:      30,
		},
		Log: logger.Config{Level: "info", Format: "text", Output: "stdout"},
		Server: ServerConfig{
			Addr: ":8090",
		},
		Watch: WatchConfig{
			Dir:      "",
			Schedule: "@every 5m",
		},
	}
}

// Load builds a Config: defaults, overlaid by an optional TOML file at
// path (or REPAIRCTL_CONFIG, or ./repairctl.toml if path is empty), then
// overlaid by environment variables. A .env file in the current directory
// is loaded first, if present, so local runs can set REPAIRCTL_* vars
// without exporting them.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	resolved := resolveConfigPath(path)
	if resolved != "" {
		if _, err := toml.DecodeFile(resolved, cfg); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()
	cfg.Proposer.Timeout = time.Duration(cfg.Proposer.TimeoutS) * time.Second
	cfg.Budgets.Timeout = time.Duration(cfg.Budgets.TimeoutS) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("REPAIRCTL_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("repairctl.toml"); err == nil {
		return "repairctl.toml"
	}
	return ""
}

func (c *Config) applyEnv() {
	envOverride("REPAIRCTL_BANK_PATH", &c.Bank.Path)
	envOverride("REPAIRCTL_PROPOSER_ENDPOINT", &c.Proposer.Endpoint)
	envOverrideInt("REPAIRCTL_PROPOSER_TIMEOUT_SECONDS", &c.Proposer.TimeoutS)
	envOverrideInt("REPAIRCTL_MAX_CANDIDATES", &c.Budgets.MaxCandidates)
	envOverrideInt("REPAIRCTL_MAX_ITERS", &c.Budgets.MaxIters)
	envOverrideInt("REPAIRCTL_BUDGET_TIMEOUT_SECONDS", &c.Budgets.TimeoutS)
	envOverride("REPAIRCTL_LOG_LEVEL", &c.Log.Level)
	envOverride("REPAIRCTL_LOG_FORMAT", &c.Log.Format)
	envOverride("REPAIRCTL_LOG_OUTPUT", &c.Log.Output)
	envOverride("REPAIRCTL_SERVER_ADDR", &c.Server.Addr)
	envOverride("REPAIRCTL_WATCH_DIR", &c.Watch.Dir)
	envOverride("REPAIRCTL_WATCH_SCHEDULE", &c.Watch.Schedule)
}

// Validate checks that the loaded configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Budgets.MaxCandidates <= 0 {
		return core.NewValidationError("budgets.max_candidates", fmt.Sprintf("must be positive, got %d", c.Budgets.MaxCandidates))
	}
	if c.Budgets.MaxIters <= 0 {
		return core.NewValidationError("budgets.max_iters", fmt.Sprintf("must be positive, got %d", c.Budgets.MaxIters))
	}
	if c.Budgets.Timeout <= 0 {
		return core.NewValidationError("budgets.timeout_seconds", fmt.Sprintf("must be positive, got %d", c.Budgets.TimeoutS))
	}
	if c.Bank.Path == "" {
		return core.RequiredError("bank.path")
	}
	return nil
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
