package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ConfigPath picks the config file location: CLI flag, then environment,
// then the platform default.
func ConfigPath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := ConfigPath(env, cli)

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	if env.BridgeURL != "" {
		cfg.Bridge.URL = env.BridgeURL
	}

	if env.CAFile != "" {
		cfg.Bridge.CAFile = env.CAFile
	}

	if env.DownloadDir != "" {
		cfg.Transfers.DownloadDir = env.DownloadDir
	}

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.BridgeURL != nil {
		cfg.Bridge.URL = *cli.BridgeURL
	}

	if cli.DownloadDir != nil {
		cfg.Transfers.DownloadDir = *cli.DownloadDir
	}

	// 5. Validate again: env and flags bypass the file checks.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolve(cfg, cfgPath), nil
}

// resolve converts a validated Config into its effective form. Durations
// were already checked by Validate.
func resolve(cfg *Config, cfgPath string) *Resolved {
	timeout, _ := time.ParseDuration(cfg.Bridge.Timeout)
	poll, _ := time.ParseDuration(cfg.Session.PollInterval)

	return &Resolved{
		ConfigPath:       cfgPath,
		DataDir:          DefaultDataDir(),
		BridgeURL:        cfg.Bridge.URL,
		UserAgent:        cfg.Bridge.UserAgent,
		Timeout:          timeout,
		CAFile:           expandTilde(cfg.Bridge.CAFile),
		PollInterval:     poll,
		ParallelRequests: cfg.Session.ParallelRequests,
		WatchKeys:        cfg.Session.WatchKeys,
		DownloadDir:      expandTilde(cfg.Transfers.DownloadDir),
		BandwidthLimit:   cfg.Transfers.BandwidthLimit,
		LogLevel:         cfg.Logging.LogLevel,
		LogFormat:        cfg.Logging.LogFormat,
		HistoryEnabled:   cfg.History.Enabled,
	}
}
