// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for storj-go. Values follow a four-layer
// override chain: defaults -> config file -> environment -> CLI flags.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Bridge    BridgeConfig    `toml:"bridge"`
	Session   SessionConfig   `toml:"session"`
	Transfers TransfersConfig `toml:"transfers"`
	Logging   LoggingConfig   `toml:"logging"`
	History   HistoryConfig   `toml:"history"`
}

// BridgeConfig selects the bridge endpoint and tunes its HTTP client.
// ca_file points at a PEM bundle trusted in addition to the system roots.
type BridgeConfig struct {
	URL       string `toml:"url"`
	UserAgent string `toml:"user_agent"`
	Timeout   string `toml:"timeout"`
	CAFile    string `toml:"ca_file"`
}

// SessionConfig controls the dispatch loop and request fan-out.
type SessionConfig struct {
	PollInterval     string `toml:"poll_interval"`
	ParallelRequests int    `toml:"parallel_requests"`
	WatchKeys        bool   `toml:"watch_keys"`
}

// TransfersConfig controls where downloads land and how fast data moves.
type TransfersConfig struct {
	DownloadDir    string `toml:"download_dir"`
	BandwidthLimit string `toml:"bandwidth_limit"`
}

// LoggingConfig controls log output level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// HistoryConfig controls the transfer history database.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath  string  // --config flag (empty = use default)
	BridgeURL   *string // --bridge flag
	DownloadDir *string // --download-dir flag
}

// Resolved is the effective configuration after all override layers, with
// durations parsed and paths expanded.
type Resolved struct {
	ConfigPath string
	DataDir    string

	BridgeURL string
	UserAgent string
	Timeout   time.Duration
	CAFile    string

	PollInterval     time.Duration
	ParallelRequests int
	WatchKeys        bool

	DownloadDir    string
	BandwidthLimit string

	LogLevel  string
	LogFormat string

	HistoryEnabled bool
}

// KeysDir is the directory holding per-host encrypted credential files.
func (r *Resolved) KeysDir() string {
	return keysDir(r.DataDir)
}

// HistoryPath is the transfer history database file.
func (r *Resolved) HistoryPath() string {
	return historyPath(r.DataDir)
}
