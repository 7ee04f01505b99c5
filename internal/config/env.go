package config

import "os"

// Environment variable names for overrides. STORJ_BRIDGE and STORJ_CAINFO are
// shared with other bridge clients.
const (
	EnvConfig      = "STORJ_GO_CONFIG"
	EnvBridge      = "STORJ_BRIDGE"
	EnvCAInfo      = "STORJ_CAINFO"
	EnvDownloadDir = "STORJ_GO_DOWNLOAD_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath  string // STORJ_GO_CONFIG: override config file path
	BridgeURL   string // STORJ_BRIDGE: bridge endpoint
	CAFile      string // STORJ_CAINFO: extra CA bundle
	DownloadDir string // STORJ_GO_DOWNLOAD_DIR: download directory
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:  os.Getenv(EnvConfig),
		BridgeURL:   os.Getenv(EnvBridge),
		CAFile:      os.Getenv(EnvCAInfo),
		DownloadDir: os.Getenv(EnvDownloadDir),
	}
}
