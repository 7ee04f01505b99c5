package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, showing
// the effective values after all override layers have been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)

	ew.printf("[bridge]\n")
	ew.printf("  url        = %q\n", r.BridgeURL)

	if r.UserAgent != "" {
		ew.printf("  user_agent = %q\n", r.UserAgent)
	}

	ew.printf("  timeout    = %q\n", r.Timeout.String())

	if r.CAFile != "" {
		ew.printf("  ca_file    = %q\n", r.CAFile)
	}

	ew.printf("\n[session]\n")
	ew.printf("  poll_interval     = %q\n", r.PollInterval.String())
	ew.printf("  parallel_requests = %d\n", r.ParallelRequests)
	ew.printf("  watch_keys        = %t\n", r.WatchKeys)

	ew.printf("\n[transfers]\n")
	ew.printf("  download_dir    = %q\n", r.DownloadDir)
	ew.printf("  bandwidth_limit = %q\n", r.BandwidthLimit)

	ew.printf("\n[logging]\n")
	ew.printf("  log_level  = %q\n", r.LogLevel)
	ew.printf("  log_format = %q\n", r.LogFormat)

	ew.printf("\n[history]\n")
	ew.printf("  enabled = %t\n", r.HistoryEnabled)

	ew.printf("\n# Data\n")
	ew.printf("  keys    = %q\n", r.KeysDir())
	ew.printf("  history = %q\n", r.HistoryPath())

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
