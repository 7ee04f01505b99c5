package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tonimelisma/storj-go/internal/endpoint"
)

// Validation range constants.
const (
	minParallelRequests = 1
	maxParallelRequests = 64
	minPollInterval     = time.Millisecond
	maxPollInterval     = time.Second
	minTimeout          = time.Second
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateBridge(&cfg.Bridge)...)
	errs = append(errs, validateSession(&cfg.Session)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateBridge(b *BridgeConfig) []error {
	var errs []error

	if _, err := endpoint.Parse(b.URL); err != nil {
		errs = append(errs, fmt.Errorf("url: %w", err))
	}

	errs = append(errs, validateDurationMin("timeout", b.Timeout, minTimeout)...)

	return errs
}

func validateSession(s *SessionConfig) []error {
	var errs []error

	if s.ParallelRequests < minParallelRequests || s.ParallelRequests > maxParallelRequests {
		errs = append(errs, fmt.Errorf("parallel_requests: must be between %d and %d, got %d",
			minParallelRequests, maxParallelRequests, s.ParallelRequests))
	}

	d, err := time.ParseDuration(s.PollInterval)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("poll_interval: invalid duration %q: %w", s.PollInterval, err))
	case d < minPollInterval || d > maxPollInterval:
		errs = append(errs, fmt.Errorf("poll_interval: must be between %s and %s, got %s",
			minPollInterval, maxPollInterval, d))
	}

	return errs
}

func validateTransfers(t *TransfersConfig) []error {
	if _, err := ParseRate(t.BandwidthLimit); err != nil {
		return []error{fmt.Errorf("bandwidth_limit: %w", err)}
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}
