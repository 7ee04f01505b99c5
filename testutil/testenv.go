// Package testutil provides shared test environment helpers for E2E tests.
// It depends only on stdlib so that E2E tests (which cannot import
// internal/) can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, "\"'")

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist crashes the process unless STORJ_ALLOWED_TEST_BRIDGES is
// set and lists the bridge named by bridgeEnvVar. Tests create and delete
// buckets, so they must never run against an account by accident.
func ValidateAllowlist(bridgeEnvVar string) {
	allowlist := os.Getenv("STORJ_ALLOWED_TEST_BRIDGES")
	if allowlist == "" {
		fmt.Fprintln(os.Stderr, "FATAL: STORJ_ALLOWED_TEST_BRIDGES not set")
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintln(os.Stderr, "Example: STORJ_ALLOWED_TEST_BRIDGES=http://localhost:6382")
		os.Exit(1)
	}

	bridge := os.Getenv(bridgeEnvVar)
	if bridge == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", bridgeEnvVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == bridge {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in STORJ_ALLOWED_TEST_BRIDGES=%q\n",
		bridgeEnvVar, bridge, allowlist)
	os.Exit(1)
}

// RequireEnv returns the values of the named variables, crashing if any is
// unset.
func RequireEnv(names ...string) map[string]string {
	values := make(map[string]string, len(names))

	for _, name := range names {
		v := os.Getenv(name)
		if v == "" {
			fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", name)
			os.Exit(1)
		}

		values[name] = v
	}

	return values
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// IsolateHome points HOME and the XDG directories at fresh directories under
// a new temp root, so tests never touch real config, keys or history.
// Returns the temp root; the caller removes it.
func IsolateHome(prefix string) (string, error) {
	root, err := os.MkdirTemp("", prefix)
	if err != nil {
		return "", fmt.Errorf("creating isolation temp dir: %w", err)
	}

	dirs := map[string]string{
		"HOME":            filepath.Join(root, "home"),
		"XDG_CONFIG_HOME": filepath.Join(root, "config"),
		"XDG_DATA_HOME":   filepath.Join(root, "data"),
		"XDG_CACHE_HOME":  filepath.Join(root, "cache"),
	}

	for env, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			os.RemoveAll(root)
			return "", fmt.Errorf("creating dir %s: %w", dir, err)
		}

		os.Setenv(env, dir)
	}

	return root, nil
}
