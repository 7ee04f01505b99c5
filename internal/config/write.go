package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by CreateDefault when the file is already there.
var ErrConfigExists = errors.New("config file already exists")

// configTemplate is the config file written by "config init". Every setting
// is present as a commented-out default so users can discover each option.
// Later edits through SetKey are line-level and keep these comments.
const configTemplate = `# storj-go configuration

[bridge]
# Bridge API endpoint (STORJ_BRIDGE overrides)
# url = "https://api.storj.io"
# user_agent = ""
# timeout = "30s"
# Extra CA bundle in PEM format (STORJ_CAINFO overrides)
# ca_file = ""

[session]
# How often queued callbacks are delivered
# poll_interval = "10ms"
# Concurrent requests for multi-item operations
# parallel_requests = 8
# Follow credential changes made by other processes
# watch_keys = false

[transfers]
# download_dir = ""
# Examples: "0" (unlimited), "5MB/s", "512KiB/s"
# bandwidth_limit = "0"

[logging]
# log_level = "info"
# auto picks text on a terminal and JSON otherwise
# log_format = "auto"

[history]
# enabled = true
`

// CreateDefault writes the commented default config to path. Parent
// directories are created as needed.
func CreateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// SetKey sets section.key = value in the config file at path, creating the
// file and the section when missing. An existing key line in the section is
// replaced in place; otherwise the key is inserted after the section header.
// The result must still load and validate.
func SetKey(path, section, key, value string) error {
	fields, ok := knownKeys[section]
	if !ok {
		return suggest("unknown config section", section, knownSections)
	}

	if !slices.Contains(fields, key) {
		return suggest(fmt.Sprintf("unknown config key in [%s]", section), key, fields)
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	newLine := fmt.Sprintf("%s = %s", key, formatTOMLValue(key, value))

	headerLine := findSectionHeader(lines, section)
	if headerLine < 0 {
		content := strings.TrimRight(string(data), "\n")
		if content != "" {
			content += "\n\n"
		}

		lines = strings.Split(content+fmt.Sprintf("[%s]\n%s\n", section, newLine), "\n")
	} else {
		lines = setKeyInSection(lines, headerLine, key, newLine)
	}

	content := strings.Join(lines, "\n")

	if err := validateContent(content); err != nil {
		return err
	}

	return atomicWriteFile(path, []byte(content))
}

// validateContent loads content through the normal path so SetKey never
// leaves behind a file that Load would reject.
func validateContent(content string) error {
	dir, err := os.MkdirTemp("", "storj-go-config-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	tmp := filepath.Join(dir, configFileName)
	if err := os.WriteFile(tmp, []byte(content), configFilePermissions); err != nil {
		return fmt.Errorf("writing temp config: %w", err)
	}

	_, err = Load(tmp)

	return err
}

// findSectionHeader locates the line index of a section header, or -1.
func findSectionHeader(lines []string, section string) int {
	header := "[" + section + "]"

	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			return i
		}
	}

	return -1
}

// findSectionEnd returns the index of the first line after the section's
// own content. Blank lines and comments that precede the next section header
// belong to the next section's preamble, not this section's content.
func findSectionEnd(lines []string, sectionStart int) int {
	nextHeader := len(lines)

	for i := sectionStart; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "[") {
			nextHeader = i

			break
		}
	}

	end := nextHeader
	for end > sectionStart {
		trimmed := strings.TrimSpace(lines[end-1])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			end--

			continue
		}

		break
	}

	return end
}

// setKeyInSection either replaces an existing key line or inserts a new
// one after the section header.
func setKeyInSection(lines []string, headerLine int, key, newLine string) []string {
	sectionEnd := findSectionEnd(lines, headerLine+1)
	keyPrefix := key + " "
	keyPrefixEq := key + "="

	for i := headerLine + 1; i < sectionEnd; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, keyPrefix) || strings.HasPrefix(trimmed, keyPrefixEq) {
			lines[i] = newLine

			return lines
		}
	}

	inserted := make([]string, 0, len(lines)+1)
	inserted = append(inserted, lines[:headerLine+1]...)
	inserted = append(inserted, newLine)
	inserted = append(inserted, lines[headerLine+1:]...)

	return inserted
}

// bareKeys are the non-string settings, written without quotes.
var bareKeys = map[string]bool{
	"parallel_requests": true,
	"watch_keys":        true,
	"enabled":           true,
}

// formatTOMLValue formats a value for TOML output: bare for boolean and
// integer keys, quoted otherwise.
func formatTOMLValue(key, value string) string {
	if bareKeys[key] {
		return value
	}

	return strconv.Quote(value)
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it to the target path, so a crash never leaves a
// partial config file. Parent directories are created as needed.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	// Clean up the temp file on any error path.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
