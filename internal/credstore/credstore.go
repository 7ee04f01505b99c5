// Package credstore persists bridge credentials on disk, one encrypted file
// per bridge host. Files are sealed with a key derived from a user
// passphrase; the empty passphrase is allowed and still encrypts.
package credstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tonimelisma/storj-go/internal/keys"
)

// FilePerms restricts credential files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the credentials directory.
const DirPerms = 0o700

// formatVersion is written into every file; Read rejects other versions.
const formatVersion = 1

// argon2id parameters.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	saltSize   = 16
)

var (
	// ErrNotFound is returned by Read when no credentials exist for the host.
	ErrNotFound = errors.New("credstore: credentials not found")

	// ErrWrongPassphrase is returned by Read when the file cannot be opened
	// with the given passphrase, or has been tampered with.
	ErrWrongPassphrase = errors.New("credstore: wrong passphrase or corrupted file")
)

// sealedFile is the on-disk format.
type sealedFile struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Store is a directory of sealed credential files keyed by host.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{dir: dir, logger: logger}
}

// Dir returns the directory holding credential files.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file that holds the credentials for host.
func (s *Store) Path(host string) string {
	return filepath.Join(s.dir, fileName(host))
}

// fileName maps a host key to a file name, neutralizing path separators.
func fileName(host string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(host)

	return safe + ".json"
}

// Exists reports whether credentials are stored for host.
func (s *Store) Exists(host string) bool {
	_, err := os.Stat(s.Path(host))

	return err == nil
}

// Write seals k with passphrase and stores it atomically (write-to-temp +
// rename) with 0600 permissions, replacing any previous credentials.
func (s *Store) Write(host string, k keys.Keys, passphrase string) error {
	plaintext, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("credstore: encoding: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("credstore: generating salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return fmt.Errorf("credstore: creating cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("credstore: generating nonce: %w", err)
	}

	sf := sealedFile{
		Version:    formatVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(host)),
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: encoding: %w", err)
	}

	if err := writeAtomic(s.Path(host), data); err != nil {
		return err
	}

	s.logger.Info("stored credentials", slog.String("host", host), slog.Any("keys", k))

	return nil
}

// Read opens the credentials for host with passphrase.
func (s *Store) Read(host, passphrase string) (keys.Keys, error) {
	path := s.Path(host)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return keys.Keys{}, ErrNotFound
	}

	if err != nil {
		return keys.Keys{}, fmt.Errorf("credstore: reading %s: %w", path, err)
	}

	var sf sealedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return keys.Keys{}, fmt.Errorf("credstore: decoding %s: %w", path, err)
	}

	if sf.Version != formatVersion {
		return keys.Keys{}, fmt.Errorf("credstore: %s has unsupported version %d", path, sf.Version)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, sf.Salt))
	if err != nil {
		return keys.Keys{}, fmt.Errorf("credstore: creating cipher: %w", err)
	}

	if len(sf.Nonce) != aead.NonceSize() {
		return keys.Keys{}, ErrWrongPassphrase
	}

	plaintext, err := aead.Open(nil, sf.Nonce, sf.Ciphertext, []byte(host))
	if err != nil {
		return keys.Keys{}, ErrWrongPassphrase
	}

	var k keys.Keys
	if err := json.Unmarshal(plaintext, &k); err != nil {
		return keys.Keys{}, fmt.Errorf("credstore: decoding credentials: %w", err)
	}

	return k, nil
}

// Delete removes the credentials for host. Deleting absent credentials is
// not an error.
func (s *Store) Delete(host string) error {
	err := os.Remove(s.Path(host))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("credstore: deleting: %w", err)
	}

	s.logger.Info("deleted credentials", slog.String("host", host))

	return nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
}

// writeAtomic writes data to a temp file in the target directory, fsyncs it
// and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("credstore: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".keys-*.tmp")
	if err != nil {
		return fmt.Errorf("credstore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credstore: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credstore: renaming: %w", err)
	}

	success = true

	return nil
}
