// Package transfer moves file content between the local filesystem and the
// bridge: downloads land in a ".partial" file that is renamed into place only
// on success, uploads stream from disk, and both share one bandwidth limit.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/entry"
)

// partialSuffix marks in-progress downloads.
const partialSuffix = ".partial"

// Downloader streams a remote file by ID. Satisfied by *bridge.Client.
type Downloader interface {
	Download(ctx context.Context, bucketID, fileID string, w io.Writer, progress bridge.ProgressFunc) (int64, error)
}

// Uploader streams content into a new remote file. Satisfied by
// *bridge.Client.
type Uploader interface {
	Upload(
		ctx context.Context, bucketID, name string, r io.Reader, size int64, progress bridge.ProgressFunc,
	) (entry.Entry, error)
}

// DownloadOpts configures a single download operation.
type DownloadOpts struct {
	RemoteSize int64 // expected size; 0 = don't validate
	Progress   bridge.ProgressFunc
}

// UploadOpts configures a single upload operation.
type UploadOpts struct {
	Progress bridge.ProgressFunc
}

// DownloadResult reports the outcome of a successful download.
type DownloadResult struct {
	Path      string
	Size      int64
	LocalHash string // hex SHA-256 of the written content
}

// UploadResult reports the outcome of a successful upload.
type UploadResult struct {
	File      entry.Entry
	Size      int64
	LocalHash string
}

// Manager performs file-level transfers on top of a bridge client.
type Manager struct {
	downloads Downloader
	uploads   Uploader
	limiter   *BandwidthLimiter // nil = unlimited
	logger    *slog.Logger
}

// NewManager creates a Manager. limiter may be nil.
func NewManager(dl Downloader, ul Uploader, limiter *BandwidthLimiter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Manager{
		downloads: dl,
		uploads:   ul,
		limiter:   limiter,
		logger:    logger,
	}
}

// DownloadToFile downloads a remote file to targetPath with .partial safety:
// content is written to targetPath+".partial" and renamed over targetPath
// only after the transfer completed. On any failure, cancellation included,
// the partial file is removed.
func (m *Manager) DownloadToFile(
	ctx context.Context, bucketID, fileID, targetPath string, opts DownloadOpts,
) (*DownloadResult, error) {
	if targetPath == "" {
		return nil, fmt.Errorf("download: target path must not be empty")
	}

	if fileID == "" {
		return nil, fmt.Errorf("download: file ID must not be empty")
	}

	m.logger.Debug("DownloadToFile",
		slog.String("bucket_id", bucketID),
		slog.String("file_id", fileID),
		slog.String("target", targetPath),
	)

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o700); err != nil { //nolint:mnd // owner-only dir perms
		return nil, fmt.Errorf("creating parent dir for %s: %w", targetPath, err)
	}

	partialPath := targetPath + partialSuffix

	f, err := os.OpenFile(partialPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:mnd // owner-only file perms
	if err != nil {
		return nil, fmt.Errorf("creating partial file %s: %w", partialPath, err)
	}

	h := sha256.New()
	w := wrapWriter(m.limiter, ctx, io.MultiWriter(f, h))

	size, err := m.downloads.Download(ctx, bucketID, fileID, w, opts.Progress)
	if err != nil {
		if closeErr := f.Close(); closeErr != nil {
			m.logger.Warn("failed to close partial file after download error",
				slog.String("path", partialPath), slog.String("error", closeErr.Error()))
		}

		os.Remove(partialPath)

		return nil, fmt.Errorf("downloading to %s: %w", partialPath, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(partialPath)
		return nil, fmt.Errorf("closing partial file %s: %w", partialPath, err)
	}

	if opts.RemoteSize > 0 && size != opts.RemoteSize {
		m.logger.Warn("download size mismatch",
			slog.String("target", targetPath),
			slog.Int64("local_size", size),
			slog.Int64("remote_size", opts.RemoteSize),
		)
	}

	if err := os.Rename(partialPath, targetPath); err != nil {
		os.Remove(partialPath)
		return nil, fmt.Errorf("renaming partial to %s: %w", targetPath, err)
	}

	m.logger.Debug("download complete",
		slog.String("target", targetPath),
		slog.Int64("size", size),
	)

	return &DownloadResult{
		Path:      targetPath,
		Size:      size,
		LocalHash: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// validateUploadParams checks required upload parameters up front to produce
// clear error messages instead of confusing downstream failures.
func validateUploadParams(bucketID, name, localPath string) error {
	if bucketID == "" {
		return fmt.Errorf("upload: bucket ID must not be empty")
	}

	if name == "" {
		return fmt.Errorf("upload: file name must not be empty")
	}

	if localPath == "" {
		return fmt.Errorf("upload: local path must not be empty")
	}

	return nil
}

// UploadFile uploads the regular file at localPath as name into bucketID.
func (m *Manager) UploadFile(
	ctx context.Context, bucketID, name, localPath string, opts UploadOpts,
) (*UploadResult, error) {
	if err := validateUploadParams(bucketID, name, localPath); err != nil {
		return nil, err
	}

	m.logger.Debug("UploadFile",
		slog.String("bucket_id", bucketID),
		slog.String("path", localPath),
	)

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s for upload: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localPath, err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("upload: %s is not a regular file", localPath)
	}

	h := sha256.New()
	r := wrapReader(m.limiter, ctx, io.TeeReader(f, h))

	file, err := m.uploads.Upload(ctx, bucketID, name, r, info.Size(), opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", localPath, err)
	}

	m.logger.Debug("upload complete",
		slog.String("path", localPath),
		slog.String("file_id", file.ID),
		slog.Int64("size", info.Size()),
	)

	return &UploadResult{
		File:      file,
		Size:      info.Size(),
		LocalHash: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
