package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/storj-go/internal/entry"
)

// ProgressFunc receives transfer progress: bytes moved so far and the total,
// which is 0 when unknown.
type ProgressFunc func(done, total int64)

// fileNameHeader carries the encrypted remote name of an upload.
const fileNameHeader = "X-File-Name"

// progressWriter counts bytes written through it, reports progress and
// remembers write failures so they can be told apart from read failures.
type progressWriter struct {
	w        io.Writer
	done     int64
	total    int64
	progress ProgressFunc
	err      error
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)

	if err != nil {
		p.err = err
		return n, err
	}

	if p.progress != nil {
		p.progress(p.done, p.total)
	}

	return n, nil
}

// progressReader is the upload-side counterpart of progressWriter.
type progressReader struct {
	r        io.Reader
	done     int64
	total    int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.done += int64(n)

	if n > 0 && p.progress != nil {
		p.progress(p.done, p.total)
	}

	return n, err
}

// Download streams the content of a file to w, reporting progress after
// every write. Returns the number of bytes written.
func (c *Client) Download(
	ctx context.Context, bucketID, fileID string, w io.Writer, progress ProgressFunc,
) (int64, error) {
	c.logger.Info("downloading file",
		slog.String("bucket_id", bucketID),
		slog.String("file_id", fileID),
	)

	resp, err := c.Do(ctx, http.MethodGet, filePath(bucketID, fileID), nil)
	if err != nil {
		return 0, asNotFound(err, CodeBridgeFileNotFound)
	}
	defer resp.Body.Close()

	total := max(resp.ContentLength, 0)
	pw := &progressWriter{w: w, total: total, progress: progress}

	n, copyErr := io.Copy(pw, resp.Body)
	if copyErr != nil {
		if ctx.Err() != nil {
			return n, fmt.Errorf("bridge: download canceled: %w", ctx.Err())
		}

		c.logger.Error("streaming download content failed",
			slog.String("error", copyErr.Error()),
			slog.Int64("bytes_before_error", n),
		)

		if pw.err != nil {
			return n, newError(CodeFileWrite, ErrTransfer, copyErr)
		}

		return n, newError(CodeFileRead, ErrTransfer, copyErr)
	}

	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, newError(CodeFileIntegrity, ErrTransfer,
			fmt.Errorf("received %d bytes, expected %d", n, resp.ContentLength))
	}

	c.logger.Debug("download complete",
		slog.String("bucket_id", bucketID),
		slog.String("file_id", fileID),
		slog.Int64("bytes_written", n),
	)

	return n, nil
}

// Upload streams size bytes from r into a new file called name. Uploads are
// not retried: a partially consumed reader cannot be replayed.
func (c *Client) Upload(
	ctx context.Context, bucketID, name string, r io.Reader, size int64, progress ProgressFunc,
) (entry.Entry, error) {
	c.logger.Info("uploading file",
		slog.String("bucket_id", bucketID),
		slog.Int64("size", size),
	)

	encName, err := c.names.EncryptFileName(bucketID, name)
	if err != nil {
		return entry.Entry{}, err
	}

	body := &progressReader{r: r, total: size, progress: progress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+filesPath(bucketID), body)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("bridge: creating upload request: %w", err)
	}

	req.ContentLength = size
	req.SetBasicAuth(c.user, c.passHash)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(fileNameHeader, encName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return entry.Entry{}, fmt.Errorf("bridge: upload canceled: %w", ctx.Err())
		}

		c.logger.Error("upload request failed", slog.String("error", err.Error()))

		return entry.Entry{}, newError(CodeBridgeRequest, ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		be := responseError(resp)
		if errors.Is(be.Err, ErrConflict) {
			be.Code = CodeBridgeBucketFileExists
		}

		return entry.Entry{}, be
	}

	var raw fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return entry.Entry{}, newError(CodeBridgeJSON, ErrBadResponse, err)
	}

	f := raw.toEntry(bucketID, c.names, c.logger)

	c.logger.Debug("upload complete",
		slog.String("bucket_id", bucketID),
		slog.String("file_id", f.ID),
	)

	return f, nil
}
