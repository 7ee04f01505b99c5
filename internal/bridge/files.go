package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tonimelisma/storj-go/internal/entry"
)

func filesPath(bucketID string) string {
	return "/buckets/" + url.PathEscape(bucketID) + "/files"
}

func filePath(bucketID, fileID string) string {
	return filesPath(bucketID) + "/" + url.PathEscape(fileID)
}

// ListFiles returns the full flat listing of a bucket. There is no server-side
// prefix filtering: directory structure is reconstructed by the caller.
func (c *Client) ListFiles(ctx context.Context, bucketID string) ([]entry.Entry, error) {
	c.logger.Info("listing files", slog.String("bucket_id", bucketID))

	var raw []fileResponse
	if err := c.getJSON(ctx, filesPath(bucketID), &raw); err != nil {
		return nil, asNotFound(err, CodeBridgeBucketNotFound)
	}

	files := make([]entry.Entry, 0, len(raw))
	for i := range raw {
		files = append(files, raw[i].toEntry(bucketID, c.names, c.logger))
	}

	c.logger.Debug("listed files",
		slog.String("bucket_id", bucketID),
		slog.Int("count", len(files)),
	)

	return files, nil
}

// GetFile fetches the metadata of one file.
func (c *Client) GetFile(ctx context.Context, bucketID, fileID string) (entry.Entry, error) {
	c.logger.Info("getting file",
		slog.String("bucket_id", bucketID),
		slog.String("file_id", fileID),
	)

	var raw fileResponse
	if err := c.getJSON(ctx, filePath(bucketID, fileID)+"/info", &raw); err != nil {
		return entry.Entry{}, asNotFound(err, CodeBridgeFileNotFound)
	}

	return raw.toEntry(bucketID, c.names, c.logger), nil
}

// DeleteFile deletes one file.
func (c *Client) DeleteFile(ctx context.Context, bucketID, fileID string) error {
	c.logger.Info("deleting file",
		slog.String("bucket_id", bucketID),
		slog.String("file_id", fileID),
	)

	if err := c.doJSON(ctx, http.MethodDelete, filePath(bucketID, fileID), nil, nil, true); err != nil {
		return asNotFound(err, CodeBridgeFileNotFound)
	}

	return nil
}

// GetFileID resolves a plaintext file name within a bucket to its ID.
func (c *Client) GetFileID(ctx context.Context, bucketID, name string) (string, error) {
	c.logger.Info("resolving file id", slog.String("bucket_id", bucketID))

	encName, err := c.names.EncryptFileName(bucketID, name)
	if err != nil {
		return "", err
	}

	var raw idResponse

	apiPath := "/buckets/" + url.PathEscape(bucketID) + "/file-ids/" + url.PathEscape(encName)
	if err := c.getJSON(ctx, apiPath, &raw); err != nil {
		return "", asNotFound(err, CodeBridgeFileNotFound)
	}

	if raw.ID == "" {
		return "", newError(CodeBridgeJSON, ErrBadResponse, fmt.Errorf("empty file id"))
	}

	return raw.ID, nil
}
