package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tonimelisma/storj-go/internal/entry"
)

// ListBuckets returns every bucket of the account. Names that cannot be
// decrypted with the client's mnemonic are returned raw with Decrypted=false.
func (c *Client) ListBuckets(ctx context.Context) ([]entry.Entry, error) {
	c.logger.Info("listing buckets")

	var raw []bucketResponse
	if err := c.getJSON(ctx, "/buckets", &raw); err != nil {
		return nil, err
	}

	buckets := make([]entry.Entry, 0, len(raw))
	for i := range raw {
		buckets = append(buckets, raw[i].toEntry(c.names, c.logger))
	}

	c.logger.Debug("listed buckets", slog.Int("count", len(buckets)))

	return buckets, nil
}

// GetBucket fetches a single bucket by ID.
func (c *Client) GetBucket(ctx context.Context, bucketID string) (entry.Entry, error) {
	c.logger.Info("getting bucket", slog.String("bucket_id", bucketID))

	var raw bucketResponse
	if err := c.getJSON(ctx, "/buckets/"+url.PathEscape(bucketID), &raw); err != nil {
		return entry.Entry{}, err
	}

	return raw.toEntry(c.names, c.logger), nil
}

// CreateBucket creates a bucket with an encrypted name.
func (c *Client) CreateBucket(ctx context.Context, name string) (entry.Entry, error) {
	c.logger.Info("creating bucket")

	encName, err := c.names.EncryptBucketName(name)
	if err != nil {
		return entry.Entry{}, err
	}

	payload := map[string]string{"name": encName}

	var raw bucketResponse
	if err := c.doJSON(ctx, http.MethodPost, "/buckets", payload, &raw, true); err != nil {
		return entry.Entry{}, err
	}

	return raw.toEntry(c.names, c.logger), nil
}

// DeleteBucket deletes a bucket and all of its files.
func (c *Client) DeleteBucket(ctx context.Context, bucketID string) error {
	c.logger.Info("deleting bucket", slog.String("bucket_id", bucketID))

	return c.doJSON(ctx, http.MethodDelete, "/buckets/"+url.PathEscape(bucketID), nil, nil, true)
}

// GetBucketID resolves a plaintext bucket name to its ID.
func (c *Client) GetBucketID(ctx context.Context, name string) (string, error) {
	c.logger.Info("resolving bucket id")

	encName, err := c.names.EncryptBucketName(name)
	if err != nil {
		return "", err
	}

	var raw idResponse
	if err := c.getJSON(ctx, "/bucket-ids/"+url.PathEscape(encName), &raw); err != nil {
		return "", asNotFound(err, CodeBridgeBucketNotFound)
	}

	if raw.ID == "" {
		return "", newError(CodeBridgeJSON, ErrBadResponse, fmt.Errorf("empty bucket id"))
	}

	return raw.ID, nil
}

// asNotFound refines a generic 404 into the more specific bucket/file code.
func asNotFound(err error, code Code) error {
	var be *Error
	if errors.As(err, &be) && errors.Is(be.Err, ErrNotFound) {
		return &Error{Code: code, StatusCode: be.StatusCode, Message: Message(code), Err: ErrNotFound}
	}

	return err
}
