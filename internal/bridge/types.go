package bridge

import (
	"log/slog"
	"time"

	"github.com/tonimelisma/storj-go/internal/entry"
)

// bucketResponse is the JSON shape of a bucket.
type bucketResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created string `json:"created"`
}

// fileResponse is the JSON shape of a file.
type fileResponse struct {
	ID       string `json:"id"`
	Bucket   string `json:"bucket"`
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Size     int64  `json:"size"`
	Created  string `json:"created"`
	Index    string `json:"index"`
	Erasure  *struct {
		Type string `json:"type"`
	} `json:"erasure"`
	HMAC *struct {
		Value string `json:"value"`
	} `json:"hmac"`
}

type idResponse struct {
	ID string `json:"id"`
}

// toEntry normalizes a bucket response, decrypting its name when possible.
func (b *bucketResponse) toEntry(names *NameCipher, logger *slog.Logger) entry.Entry {
	name, ok := names.DecryptBucketName(b.Name)

	return entry.NewBucket(b.ID, name, parseTimestamp(b.Created, b.ID, logger), ok)
}

// toEntry normalizes a file response. bucketID is used when the response
// omits its bucket.
func (f *fileResponse) toEntry(bucketID string, names *NameCipher, logger *slog.Logger) entry.Entry {
	if f.Bucket != "" {
		bucketID = f.Bucket
	}

	name, ok := names.DecryptFileName(bucketID, f.Filename)

	info := entry.FileInfo{
		Size:     f.Size,
		MimeType: f.Mimetype,
		Index:    f.Index,
	}

	if f.Erasure != nil {
		info.Erasure = f.Erasure.Type
	}

	if f.HMAC != nil {
		info.HMAC = f.HMAC.Value
	}

	return entry.NewFile(bucketID, f.ID, name, parseTimestamp(f.Created, f.ID, logger), ok, info)
}

// parseTimestamp parses an RFC3339 timestamp. Missing or invalid timestamps
// yield the zero time.
func parseTimestamp(raw, id string, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("invalid timestamp, leaving unset",
			slog.String("id", id),
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t.UTC()
}
