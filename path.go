package main

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/storj-go/internal/entry"
)

// remotePath is a parsed "bucket/dir/file" argument. Name is the file name
// inside the bucket and is empty for the bucket itself.
type remotePath struct {
	Bucket string
	Name   string
}

var errNoBucket = errors.New("remote path must start with a bucket name")

// parseRemotePath splits a remote path into bucket and in-bucket name. A
// leading "/" is ignored and repeated separators collapse; a trailing "/"
// is kept so directories stay distinguishable from files. Names are
// normalized to NFC so that paths typed on macOS match uploads from
// elsewhere.
func parseRemotePath(raw string) (remotePath, error) {
	s := norm.NFC.String(strings.TrimLeft(raw, entry.Separator))

	bucket, rest, _ := strings.Cut(s, entry.Separator)
	if bucket == "" {
		return remotePath{}, fmt.Errorf("%w: %q", errNoBucket, raw)
	}

	rest = strings.TrimLeft(rest, entry.Separator)

	if rest == "" {
		return remotePath{Bucket: bucket}, nil
	}

	dir := entry.IsDirectory(rest)
	name := path.Clean(rest)

	switch {
	case name == ".":
		return remotePath{Bucket: bucket}, nil
	case name == ".." || strings.HasPrefix(name, "../"):
		return remotePath{}, fmt.Errorf("remote path %q escapes its bucket", raw)
	}

	if dir {
		name += entry.Separator
	}

	return remotePath{Bucket: bucket, Name: name}, nil
}

// IsDir reports whether the path names the bucket or ends with "/".
func (r remotePath) IsDir() bool {
	return r.Name == "" || entry.IsDirectory(r.Name)
}

// scope returns the listing scope for a directory path inside bucketID.
func (r remotePath) scope(bucketID string) entry.Entry {
	if r.Name == "" {
		return entry.BucketRoot(entry.NewBucket(bucketID, r.Bucket, time.Time{}, true))
	}

	prefix := r.Name
	if !entry.IsDirectory(prefix) {
		prefix += entry.Separator
	}

	return entry.SyntheticDir(bucketID, prefix)
}

// uploadName picks the remote file name for an upload of localName to r:
// directories get the local base name appended.
func (r remotePath) uploadName(localName string) string {
	if r.IsDir() {
		return r.Name + localName
	}

	return r.Name
}

func (r remotePath) String() string {
	return r.Bucket + entry.Separator + r.Name
}
