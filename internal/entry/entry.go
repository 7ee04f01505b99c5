// Package entry defines the browsable entry model shared by the bridge
// client, the directory synthesizer and the session manager.
//
// An Entry is a tagged sum type over three kinds: Bucket (a root-level
// container), File (a flat stored object whose name may encode a "/"
// delimited pseudo-path) and Dir (a synthetic, never-persisted directory
// inferred from file names). All kinds share the common record (ID, Name,
// Created, Decrypted); File carries its payload in FileInfo.
package entry

import (
	"fmt"
	"mime"
	"path"
	"slices"
	"strings"
	"time"
)

// Separator delimits pseudo-path segments inside file names.
const Separator = "/"

// Kind discriminates the Entry variants.
type Kind int

// Entry kinds.
const (
	KindBucket Kind = iota
	KindFile
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindBucket:
		return "bucket"
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FileInfo is the File-only payload.
type FileInfo struct {
	Size     int64
	MimeType string // as reported by the bridge; usually application/octet-stream
	Erasure  string
	Index    string
	HMAC     string
}

// Entry is one node of the browsable hierarchy.
//
// When Decrypted is false, Name is the raw backend-stored representation and
// may be unreadable. Names are never a mix of decrypted and raw segments.
type Entry struct {
	ID        string
	Name      string
	Created   time.Time // zero when the bridge did not report it
	Decrypted bool
	Kind      Kind

	// BucketID is set for files and dirs.
	BucketID string

	// BucketName is the display name of a bucket-root Dir (Name == "").
	BucketName string

	// File is non-nil iff Kind == KindFile.
	File *FileInfo
}

// NewBucket builds a Bucket entry.
func NewBucket(id, name string, created time.Time, decrypted bool) Entry {
	return Entry{
		ID:        id,
		Name:      name,
		Created:   created,
		Decrypted: decrypted,
		Kind:      KindBucket,
	}
}

// NewFile builds a File entry.
func NewFile(bucketID, id, name string, created time.Time, decrypted bool, info FileInfo) Entry {
	return Entry{
		ID:        id,
		Name:      name,
		Created:   created,
		Decrypted: decrypted,
		Kind:      KindFile,
		BucketID:  bucketID,
		File:      &info,
	}
}

// BucketRoot returns the Dir representing the root of bucket b. Its Name is
// empty and its ID is the bucket ID.
func BucketRoot(b Entry) Entry {
	return Entry{
		ID:         b.ID,
		Created:    b.Created,
		Decrypted:  b.Decrypted,
		Kind:       KindDir,
		BucketID:   b.ID,
		BucketName: b.Name,
	}
}

// MarkerDir converts a stored directory marker (a file whose name ends in
// "/") into a Dir, keeping the stored ID.
func MarkerDir(f Entry) Entry {
	return Entry{
		ID:        f.ID,
		Name:      f.Name,
		Created:   f.Created,
		Decrypted: f.Decrypted,
		Kind:      KindDir,
		BucketID:  f.BucketID,
	}
}

// SyntheticDir builds an inferred Dir for the given path prefix, which must
// end with "/". Synthesized dirs are identified by "<bucketID>/<prefix>".
func SyntheticDir(bucketID, prefix string) Entry {
	return Entry{
		ID:        bucketID + Separator + prefix,
		Name:      prefix,
		Decrypted: true,
		Kind:      KindDir,
		BucketID:  bucketID,
	}
}

// IsBucketRoot reports whether e is the Dir standing for a whole bucket.
func (e Entry) IsBucketRoot() bool {
	return e.Kind == KindDir && e.Name == ""
}

// Equal compares entries by ID only.
func (e Entry) Equal(other Entry) bool {
	return e.ID == other.ID
}

// SimpleName returns the last path segment of the entry name.
func (e Entry) SimpleName() string {
	return SimpleName(e.Name)
}

// DisplayName is SimpleName, except that bucket-root dirs show the bucket name.
func (e Entry) DisplayName() string {
	if e.IsBucketRoot() {
		return e.BucketName
	}

	return e.SimpleName()
}

// MimeType infers the content type from the file name extension and falls
// back to the bridge-reported type, which is rarely more than a generic
// default. Returns "" for non-file entries.
func (e Entry) MimeType() string {
	if e.File == nil {
		return ""
	}

	if inferred := MimeTypeByName(e.Name); inferred != "" {
		return inferred
	}

	return e.File.MimeType
}

// Size returns the file size, or 0 for buckets and dirs.
func (e Entry) Size() int64 {
	if e.File == nil {
		return 0
	}

	return e.File.Size
}

// SimpleName returns the last "/"-delimited segment of name. A single
// trailing "/" (directory names) is ignored: SimpleName("a/b/") == "b".
func SimpleName(name string) string {
	trimmed := strings.TrimSuffix(name, Separator)

	if i := strings.LastIndex(trimmed, Separator); i >= 0 {
		return trimmed[i+1:]
	}

	return trimmed
}

// IsDirectory reports whether name denotes a directory, i.e. ends with "/".
func IsDirectory(name string) bool {
	return strings.HasSuffix(name, Separator)
}

// MimeTypeByName infers a media type (without parameters) from the extension
// of name. Returns "" when the extension is unknown.
func MimeTypeByName(name string) string {
	ext := path.Ext(SimpleName(name))
	if ext == "" {
		return ""
	}

	t := mime.TypeByExtension(strings.ToLower(ext))
	if t == "" {
		return ""
	}

	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}

	return mediaType
}

// Compare orders entries lexicographically by name, then by ID so that the
// order is total.
func Compare(a, b Entry) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}

	return strings.Compare(a.ID, b.ID)
}

// Less reports whether a sorts before b.
func Less(a, b Entry) bool {
	return Compare(a, b) < 0
}

// SortByName sorts entries in place by name.
func SortByName(entries []Entry) {
	slices.SortFunc(entries, Compare)
}
