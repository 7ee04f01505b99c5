// Package tree projects the bridge's flat buckets and files onto a browsable
// directory hierarchy. Buckets become top-level directories; "/" inside file
// names delimits pseudo-directories, which are synthesized when no marker
// was ever stored for them.
package tree

import (
	"slices"
	"strings"

	"github.com/tonimelisma/storj-go/internal/entry"
)

// RootScopeID identifies the virtual account root.
const RootScopeID = entry.Separator

// Roots returns one bucket-root Dir per bucket, sorted by display name.
func Roots(buckets []entry.Entry) []entry.Entry {
	out := make([]entry.Entry, 0, len(buckets))
	for i := range buckets {
		out = append(out, entry.BucketRoot(buckets[i]))
	}

	slices.SortFunc(out, func(a, b entry.Entry) int {
		if c := strings.Compare(a.BucketName, b.BucketName); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return out
}

// ScopeID identifies a listing scope in errors: RootScopeID for the account
// root (nil), "<bucketID>/<prefix>" for a bucket or directory.
func ScopeID(scope *entry.Entry) string {
	if scope == nil {
		return RootScopeID
	}

	bucketID, prefix := scopeOf(*scope)

	return bucketID + entry.Separator + prefix
}

// scopeOf returns the bucket and path prefix a scope entry lists. Buckets and
// bucket-root dirs list from the empty prefix.
func scopeOf(scope entry.Entry) (bucketID, prefix string) {
	if scope.Kind == entry.KindBucket {
		return scope.ID, ""
	}

	return scope.BucketID, scope.Name
}

// Children computes the direct children of scope from the complete flat file
// listing of its bucket.
//
// Files one segment below the scope's prefix are returned as they are, or as
// a Dir when their name ends in "/" (a stored directory marker). Files nested
// deeper contribute a single synthesized Dir for their first segment below the
// prefix. Each name appears at most once; stored markers win over synthesized
// dirs. The result is sorted by name.
func Children(scope entry.Entry, files []entry.Entry) []entry.Entry {
	bucketID, prefix := scopeOf(scope)
	prefixSegs := segments(prefix)

	seen := make(map[string]bool)
	out := make([]entry.Entry, 0)

	// Pass 1: direct children.
	for i := range files {
		f := &files[i]

		segs := segments(f.Name)
		if len(segs) != len(prefixSegs)+1 || !hasPrefix(segs, prefixSegs) {
			continue
		}

		child := *f
		key := strings.Join(segs, entry.Separator)

		if entry.IsDirectory(f.Name) {
			child = entry.MarkerDir(*f)
			key += entry.Separator
		}

		if seen[key] {
			continue
		}

		seen[key] = true
		out = append(out, child)
	}

	// Pass 2: intermediates nobody stored a marker for.
	for i := range files {
		segs := segments(files[i].Name)
		if len(segs) <= len(prefixSegs)+1 || !hasPrefix(segs, prefixSegs) {
			continue
		}

		name := joinDir(append(prefixSegs[:len(prefixSegs):len(prefixSegs)], segs[len(prefixSegs)]))
		if seen[name] {
			continue
		}

		seen[name] = true
		out = append(out, entry.SyntheticDir(bucketID, name))
	}

	entry.SortByName(out)

	return out
}

// segments splits name on "/" and drops empty segments, so "a//b/" and "a/b"
// both yield ["a", "b"].
func segments(name string) []string {
	parts := strings.Split(name, entry.Separator)
	out := parts[:0]

	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func hasPrefix(segs, prefix []string) bool {
	if len(segs) < len(prefix) {
		return false
	}

	for i := range prefix {
		if segs[i] != prefix[i] {
			return false
		}
	}

	return true
}

// joinDir renders directory segments as a name ending in "/".
func joinDir(segs []string) string {
	return strings.Join(segs, entry.Separator) + entry.Separator
}
