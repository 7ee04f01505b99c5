package tree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/storj-go/internal/entry"
)

func files(bucketID string, names ...string) []entry.Entry {
	out := make([]entry.Entry, 0, len(names))
	for i, n := range names {
		out = append(out, entry.NewFile(bucketID, "id-"+string(rune('a'+i)), n, time.Time{}, true, entry.FileInfo{}))
	}

	return out
}

type shape struct {
	kind entry.Kind
	name string
}

func shapes(entries []entry.Entry) []shape {
	out := make([]shape, 0, len(entries))
	for _, e := range entries {
		out = append(out, shape{e.Kind, e.Name})
	}

	return out
}

var bucket = entry.NewBucket("b1", "photos", time.Time{}, true)

func TestChildren_BucketRoot(t *testing.T) {
	got := Children(entry.BucketRoot(bucket), files("b1", "a", "b/c", "b/d", "e/f/g"))

	assert.Equal(t, []shape{
		{entry.KindFile, "a"},
		{entry.KindDir, "b/"},
		{entry.KindDir, "e/"},
	}, shapes(got))

	assert.Equal(t, "b1/b/", got[1].ID)
	assert.Equal(t, "b1", got[1].BucketID)
	assert.True(t, got[1].Decrypted)
}

func TestChildren_Idempotent(t *testing.T) {
	flat := files("b1", "z/y", "a", "b/c", "e/f/g", "b/d")
	scope := entry.BucketRoot(bucket)

	first := Children(scope, flat)
	second := Children(scope, flat)

	assert.ElementsMatch(t, first, second)
}

func TestChildren_NestedScope(t *testing.T) {
	flat := files("b1", "a", "e/x", "e/f/g", "e/f/h/i", "e/k/", "ee/z")
	scope := entry.SyntheticDir("b1", "e/")

	assert.Equal(t, []shape{
		{entry.KindDir, "e/f/"},
		{entry.KindDir, "e/k/"},
		{entry.KindFile, "e/x"},
	}, shapes(Children(scope, flat)))

	deeper := entry.SyntheticDir("b1", "e/f/")
	assert.Equal(t, []shape{
		{entry.KindFile, "e/f/g"},
		{entry.KindDir, "e/f/h/"},
	}, shapes(Children(deeper, flat)))
}

func TestChildren_StoredMarkerWins(t *testing.T) {
	flat := files("b1", "docs/", "docs/a.txt", "docs/sub/b.txt")
	got := Children(entry.BucketRoot(bucket), flat)

	require.Len(t, got, 1)
	assert.Equal(t, entry.KindDir, got[0].Kind)
	assert.Equal(t, "docs/", got[0].Name)
	assert.Equal(t, "id-a", got[0].ID, "stored marker keeps its ID")
}

func TestChildren_MarkerListsAsItsOwnScope(t *testing.T) {
	flat := files("b1", "docs/", "docs/a.txt")
	marker := Children(entry.BucketRoot(bucket), flat)[0]

	assert.Equal(t, []shape{{entry.KindFile, "docs/a.txt"}}, shapes(Children(marker, flat)),
		"the marker itself is not its own child")
}

func TestChildren_EmptyAndDuplicateSegments(t *testing.T) {
	flat := files("b1", "/lead", "a//b", "a/c")
	got := Children(entry.BucketRoot(bucket), flat)

	assert.Equal(t, []shape{
		{entry.KindFile, "/lead"},
		{entry.KindDir, "a/"},
	}, shapes(got))

	inner := Children(entry.SyntheticDir("b1", "a/"), flat)
	assert.Equal(t, []shape{
		{entry.KindFile, "a//b"},
		{entry.KindFile, "a/c"},
	}, shapes(inner))
}

func TestChildren_EmptyBucket(t *testing.T) {
	got := Children(entry.BucketRoot(bucket), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestChildren_BucketEntryAsScope(t *testing.T) {
	got := Children(bucket, files("b1", "a", "b/c"))
	assert.Equal(t, []shape{{entry.KindFile, "a"}, {entry.KindDir, "b/"}}, shapes(got))
}

func TestChildren_UndecryptedNamesAreLeaves(t *testing.T) {
	raw := entry.NewFile("b1", "f1", "UmF3LWJ5dGVz", time.Time{}, false, entry.FileInfo{})
	got := Children(entry.BucketRoot(bucket), []entry.Entry{raw})

	require.Len(t, got, 1)
	assert.Equal(t, entry.KindFile, got[0].Kind)
	assert.False(t, got[0].Decrypted)
}

func TestRoots(t *testing.T) {
	buckets := []entry.Entry{
		entry.NewBucket("b2", "zeta", time.Time{}, true),
		entry.NewBucket("b1", "alpha", time.Time{}, true),
	}

	got := Roots(buckets)
	require.Len(t, got, 2)

	assert.Equal(t, "b1", got[0].ID)
	assert.Equal(t, "alpha", got[0].DisplayName())
	assert.True(t, got[0].IsBucketRoot())
	assert.Equal(t, "b1", got[0].BucketID)
	assert.Equal(t, "zeta", got[1].DisplayName())

	assert.Empty(t, Roots(nil))
}

func TestScopeID(t *testing.T) {
	dir := entry.SyntheticDir("b1", "a/b/")

	tests := []struct {
		name  string
		scope *entry.Entry
		want  string
	}{
		{"root", nil, "/"},
		{"bucket", &bucket, "b1/"},
		{"bucket root", ptr(entry.BucketRoot(bucket)), "b1/"},
		{"dir", &dir, "b1/a/b/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeID(tt.scope))
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestSegments(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, segments("a//b/"))
	assert.Empty(t, segments(""))
	assert.Empty(t, segments("/"))
}
