package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/entry"
)

func activeSession(t *testing.T, fb *fakeBridge, opts Options) *Session {
	t.Helper()

	s := newTestSession(t, fb, opts)
	require.NoError(t, s.ImportKeys(testKeys, ""))

	return s
}

func TestListBuckets(t *testing.T) {
	s := activeSession(t, newFakeBridge(), Options{})
	rec := &recorder{}

	require.NoError(t, s.ListBuckets(context.Background(), rec.funcs()))
	rec.waitTerminals(t, 1)

	assert.Len(t, rec.buckets, 2)
	assert.Empty(t, rec.errs)
}

func TestListBuckets_Error(t *testing.T) {
	fb := newFakeBridge()
	fb.listErr = &bridge.Error{Code: bridge.CodeUnauthorized, Message: "Unauthorized", Err: bridge.ErrUnauthorized}

	s := activeSession(t, fb, Options{})
	rec := &recorder{}

	require.NoError(t, s.ListBuckets(context.Background(), rec.funcs()))
	rec.waitTerminals(t, 1)

	require.Len(t, rec.errs, 1)
	assert.Equal(t, bridge.CodeUnauthorized, rec.errs[0].Code)
	assert.ErrorIs(t, rec.errs[0], bridge.ErrUnauthorized)
}

func TestGetBuckets_FanOutIsolatesFailures(t *testing.T) {
	s := activeSession(t, newFakeBridge(), Options{})
	rec := &recorder{}

	require.NoError(t, s.GetBuckets(context.Background(), []string{"b1", "missing", "b2"}, rec.funcs()))
	rec.waitTerminals(t, 3)

	ids := make([]string, 0, len(rec.buckets))
	for _, b := range rec.buckets {
		ids = append(ids, b.ID)
	}

	assert.ElementsMatch(t, []string{"b1", "b2"}, ids)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, "missing", rec.errs[0].Subject)
	assert.Equal(t, bridge.CodeBridgeBucketNotFound, rec.errs[0].Code)
}

func TestFanOut_BoundedParallelism(t *testing.T) {
	fb := newFakeBridge()
	s := activeSession(t, fb, Options{Parallelism: 2})
	rec := &recorder{}

	ids := []string{"b1", "b2", "b1", "b2", "b1", "b2", "b1", "b2"}
	require.NoError(t, s.GetBuckets(context.Background(), ids, rec.funcs()))
	rec.waitTerminals(t, len(ids))

	assert.LessOrEqual(t, fb.maxInFlight.Load(), int32(2))
	assert.Equal(t, int32(len(ids)), fb.calls.Load(), "one request per id")
}

func TestCallbacksAreSerialized(t *testing.T) {
	s := activeSession(t, newFakeBridge(), Options{Parallelism: 16})

	var (
		inside     atomic.Int32
		overlapped atomic.Bool
		count      atomic.Int32
	)

	cb := Funcs{
		BucketReceived: func(entry.Entry) {
			if inside.Add(1) > 1 {
				overlapped.Store(true)
			}

			time.Sleep(time.Millisecond)
			inside.Add(-1)
			count.Add(1)
		},
	}

	ids := make([]string, 32)
	for i := range ids {
		ids[i] = "b1"
	}

	require.NoError(t, s.GetBuckets(context.Background(), ids, cb))
	require.Eventually(t, func() bool { return count.Load() == int32(len(ids)) }, 2*time.Second, time.Millisecond)
	assert.False(t, overlapped.Load(), "callbacks must never run concurrently")
}

func TestCreateBuckets(t *testing.T) {
	fb := newFakeBridge()
	s := activeSession(t, fb, Options{})
	rec := &recorder{}

	require.NoError(t, s.CreateBuckets(context.Background(), []string{"one", "", "two"}, rec.funcs()))
	rec.waitTerminals(t, 3)

	assert.Len(t, rec.buckets, 2)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, "", rec.errs[0].Subject)
	assert.Equal(t, bridge.CodeBadRequest, rec.errs[0].Code)
	assert.ElementsMatch(t, []string{"one", "two"}, fb.created)
}

func TestDeleteBucket(t *testing.T) {
	fb := newFakeBridge()
	s := activeSession(t, fb, Options{})
	rec := &recorder{}

	require.NoError(t, s.DeleteBucket(context.Background(), "b2", rec.funcs()))
	rec.waitTerminals(t, 1)

	assert.Equal(t, []string{"b2"}, rec.ids)
	assert.Equal(t, []string{"b2"}, fb.deleted)
}

func TestGetBucketID(t *testing.T) {
	s := activeSession(t, newFakeBridge(), Options{})
	rec := &recorder{}

	require.NoError(t, s.GetBucketID(context.Background(), "docs", rec.funcs()))
	require.NoError(t, s.GetBucketID(context.Background(), "nope", rec.funcs()))
	rec.waitTerminals(t, 2)

	assert.Equal(t, []string{"b2"}, rec.ids)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, "nope", rec.errs[0].Subject)
}

func TestListFiles(t *testing.T) {
	s := activeSession(t, newFakeBridge(), Options{})
	rec := &recorder{}

	require.NoError(t, s.ListFiles(context.Background(), "b1", rec.funcs()))
	require.NoError(t, s.ListFiles(context.Background(), "zz", rec.funcs()))
	rec.waitTerminals(t, 2)

	require.Len(t, rec.files, 1)
	assert.Equal(t, "f1", rec.files[0].ID)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, "zz", rec.errs[0].Subject)
}

func TestGetFilesAndDeleteFiles(t *testing.T) {
	fb := newFakeBridge()
	s := activeSession(t, fb, Options{})
	rec := &recorder{}

	require.NoError(t, s.GetFiles(context.Background(), "b1", []string{"f1", "nope"}, rec.funcs()))
	rec.waitTerminals(t, 2)

	require.Len(t, rec.files, 1)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, "nope", rec.errs[0].Subject)
	assert.Equal(t, bridge.CodeBridgeFileNotFound, rec.errs[0].Code)

	del := &recorder{}
	require.NoError(t, s.DeleteFile(context.Background(), "b1", "f1", del.funcs()))
	del.waitTerminals(t, 1)
	assert.Equal(t, []string{"f1"}, del.ids)
}

func TestGetFileID(t *testing.T) {
	s := activeSession(t, newFakeBridge(), Options{})
	rec := &recorder{}

	require.NoError(t, s.GetFileID(context.Background(), "b1", "a.txt", rec.funcs()))
	rec.waitTerminals(t, 1)

	assert.Equal(t, []string{"f1"}, rec.ids)
}

func TestSyncWrappers(t *testing.T) {
	s := activeSession(t, newFakeBridge(), Options{})
	ctx := context.Background()

	buckets, err := s.Buckets(ctx)
	require.NoError(t, err)
	assert.Len(t, buckets, 2)

	files, err := s.Files(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = s.Files(ctx, "zz")
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "zz", opErr.Subject)
}

func TestRequestContextCancel(t *testing.T) {
	s := activeSession(t, newFakeBridge(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Buckets(ctx)
	assert.Error(t, err)
}
