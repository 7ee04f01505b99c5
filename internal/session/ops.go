package session

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/storj-go/internal/entry"
)

// Every operation below returns a non-nil error only when it could not be
// started (no keys, destroyed session). Backend outcomes reach the callback.
// ctx bounds the request; the session's own teardown also cancels it.

// ListBuckets lists every bucket of the account.
func (s *Session) ListBuckets(ctx context.Context, cb BucketsCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.goAsync(ctx, func(ctx context.Context) {
		buckets, err := inc.bridge.ListBuckets(ctx)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError("", err))
				return
			}

			cb.OnBucketsReceived(buckets)
		})
	})

	return nil
}

// GetBucket fetches one bucket.
func (s *Session) GetBucket(ctx context.Context, bucketID string, cb BucketCallback) error {
	return s.GetBuckets(ctx, []string{bucketID}, cb)
}

// GetBuckets fetches each bucket independently; cb is invoked once per ID,
// in no particular order.
func (s *Session) GetBuckets(ctx context.Context, bucketIDs []string, cb BucketCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.fanOut(ctx, bucketIDs, func(ctx context.Context, id string) {
		bucket, err := inc.bridge.GetBucket(ctx, id)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError(id, err))
				return
			}

			cb.OnBucketReceived(bucket)
		})
	})

	return nil
}

// CreateBucket creates a bucket named name.
func (s *Session) CreateBucket(ctx context.Context, name string, cb CreateBucketCallback) error {
	return s.CreateBuckets(ctx, []string{name}, cb)
}

// CreateBuckets creates one bucket per name; cb is invoked once per name.
func (s *Session) CreateBuckets(ctx context.Context, names []string, cb CreateBucketCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.fanOut(ctx, names, func(ctx context.Context, name string) {
		bucket, err := inc.bridge.CreateBucket(ctx, name)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError(name, err))
				return
			}

			inc.logger.Info("bucket created", slog.String("bucket_id", bucket.ID))
			cb.OnBucketCreated(bucket)
		})
	})

	return nil
}

// DeleteBucket deletes a bucket and everything in it.
func (s *Session) DeleteBucket(ctx context.Context, bucketID string, cb DeleteBucketCallback) error {
	return s.DeleteBuckets(ctx, []string{bucketID}, cb)
}

// DeleteBuckets deletes each bucket independently; cb is invoked once per ID.
func (s *Session) DeleteBuckets(ctx context.Context, bucketIDs []string, cb DeleteBucketCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.fanOut(ctx, bucketIDs, func(ctx context.Context, id string) {
		err := inc.bridge.DeleteBucket(ctx, id)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError(id, err))
				return
			}

			inc.logger.Info("bucket deleted", slog.String("bucket_id", id))
			cb.OnBucketDeleted(id)
		})
	})

	return nil
}

// GetBucketID resolves a bucket name to its ID.
func (s *Session) GetBucketID(ctx context.Context, name string, cb IDCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.goAsync(ctx, func(ctx context.Context) {
		id, err := inc.bridge.GetBucketID(ctx, name)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError(name, err))
				return
			}

			cb.OnIDReceived(name, id)
		})
	})

	return nil
}

// ListFiles lists the flat contents of a bucket.
func (s *Session) ListFiles(ctx context.Context, bucketID string, cb FilesCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.goAsync(ctx, func(ctx context.Context) {
		files, err := inc.bridge.ListFiles(ctx, bucketID)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError(bucketID, err))
				return
			}

			cb.OnFilesReceived(bucketID, files)
		})
	})

	return nil
}

// GetFile fetches the metadata of one file.
func (s *Session) GetFile(ctx context.Context, bucketID, fileID string, cb FileCallback) error {
	return s.GetFiles(ctx, bucketID, []string{fileID}, cb)
}

// GetFiles fetches each file independently; cb is invoked once per ID.
func (s *Session) GetFiles(ctx context.Context, bucketID string, fileIDs []string, cb FileCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.fanOut(ctx, fileIDs, func(ctx context.Context, id string) {
		file, err := inc.bridge.GetFile(ctx, bucketID, id)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError(id, err))
				return
			}

			cb.OnFileReceived(file)
		})
	})

	return nil
}

// DeleteFile deletes one file.
func (s *Session) DeleteFile(ctx context.Context, bucketID, fileID string, cb DeleteFileCallback) error {
	return s.DeleteFiles(ctx, bucketID, []string{fileID}, cb)
}

// DeleteFiles deletes each file independently; cb is invoked once per ID.
func (s *Session) DeleteFiles(ctx context.Context, bucketID string, fileIDs []string, cb DeleteFileCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.fanOut(ctx, fileIDs, func(ctx context.Context, id string) {
		err := inc.bridge.DeleteFile(ctx, bucketID, id)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError(id, err))
				return
			}

			inc.logger.Info("file deleted", slog.String("bucket_id", bucketID), slog.String("file_id", id))
			cb.OnFileDeleted(id)
		})
	})

	return nil
}

// GetFileID resolves a file name within a bucket to its ID.
func (s *Session) GetFileID(ctx context.Context, bucketID, name string, cb IDCallback) error {
	inc, err := s.active()
	if err != nil {
		return err
	}

	inc.goAsync(ctx, func(ctx context.Context) {
		id, err := inc.bridge.GetFileID(ctx, bucketID, name)
		inc.post(func() {
			if err != nil {
				cb.OnError(newOpError(name, err))
				return
			}

			cb.OnIDReceived(name, id)
		})
	})

	return nil
}

// Buckets is a synchronous ListBuckets.
func (s *Session) Buckets(ctx context.Context) ([]entry.Entry, error) {
	type result struct {
		buckets []entry.Entry
		err     error
	}

	ch := make(chan result, 1)

	err := s.ListBuckets(ctx, Funcs{
		BucketsReceived: func(b []entry.Entry) { ch <- result{buckets: b} },
		Error:           func(e *OpError) { ch <- result{err: e} },
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.buckets, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Files is a synchronous ListFiles.
func (s *Session) Files(ctx context.Context, bucketID string) ([]entry.Entry, error) {
	type result struct {
		files []entry.Entry
		err   error
	}

	ch := make(chan result, 1)

	err := s.ListFiles(ctx, bucketID, Funcs{
		FilesReceived: func(_ string, f []entry.Entry) { ch <- result{files: f} },
		Error:         func(e *OpError) { ch <- result{err: e} },
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.files, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
