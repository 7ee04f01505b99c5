package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/tonimelisma/storj-go/internal/entry"
	"github.com/tonimelisma/storj-go/internal/session"
)

// ErrNotDirectory is returned when a file is used as a listing scope.
var ErrNotDirectory = errors.New("tree: not a directory")

// Lister is the part of the session the tree needs. Satisfied by
// *session.Session.
type Lister interface {
	ListBuckets(ctx context.Context, cb session.BucketsCallback) error
	ListFiles(ctx context.Context, bucketID string, cb session.FilesCallback) error
}

var _ Lister = (*session.Session)(nil)

// ListCallback receives the result of FS.List from the session's dispatch
// loop: the entries of the scope, or one error tagged with the scope ID.
type ListCallback interface {
	OnEntriesReceived(scopeID string, entries []entry.Entry)
	OnError(err *session.OpError)
}

// WalkFunc is called by Walk for every entry; depth is 0 for the children of
// the starting scope. Returning fs.SkipDir on a Dir skips its contents; on a
// file it skips the remaining entries of the current directory.
type WalkFunc func(e entry.Entry, depth int) error

// FS is a read-only filesystem view over a session. It holds no state of its
// own: every listing re-fetches the bucket's full flat file list.
type FS struct {
	lister Lister
	logger *slog.Logger
}

// NewFS creates an FS over l.
func NewFS(l Lister, logger *slog.Logger) *FS {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &FS{lister: l, logger: logger}
}

// List lists scope asynchronously. A nil scope lists the account root (one
// Dir per bucket); a Bucket or Dir lists its direct children. The error
// return covers only failures to start the request.
func (f *FS) List(ctx context.Context, scope *entry.Entry, cb ListCallback) error {
	id := ScopeID(scope)

	onError := func(err *session.OpError) {
		cb.OnError(&session.OpError{Subject: id, Code: err.Code, Message: err.Message, Err: err.Err})
	}

	if scope == nil {
		return f.lister.ListBuckets(ctx, session.Funcs{
			BucketsReceived: func(buckets []entry.Entry) { cb.OnEntriesReceived(id, Roots(buckets)) },
			Error:           onError,
		})
	}

	if scope.Kind == entry.KindFile {
		return fmt.Errorf("%w: %s", ErrNotDirectory, scope.Name)
	}

	target := *scope
	bucketID, _ := scopeOf(target)

	f.logger.Debug("listing scope", slog.String("scope", id))

	return f.lister.ListFiles(ctx, bucketID, session.Funcs{
		FilesReceived: func(_ string, files []entry.Entry) {
			cb.OnEntriesReceived(id, Children(target, files))
		},
		Error: onError,
	})
}

type listResult struct {
	entries []entry.Entry
	err     error
}

type chanCallback chan listResult

func (c chanCallback) OnEntriesReceived(_ string, entries []entry.Entry) {
	c <- listResult{entries: entries}
}

func (c chanCallback) OnError(err *session.OpError) {
	c <- listResult{err: err}
}

// ListSync is List that waits for the result. Backend failures are returned
// as *session.OpError.
func (f *FS) ListSync(ctx context.Context, scope *entry.Entry) ([]entry.Entry, error) {
	ch := make(chanCallback, 1)

	if err := f.List(ctx, scope, ch); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.entries, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Walk visits everything below scope depth-first, listing each directory
// only when it is entered.
func (f *FS) Walk(ctx context.Context, scope *entry.Entry, fn WalkFunc) error {
	return f.walk(ctx, scope, 0, fn)
}

func (f *FS) walk(ctx context.Context, scope *entry.Entry, depth int, fn WalkFunc) error {
	children, err := f.ListSync(ctx, scope)
	if err != nil {
		return err
	}

	for i := range children {
		child := children[i]

		err := fn(child, depth)

		if child.Kind == entry.KindFile {
			if errors.Is(err, fs.SkipDir) {
				return nil
			}

			if err != nil {
				return err
			}

			continue
		}

		if errors.Is(err, fs.SkipDir) {
			continue
		}

		if err != nil {
			return err
		}

		if err := f.walk(ctx, &child, depth+1, fn); err != nil {
			return err
		}
	}

	return nil
}
