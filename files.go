package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/storj-go/internal/entry"
	"github.com/tonimelisma/storj-go/internal/session"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [bucket[/path/]]",
		Short: "List buckets, or the files and folders under a path",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [bucket[/path/]]",
		Short: "Show everything below a path as an indented tree",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTree,
	}

	cmd.Flags().IntP("depth", "L", 0, "descend at most this many levels (0 = unlimited)")

	return cmd
}

func newMkbucketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkbucket <name>...",
		Short: "Create buckets",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMkbucket,
	}
}

func newRmbucketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmbucket <name>...",
		Short: "Delete buckets and everything in them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRmbucket,
	}
}

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <bucket/path>...",
		Short: "Delete files",
		Long: `Delete files from a bucket.

Folders only exist as a prefix of file names. Use --recursive (-r) with a
path ending in "/" to delete every file below it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRm,
	}

	cmd.Flags().BoolP("recursive", "r", false, "delete every file below a folder path")

	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <bucket/path> [local-path]",
		Short: "Download a file",
		Long: `Download a file. Without a local path the file is saved under the
configured download directory, or the current directory when none is set.`,
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // remote and optional local path
		RunE: runGet,
	}
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-path> <bucket[/path]>",
		Short: "Upload a file",
		Long: `Upload a file. When the remote path is a bucket or ends with "/", the
local file name is appended.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // local and remote path
		RunE: runPut,
	}
}

// result carries the single answer of an asynchronous session operation.
type result[T any] struct {
	val T
	err error
}

// receive waits for one result or for ctx to end.
func receive[T any](ctx context.Context, ch <-chan result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// openApp creates the session and unlocks it. The caller must Close the app.
func openApp(cmd *cobra.Command) (*app, error) {
	cc := mustCLIContext(cmd.Context())

	a, err := newApp(cmd.Context(), cc)
	if err != nil {
		return nil, err
	}

	if err := a.unlock(newPrompter(cmd.InOrStdin(), cc.Stderr)); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// bucketID resolves a bucket name through the bridge.
func (a *app) bucketID(ctx context.Context, name string) (string, error) {
	ch := make(chan result[string], 1)

	err := a.sess.GetBucketID(ctx, name, session.Funcs{
		IDReceived: func(_, id string) { ch <- result[string]{val: id} },
		Error:      func(e *session.OpError) { ch <- result[string]{err: e} },
	})
	if err != nil {
		return "", err
	}

	return receive(ctx, ch)
}

// fileID resolves a file name inside a bucket through the bridge.
func (a *app) fileID(ctx context.Context, bucketID, name string) (string, error) {
	ch := make(chan result[string], 1)

	err := a.sess.GetFileID(ctx, bucketID, name, session.Funcs{
		IDReceived: func(_, id string) { ch <- result[string]{val: id} },
		Error:      func(e *session.OpError) { ch <- result[string]{err: e} },
	})
	if err != nil {
		return "", err
	}

	return receive(ctx, ch)
}

// file fetches one file's metadata.
func (a *app) file(ctx context.Context, bucketID, fileID string) (entry.Entry, error) {
	ch := make(chan result[entry.Entry], 1)

	err := a.sess.GetFile(ctx, bucketID, fileID, session.Funcs{
		FileReceived: func(f entry.Entry) { ch <- result[entry.Entry]{val: f} },
		Error:        func(e *session.OpError) { ch <- result[entry.Entry]{err: e} },
	})
	if err != nil {
		return entry.Entry{}, err
	}

	return receive(ctx, ch)
}

// resolveFile turns a remote path into the file entry it names.
func (a *app) resolveFile(ctx context.Context, rp remotePath) (entry.Entry, error) {
	if rp.IsDir() {
		return entry.Entry{}, fmt.Errorf("%s is a folder, not a file", rp)
	}

	bucketID, err := a.bucketID(ctx, rp.Bucket)
	if err != nil {
		return entry.Entry{}, err
	}

	id, err := a.fileID(ctx, bucketID, rp.Name)
	if err != nil {
		return entry.Entry{}, err
	}

	return a.file(ctx, bucketID, id)
}

// lsItem is the JSON shape of one listed entry.
type lsItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Size      int64     `json:"size,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	Created   time.Time `json:"created,omitzero"`
	Decrypted bool      `json:"decrypted"`
}

func toLsItem(e entry.Entry) lsItem {
	return lsItem{
		ID:        e.ID,
		Name:      e.DisplayName(),
		Kind:      e.Kind.String(),
		Size:      e.Size(),
		MimeType:  e.MimeType(),
		Created:   e.Created,
		Decrypted: e.Decrypted,
	}
}

func printEntriesJSON(cc *CLIContext, entries []entry.Entry) error {
	items := make([]lsItem, 0, len(entries))
	for i := range entries {
		items = append(items, toLsItem(entries[i]))
	}

	enc := json.NewEncoder(cc.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(items)
}

func printEntriesTable(cc *CLIContext, entries []entry.Entry) {
	rows := make([][]string, 0, len(entries))

	for i := range entries {
		e := entries[i]

		size := "-"
		if e.Kind == entry.KindFile {
			size = formatSize(e.Size())
		}

		rows = append(rows, []string{size, formatTime(e.Created), formatName(e)})
	}

	printTable(cc.Stdout, []string{"SIZE", "CREATED", "NAME"}, rows)
}

func runLs(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var scope *entry.Entry

	if len(args) > 0 {
		rp, err := parseRemotePath(args[0])
		if err != nil {
			return err
		}

		bucketID, err := a.bucketID(ctx, rp.Bucket)
		if err != nil {
			return err
		}

		s := rp.scope(bucketID)
		scope = &s
	}

	cc.Logger.Debug("ls", slog.String("scope", scopeLabel(scope)))

	entries, err := a.fs.ListSync(ctx, scope)
	if err != nil {
		return fmt.Errorf("listing %s: %w", scopeLabel(scope), err)
	}

	if cc.Flags.JSON {
		return printEntriesJSON(cc, entries)
	}

	if len(entries) == 0 {
		cc.Statusf("%s is empty\n", scopeLabel(scope))
		return nil
	}

	printEntriesTable(cc, entries)

	return nil
}

func scopeLabel(scope *entry.Entry) string {
	switch {
	case scope == nil:
		return "/"
	case scope.IsBucketRoot():
		return scope.BucketName + entry.Separator
	default:
		return scope.Name
	}
}

func runTree(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	maxDepth, err := cmd.Flags().GetInt("depth")
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var scope *entry.Entry

	if len(args) > 0 {
		rp, err := parseRemotePath(args[0])
		if err != nil {
			return err
		}

		bucketID, err := a.bucketID(ctx, rp.Bucket)
		if err != nil {
			return err
		}

		s := rp.scope(bucketID)
		scope = &s
	}

	fmt.Fprintln(cc.Stdout, scopeLabel(scope))

	var dirs, files int

	err = a.fs.Walk(ctx, scope, func(e entry.Entry, depth int) error {
		fmt.Fprintf(cc.Stdout, "%s%s\n", strings.Repeat("  ", depth+1), formatName(e))

		if e.Kind == entry.KindFile {
			files++
			return nil
		}

		dirs++

		if maxDepth > 0 && depth+1 >= maxDepth {
			return fs.SkipDir
		}

		return nil
	})
	if err != nil {
		return err
	}

	cc.Statusf("\n%d folders, %d files\n", dirs, files)

	return nil
}

func runMkbucket(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ch := make(chan result[entry.Entry], len(args))

	err = a.sess.CreateBuckets(ctx, args, session.Funcs{
		BucketCreated: func(b entry.Entry) { ch <- result[entry.Entry]{val: b} },
		Error:         func(e *session.OpError) { ch <- result[entry.Entry]{err: e} },
	})
	if err != nil {
		return err
	}

	var errs []error

	for range args {
		b, err := receive(ctx, ch)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		cc.Statusf("Created bucket %s (%s)\n", b.Name, b.ID)
	}

	return errors.Join(errs...)
}

func runRmbucket(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		errs  []error
		ids   []string
		names = make(map[string]string, len(args))
	)

	for _, name := range args {
		id, err := a.bucketID(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		ids = append(ids, id)
		names[id] = name
	}

	if len(ids) == 0 {
		return errors.Join(errs...)
	}

	ch := make(chan result[string], len(ids))

	err = a.sess.DeleteBuckets(ctx, ids, session.Funcs{
		BucketDeleted: func(id string) { ch <- result[string]{val: id} },
		Error:         func(e *session.OpError) { ch <- result[string]{err: e} },
	})
	if err != nil {
		return err
	}

	for range ids {
		id, err := receive(ctx, ch)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		cc.Statusf("Deleted bucket %s\n", names[id])
	}

	return errors.Join(errs...)
}

func runRm(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	recursive, err := cmd.Flags().GetBool("recursive")
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var errs []error

	// Group file IDs by bucket so each bucket gets one batched delete.
	targets := make(map[string][]string)
	names := make(map[string]string)
	bucketIDs := make(map[string]string)

	for _, arg := range args {
		rp, err := parseRemotePath(arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		bucketID, ok := bucketIDs[rp.Bucket]
		if !ok {
			if bucketID, err = a.bucketID(ctx, rp.Bucket); err != nil {
				errs = append(errs, err)
				continue
			}

			bucketIDs[rp.Bucket] = bucketID
		}

		if rp.IsDir() {
			if !recursive {
				errs = append(errs, fmt.Errorf("%s is a folder; use --recursive to delete its files", rp))
				continue
			}

			files, err := a.sess.Files(ctx, bucketID)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			for i := range files {
				if files[i].Decrypted && strings.HasPrefix(files[i].Name, rp.Name) {
					targets[bucketID] = append(targets[bucketID], files[i].ID)
					names[files[i].ID] = rp.Bucket + entry.Separator + files[i].Name
				}
			}

			continue
		}

		id, err := a.fileID(ctx, bucketID, rp.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		targets[bucketID] = append(targets[bucketID], id)
		names[id] = rp.String()
	}

	for bucketID, ids := range targets {
		errs = append(errs, a.deleteFiles(ctx, cc, bucketID, ids, names))
	}

	return errors.Join(errs...)
}

func (a *app) deleteFiles(ctx context.Context, cc *CLIContext, bucketID string, ids []string, names map[string]string) error {
	ch := make(chan result[string], len(ids))

	err := a.sess.DeleteFiles(ctx, bucketID, ids, session.Funcs{
		FileDeleted: func(id string) { ch <- result[string]{val: id} },
		Error:       func(e *session.OpError) { ch <- result[string]{err: e} },
	})
	if err != nil {
		return err
	}

	var errs []error

	for range ids {
		id, err := receive(ctx, ch)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		cc.Statusf("Deleted %s\n", names[id])
	}

	return errors.Join(errs...)
}

// transferFuncs returns callbacks that print progress and report the single
// terminal outcome of a transfer on done.
func transferFuncs(cc *CLIContext, done chan<- error) session.Funcs {
	progress := func(_ string, p session.Progress) {
		cc.Statusf("\r%s", formatProgress(p))
	}

	return session.Funcs{
		DownloadProgress: progress,
		UploadProgress:   progress,
		DownloadComplete: func(_, _ string) { done <- nil },
		UploadComplete:   func(_ string, _ entry.Entry) { done <- nil },
		Error:            func(e *session.OpError) { done <- e },
	}
}

// awaitTransfer waits for a transfer to finish. An interrupt cancels it.
func (a *app) awaitTransfer(ctx context.Context, h session.Handle, done <-chan error) error {
	select {
	case err := <-done:
		a.cc.Statusf("\n")
		return err
	case <-ctx.Done():
		a.sess.Cancel(h)
		a.cc.Statusf("\n")

		return fmt.Errorf("transfer canceled: %w", ctx.Err())
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)

	rp, err := parseRemotePath(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := a.resolveFile(ctx, rp)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	cb := transferFuncs(cc, done)

	var h session.Handle

	switch {
	case len(args) > 1:
		h, err = a.sess.DownloadFileTo(ctx, file.BucketID, file, downloadTarget(args[1], file), cb)
	case cc.Cfg.DownloadDir != "":
		h, err = a.sess.DownloadFile(ctx, file.BucketID, file, cb)
	default:
		h, err = a.sess.DownloadFileTo(ctx, file.BucketID, file, file.SimpleName(), cb)
	}

	if err != nil {
		return err
	}

	cc.Logger.Debug("download started", slog.String("handle", string(h)), slog.String("file_id", file.ID))

	if err := a.awaitTransfer(ctx, h, done); err != nil {
		return err
	}

	cc.Statusf("Downloaded %s (%s)\n", rp, formatSize(file.Size()))

	return nil
}

// downloadTarget maps a local path argument to a file path: an existing
// directory receives the remote file's own name.
func downloadTarget(local string, file entry.Entry) string {
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return filepath.Join(local, file.SimpleName())
	}

	return local
}

func runPut(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)
	localPath := args[0]

	rp, err := parseRemotePath(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	bucketID, err := a.bucketID(ctx, rp.Bucket)
	if err != nil {
		return err
	}

	name := rp.uploadName(filepath.Base(localPath))
	done := make(chan error, 1)

	h, err := a.sess.UploadFile(ctx, bucketID, name, localPath, transferFuncs(cc, done))
	if err != nil {
		return err
	}

	cc.Logger.Debug("upload started", slog.String("handle", string(h)), slog.String("name", name))

	if err := a.awaitTransfer(ctx, h, done); err != nil {
		return err
	}

	cc.Statusf("Uploaded %s to %s/%s\n", localPath, rp.Bucket, name)

	return nil
}
