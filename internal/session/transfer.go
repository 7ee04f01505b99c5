package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/entry"
	"github.com/tonimelisma/storj-go/internal/transfer"
)

// Handle identifies an in-flight transfer for Cancel. It is valid from the
// moment the transfer starts until its terminal callback has been delivered
// or it has been canceled, and never outlives the session incarnation that
// issued it.
type Handle string

// TransferDirection tells downloads and uploads apart in observer events.
type TransferDirection string

const (
	DirectionDownload TransferDirection = "download"
	DirectionUpload   TransferDirection = "upload"
)

// TransferOutcome is how a transfer ended.
type TransferOutcome string

const (
	OutcomeDone     TransferOutcome = "done"
	OutcomeFailed   TransferOutcome = "failed"
	OutcomeCanceled TransferOutcome = "canceled"
)

// TransferEvent describes a transfer to a TransferObserver.
type TransferEvent struct {
	Handle    Handle
	Direction TransferDirection
	BucketID  string
	FileID    string // empty for uploads until the backend assigned one
	Name      string
	LocalPath string
	Size      int64
	LocalHash string // hex SHA-256 of the local content, set once done
}

// TransferObserver is told when transfers start and end. Methods are called
// from worker goroutines, not from the dispatch loop, and must not block for
// long. TransferFinished returns before the terminal callback is queued.
type TransferObserver interface {
	TransferStarted(ev TransferEvent)
	TransferFinished(ev TransferEvent, outcome TransferOutcome, bytes int64, err error)
}

type handlePhase int

const (
	phaseRunning handlePhase = iota
	phaseTerminalQueued
	phaseCanceled
)

type handleState struct {
	phase       handlePhase
	cancel      context.CancelFunc
	lastPercent int
}

// DownloadFile downloads file into the configured download directory, named
// after the file's simple name.
func (s *Session) DownloadFile(ctx context.Context, bucketID string, file entry.Entry, cb DownloadCallback) (Handle, error) {
	if s.downloadDir == "" {
		return "", ErrDownloadDirNotSet
	}

	if err := os.MkdirAll(s.downloadDir, 0o700); err != nil { //nolint:mnd // owner-only dir perms
		return "", fmt.Errorf("%w: %w", ErrInvalidLocalPath, err)
	}

	return s.DownloadFileTo(ctx, bucketID, file, filepath.Join(s.downloadDir, localName(file)), cb)
}

// localName picks a safe local file name for a remote file.
func localName(file entry.Entry) string {
	name := entry.SimpleName(file.Name)
	if !file.Decrypted || name == "" || name == "." || name == ".." {
		return file.ID
	}

	return name
}

// DownloadFileTo downloads file to localPath, whose parent directory must
// exist. Content lands in a ".partial" sibling first and replaces localPath
// only once complete.
func (s *Session) DownloadFileTo(
	ctx context.Context, bucketID string, file entry.Entry, localPath string, cb DownloadCallback,
) (Handle, error) {
	if err := checkDownloadTarget(localPath); err != nil {
		return "", err
	}

	inc, err := s.active()
	if err != nil {
		return "", err
	}

	job := transferJob{
		event: TransferEvent{
			Direction: DirectionDownload,
			BucketID:  bucketID,
			FileID:    file.ID,
			Name:      file.Name,
			LocalPath: localPath,
			Size:      file.Size(),
		},
		subject:  file.ID,
		progress: func(p Progress) { cb.OnDownloadProgress(file.ID, p) },
		fail:     cb.OnError,
		run: func(ctx context.Context, ev *TransferEvent, progress bridge.ProgressFunc) (int64, func(), error) {
			res, err := inc.transfers.DownloadToFile(ctx, bucketID, file.ID, localPath, transfer.DownloadOpts{
				RemoteSize: file.Size(),
				Progress:   progress,
			})
			if err != nil {
				return 0, nil, err
			}

			ev.LocalHash = res.LocalHash

			return res.Size, func() { cb.OnDownloadComplete(file.ID, res.Path) }, nil
		},
	}

	return inc.startTransfer(ctx, job), nil
}

// UploadFile uploads the regular file at localPath into bucketID as name.
// An empty name uses the local file's base name.
func (s *Session) UploadFile(
	ctx context.Context, bucketID, name, localPath string, cb UploadCallback,
) (Handle, error) {
	size, err := checkUploadSource(localPath)
	if err != nil {
		return "", err
	}

	if name == "" {
		name = filepath.Base(localPath)
	}

	inc, err := s.active()
	if err != nil {
		return "", err
	}

	job := transferJob{
		event: TransferEvent{
			Direction: DirectionUpload,
			BucketID:  bucketID,
			Name:      name,
			LocalPath: localPath,
			Size:      size,
		},
		subject:  localPath,
		progress: func(p Progress) { cb.OnUploadProgress(localPath, p) },
		fail:     cb.OnError,
		run: func(ctx context.Context, ev *TransferEvent, progress bridge.ProgressFunc) (int64, func(), error) {
			res, err := inc.transfers.UploadFile(ctx, bucketID, name, localPath, transfer.UploadOpts{
				Progress: progress,
			})
			if err != nil {
				return 0, nil, err
			}

			ev.FileID = res.File.ID
			ev.LocalHash = res.LocalHash

			return res.Size, func() { cb.OnUploadComplete(localPath, res.File) }, nil
		},
	}

	return inc.startTransfer(ctx, job), nil
}

// Cancel asks for an in-flight transfer to stop. It reports whether the
// request was accepted: true for a running transfer, whose later progress and
// terminal callbacks are then suppressed, and true for one whose terminal
// callback is already queued, which may still be delivered. Unknown,
// finished, already canceled or stale handles yield false.
func (s *Session) Cancel(h Handle) bool {
	s.mu.Lock()
	inc := s.inc
	s.mu.Unlock()

	if inc == nil {
		return false
	}

	return inc.cancelHandle(h)
}

func checkDownloadTarget(localPath string) error {
	if localPath == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidLocalPath)
	}

	if info, err := os.Stat(localPath); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidLocalPath, localPath)
	}

	parent := filepath.Dir(localPath)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: parent directory %s does not exist", ErrInvalidLocalPath, parent)
	}

	return nil
}

func checkUploadSource(localPath string) (int64, error) {
	if localPath == "" {
		return 0, fmt.Errorf("%w: empty path", ErrInvalidLocalPath)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidLocalPath, err)
	}

	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrInvalidLocalPath, localPath)
	}

	return info.Size(), nil
}

// transferJob is the direction-specific part of a transfer. run performs it
// and, on success, returns the byte count and the terminal callback to
// deliver.
type transferJob struct {
	event    TransferEvent
	subject  string
	progress func(p Progress)
	fail     func(err *OpError)
	run      func(ctx context.Context, ev *TransferEvent, progress bridge.ProgressFunc) (int64, func(), error)
}

func (inc *incarnation) startTransfer(ctx context.Context, job transferJob) Handle {
	ctx, release := inc.bind(ctx)
	h := inc.register(release)
	ev := job.event
	ev.Handle = h

	inc.logger.Info("transfer started",
		slog.String("handle", string(h)),
		slog.String("direction", string(ev.Direction)),
		slog.String("bucket_id", ev.BucketID),
		slog.String("path", ev.LocalPath),
	)

	if inc.observer != nil {
		inc.observer.TransferStarted(ev)
	}

	go func() {
		defer release()

		n, deliver, err := job.run(ctx, &ev, func(done, total int64) {
			inc.progress(h, done, total, job.progress)
		})
		if err != nil {
			deliver = func() { job.fail(newOpError(job.subject, err)) }
		}

		settled := inc.settle(h)
		outcome := OutcomeDone

		switch {
		case !settled:
			outcome = OutcomeCanceled
		case errors.Is(err, context.Canceled):
			outcome = OutcomeCanceled
		case err != nil:
			outcome = OutcomeFailed
		}

		inc.logger.Info("transfer finished",
			slog.String("handle", string(h)),
			slog.String("outcome", string(outcome)),
			slog.Int64("bytes", n),
		)

		// Observers hear about the outcome before the caller does.
		if inc.observer != nil {
			inc.observer.TransferFinished(ev, outcome, n, err)
		}

		if settled {
			inc.deliverTerminal(h, deliver)
		}
	}()

	return h
}

func (inc *incarnation) register(cancel context.CancelFunc) Handle {
	h := Handle(uuid.NewString())

	inc.mu.Lock()
	inc.handles[h] = &handleState{phase: phaseRunning, cancel: cancel, lastPercent: -1}
	inc.mu.Unlock()

	return h
}

// progress forwards a progress report to the loop, at most once per whole
// percent, unless the transfer stopped running.
func (inc *incarnation) progress(h Handle, done, total int64, deliver func(Progress)) {
	p := newProgress(done, total)
	percent := int(p.Fraction * 100) //nolint:mnd // percent

	inc.mu.Lock()
	st, ok := inc.handles[h]
	if !ok || st.phase != phaseRunning || (total > 0 && percent == st.lastPercent && done != total) {
		inc.mu.Unlock()
		return
	}

	st.lastPercent = percent
	inc.mu.Unlock()

	inc.post(func() {
		if inc.live(h) {
			deliver(p)
		}
	})
}

// live reports whether h still delivers callbacks: it is known and was not
// canceled. A settled transfer keeps delivering the progress it posted
// before its terminal callback.
func (inc *incarnation) live(h Handle) bool {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	st, ok := inc.handles[h]

	return ok && st.phase != phaseCanceled
}

// settle moves h to its terminal phase unless the transfer was canceled or
// the incarnation stopped. Reports whether the terminal callback may be
// delivered.
func (inc *incarnation) settle(h Handle) bool {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	st, ok := inc.handles[h]
	if !ok || st.phase == phaseCanceled {
		delete(inc.handles, h)
		return false
	}

	st.phase = phaseTerminalQueued

	return true
}

// deliverTerminal queues the terminal callback of a settled transfer and
// retires its handle once delivered.
func (inc *incarnation) deliverTerminal(h Handle, deliver func()) {
	inc.post(func() {
		deliver()

		inc.mu.Lock()
		delete(inc.handles, h)
		inc.mu.Unlock()
	})
}

func (inc *incarnation) cancelHandle(h Handle) bool {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	st, ok := inc.handles[h]
	if !ok {
		return false
	}

	switch st.phase {
	case phaseRunning:
		st.phase = phaseCanceled
		st.cancel()
		inc.logger.Info("transfer canceled", slog.String("handle", string(h)))

		return true
	case phaseTerminalQueued:
		return true
	default:
		return false
	}
}
