// Package ledger keeps a durable history of file transfers in SQLite. Each
// transfer is recorded as "running" when it starts and updated once it ends;
// rows still running when the ledger is reopened belong to a process that
// died mid-transfer and are marked "interrupted".
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/session"
)

// Status is the state of a recorded transfer.
type Status string

const (
	StatusRunning     Status = "running"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
	StatusCanceled    Status = "canceled"
	StatusInterrupted Status = "interrupted"
)

// ErrNotFound is returned when no transfer matches a handle.
var ErrNotFound = errors.New("ledger: transfer not found")

// Record is one row of transfer history.
type Record struct {
	ID         int64
	Handle     string
	Direction  string
	BucketID   string
	FileID     string
	Name       string
	LocalPath  string
	Status     Status
	Size       int64
	BytesDone  int64
	LocalHash  string // hex SHA-256 of the local content of a finished transfer
	ErrorCode  int
	ErrorMsg   string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// Ledger records transfers. Implements session.TransferObserver.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

var _ session.TransferObserver = (*Ledger)(nil)

// Open opens (creating if needed) the history database at dbPath, applies
// migrations and marks transfers left running by an earlier process as
// interrupted.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil { //nolint:mnd // owner-only dir perms
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", dbPath, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=busy_timeout(5000)&_pragma=journal_size_limit(67108864)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	l := &Ledger{db: db, logger: logger, nowFunc: time.Now}

	n, err := l.markInterrupted(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	if n > 0 {
		logger.Warn("marked stale transfers as interrupted", slog.Int("count", n))
	}

	logger.Debug("transfer ledger opened", slog.String("db_path", dbPath))

	return l, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("ledger: closing database: %w", err)
	}

	return nil
}

func (l *Ledger) markInterrupted(ctx context.Context) (int, error) {
	result, err := l.db.ExecContext(ctx,
		`UPDATE transfers SET status = ?, finished_at = ? WHERE status = ?`,
		string(StatusInterrupted), l.nowFunc().UnixNano(), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("ledger: marking interrupted transfers: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger: counting interrupted transfers: %w", err)
	}

	return int(n), nil
}

// Start records a new running transfer.
func (l *Ledger) Start(ctx context.Context, r Record) error {
	if r.Handle == "" {
		return fmt.Errorf("ledger: transfer handle must not be empty")
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO transfers
			(handle, direction, bucket_id, file_id, name, local_path, status, size, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Handle, r.Direction, r.BucketID, r.FileID, r.Name, r.LocalPath,
		string(StatusRunning), r.Size, l.nowFunc().UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: recording start of %s: %w", r.Handle, err)
	}

	return nil
}

// Finish moves a running transfer to its final status. fileID, when
// non-empty, replaces the recorded file ID (uploads learn theirs at the end);
// localHash is empty unless the content reached or left the disk in full.
func (l *Ledger) Finish(
	ctx context.Context, handle string, status Status, bytesDone int64, fileID, localHash string, code int, msg string,
) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE transfers
			SET status = ?, bytes_done = ?, file_id = COALESCE(NULLIF(?, ''), file_id),
			    local_hash = ?, error_code = ?, error_msg = ?, finished_at = ?
			WHERE handle = ? AND status = ?`,
		string(status), bytesDone, fileID, localHash, code, msg, l.nowFunc().UnixNano(), handle, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("ledger: recording end of %s: %w", handle, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: recording end of %s: %w", handle, err)
	}

	if n == 0 {
		return fmt.Errorf("ledger: no running transfer %s: %w", handle, ErrNotFound)
	}

	return nil
}

const selectColumns = `SELECT id, handle, direction, bucket_id, file_id, name, local_path, status,
	size, bytes_done, local_hash, error_code, error_msg, started_at, finished_at FROM transfers`

// Get returns the transfer recorded under handle.
func (l *Ledger) Get(ctx context.Context, handle string) (*Record, error) {
	row := l.db.QueryRowContext(ctx, selectColumns+` WHERE handle = ?`, handle)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("ledger: loading %s: %w", handle, err)
	}

	return r, nil
}

// Recent returns up to limit transfers, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying history: %w", err)
	}
	defer rows.Close()

	var out []Record

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scanning history row: %w", err)
		}

		out = append(out, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating history rows: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		r        Record
		status   string
		started  int64
		finished sql.NullInt64
	)

	err := s.Scan(&r.ID, &r.Handle, &r.Direction, &r.BucketID, &r.FileID, &r.Name, &r.LocalPath,
		&status, &r.Size, &r.BytesDone, &r.LocalHash, &r.ErrorCode, &r.ErrorMsg, &started, &finished)
	if err != nil {
		return nil, err
	}

	r.Status = Status(status)
	r.StartedAt = time.Unix(0, started)

	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64)
	}

	return &r, nil
}

// TransferStarted records ev as running. Failures are logged; history must
// never get in the way of a transfer.
func (l *Ledger) TransferStarted(ev session.TransferEvent) {
	err := l.Start(context.Background(), Record{
		Handle:    string(ev.Handle),
		Direction: string(ev.Direction),
		BucketID:  ev.BucketID,
		FileID:    ev.FileID,
		Name:      ev.Name,
		LocalPath: ev.LocalPath,
		Size:      ev.Size,
	})
	if err != nil {
		l.logger.Warn("failed to record transfer start", slog.String("error", err.Error()))
	}
}

// TransferFinished records how ev ended.
func (l *Ledger) TransferFinished(ev session.TransferEvent, outcome session.TransferOutcome, bytes int64, err error) {
	var (
		code int
		msg  string
	)

	if err != nil {
		code = int(bridge.CodeOf(err))
		msg = err.Error()
	}

	if finishErr := l.Finish(context.Background(), string(ev.Handle), statusOf(outcome), bytes, ev.FileID, ev.LocalHash, code, msg); finishErr != nil {
		l.logger.Warn("failed to record transfer end", slog.String("error", finishErr.Error()))
	}
}

func statusOf(outcome session.TransferOutcome) Status {
	switch outcome {
	case session.OutcomeDone:
		return StatusDone
	case session.OutcomeCanceled:
		return StatusCanceled
	case session.OutcomeFailed:
		return StatusFailed
	default:
		return StatusFailed
	}
}
