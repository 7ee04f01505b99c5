// Package session owns the lifecycle of one authenticated bridge session and
// the asynchronous operations issued against it. Operations return
// immediately; their results are delivered to caller-supplied callbacks, one
// at a time, from the session's dispatch loop.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/endpoint"
	"github.com/tonimelisma/storj-go/internal/entry"
	"github.com/tonimelisma/storj-go/internal/keys"
	"github.com/tonimelisma/storj-go/internal/transfer"
)

// DefaultParallelism bounds fan-out requests when Options.Parallelism is unset.
const DefaultParallelism = 8

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Bridge is the backend surface the session drives. Satisfied by
// *bridge.Client.
type Bridge interface {
	ListBuckets(ctx context.Context) ([]entry.Entry, error)
	GetBucket(ctx context.Context, bucketID string) (entry.Entry, error)
	CreateBucket(ctx context.Context, name string) (entry.Entry, error)
	DeleteBucket(ctx context.Context, bucketID string) error
	GetBucketID(ctx context.Context, name string) (string, error)

	ListFiles(ctx context.Context, bucketID string) ([]entry.Entry, error)
	GetFile(ctx context.Context, bucketID, fileID string) (entry.Entry, error)
	DeleteFile(ctx context.Context, bucketID, fileID string) error
	GetFileID(ctx context.Context, bucketID, name string) (string, error)

	Download(ctx context.Context, bucketID, fileID string, w io.Writer, progress bridge.ProgressFunc) (int64, error)
	Upload(
		ctx context.Context, bucketID, name string, r io.Reader, size int64, progress bridge.ProgressFunc,
	) (entry.Entry, error)

	Info(ctx context.Context) (*bridge.Info, error)
	Register(ctx context.Context, user, pass string) (string, error)
}

// DialFunc builds a Bridge bound to an endpoint and credentials. Zero keys
// yield a client suitable only for unauthenticated calls.
type DialFunc func(ep endpoint.Endpoint, k keys.Keys) Bridge

// HTTPDialer returns a DialFunc producing *bridge.Client values that share
// httpClient. A nil httpClient uses http.DefaultClient; an empty userAgent
// keeps bridge.DefaultUserAgent.
func HTTPDialer(httpClient *http.Client, userAgent string, logger *slog.Logger) DialFunc {
	return func(ep endpoint.Endpoint, k keys.Keys) Bridge {
		c := bridge.NewClient(ep, httpClient, k, logger)
		c.SetUserAgent(userAgent)

		return c
	}
}

// CredentialStore persists keys per bridge host. Satisfied by
// *credstore.Store.
type CredentialStore interface {
	Exists(host string) bool
	Write(host string, k keys.Keys, passphrase string) error
	Read(host, passphrase string) (keys.Keys, error)
	Delete(host string) error
}

// KeyWatcher is implemented by credential stores that can report changes to
// a host's stored keys. Watch blocks until ctx is done.
type KeyWatcher interface {
	Watch(ctx context.Context, host string, onChange func()) error
}

// Options configures a Session.
type Options struct {
	Endpoint     endpoint.Endpoint
	Store        CredentialStore // nil: keys must be supplied via ImportKeys
	Dial         DialFunc
	Logger       *slog.Logger
	PollInterval time.Duration
	Parallelism  int
	DownloadDir  string
	Limiter      *transfer.BandwidthLimiter
	Observer     TransferObserver
}

// Session is one caller-owned connection to a bridge. Create it with New;
// the zero value is not usable. All methods are safe for concurrent use.
type Session struct {
	ep          endpoint.Endpoint
	store       CredentialStore
	dial        DialFunc
	logger      *slog.Logger
	interval    time.Duration
	parallelism int
	downloadDir string
	limiter     *transfer.BandwidthLimiter
	observer    TransferObserver

	initGroup singleflight.Group

	mu    sync.Mutex
	state State
	keys  keys.Keys
	inc   *incarnation
	gen   uint64
}

// New creates an uninitialized Session. Nothing touches the network or the
// credential store until the first operation.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ep := opts.Endpoint
	if ep.IsZero() {
		ep = endpoint.Default()
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	dial := opts.Dial
	if dial == nil {
		dial = HTTPDialer(nil, "", logger)
	}

	return &Session{
		ep:          ep,
		store:       opts.Store,
		dial:        dial,
		logger:      logger.With(slog.String("bridge", ep.Key())),
		interval:    interval,
		parallelism: parallelism,
		downloadDir: opts.DownloadDir,
		limiter:     opts.Limiter,
		observer:    opts.Observer,
	}
}

// Endpoint returns the bridge this session talks to.
func (s *Session) Endpoint() endpoint.Endpoint {
	return s.ep
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// CheckSession makes sure the session is active, initializing it lazily from
// previously loaded keys or, failing that, from the credential store with the
// empty passphrase. Concurrent first calls share one initialization.
func (s *Session) CheckSession() error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateActive:
		return nil
	case StateDestroyed:
		return ErrDestroyed
	case StateUninitialized:
	}

	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		return nil, s.initialize()
	})

	return err
}

func (s *Session) initialize() error {
	s.mu.Lock()
	if s.state == StateActive {
		s.mu.Unlock()
		return nil
	}

	if s.state == StateDestroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}

	k := s.keys
	s.mu.Unlock()

	if k.IsZero() {
		loaded, err := s.readStore("")
		if err != nil {
			return err
		}

		k = loaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateActive:
		return nil
	case StateDestroyed:
		return ErrDestroyed
	case StateUninitialized:
	}

	s.keys = k
	s.startLocked()

	return nil
}

// readStore loads keys for this session's host. Missing or unreadable keys
// are reported as ErrKeysNotFound, wrapping the store's reason.
func (s *Session) readStore(passphrase string) (keys.Keys, error) {
	if s.store == nil {
		return keys.Keys{}, ErrKeysNotFound
	}

	k, err := s.store.Read(s.ep.Key(), passphrase)
	if err != nil {
		return keys.Keys{}, fmt.Errorf("%w: %w", ErrKeysNotFound, err)
	}

	return k, nil
}

// startLocked creates and starts a fresh incarnation. Caller holds s.mu.
func (s *Session) startLocked() {
	s.gen++
	s.inc = newIncarnation(s, s.gen, s.dial(s.ep, s.keys))
	s.state = StateActive

	s.logger.Info("session started", slog.Any("keys", s.keys), slog.Uint64("generation", s.gen))
}

// teardownLocked stops the current incarnation, if any, and returns the
// session to StateUninitialized. Caller holds s.mu.
func (s *Session) teardownLocked() {
	if s.inc == nil {
		return
	}

	s.inc.stop()
	s.logger.Info("session stopped", slog.Uint64("generation", s.inc.gen))
	s.inc = nil
	s.state = StateUninitialized
}

// active returns the running incarnation, initializing it if needed.
func (s *Session) active() (*incarnation, error) {
	// A concurrent teardown between CheckSession and the lookup below is
	// retried once so a key reload does not surface as an error.
	for range 2 {
		if err := s.CheckSession(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		inc := s.inc
		s.mu.Unlock()

		if inc != nil {
			return inc, nil
		}
	}

	return nil, ErrKeysNotFound
}

// ImportKeys stores k under passphrase (when a store is configured) and
// restarts the session with the new credentials.
func (s *Session) ImportKeys(k keys.Keys, passphrase string) error {
	if s.State() == StateDestroyed {
		return ErrDestroyed
	}

	if s.store != nil {
		if err := s.store.Write(s.ep.Key(), k, passphrase); err != nil {
			return fmt.Errorf("session: storing keys: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroyed {
		return ErrDestroyed
	}

	s.teardownLocked()
	s.keys = k
	s.startLocked()

	return nil
}

// LoadKeys reads stored keys with passphrase. The session restarts with them
// on its next operation if they differ from the keys currently in use.
func (s *Session) LoadKeys(passphrase string) error {
	k, err := s.readStore(passphrase)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroyed {
		return ErrDestroyed
	}

	if k != s.keys {
		s.teardownLocked()
		s.keys = k
	}

	return nil
}

// KeysExist reports whether the credential store holds keys for this host.
func (s *Session) KeysExist() bool {
	return s.store != nil && s.store.Exists(s.ep.Key())
}

// DeleteKeys removes this host's stored keys. The running session, if any,
// keeps its in-memory credentials.
func (s *Session) DeleteKeys() error {
	if s.store == nil {
		return nil
	}

	if err := s.store.Delete(s.ep.Key()); err != nil {
		return fmt.Errorf("session: deleting keys: %w", err)
	}

	return nil
}

// WatchKeys follows changes to this host's stored keys until ctx is done.
// Deleted keys tear the session down; rewritten keys that open with the empty
// passphrase replace the current ones. Blocks; run it in its own goroutine.
func (s *Session) WatchKeys(ctx context.Context) error {
	w, ok := s.store.(KeyWatcher)
	if !ok {
		return fmt.Errorf("session: credential store does not support watching")
	}

	return w.Watch(ctx, s.ep.Key(), s.reloadKeys)
}

func (s *Session) reloadKeys() {
	if !s.store.Exists(s.ep.Key()) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.state == StateDestroyed {
			return
		}

		s.logger.Info("stored keys removed, dropping session")
		s.teardownLocked()
		s.keys = keys.Keys{}

		return
	}

	k, err := s.store.Read(s.ep.Key(), "")
	if err != nil {
		s.logger.Debug("stored keys changed but cannot be read without a passphrase",
			slog.String("error", err.Error()),
		)

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroyed || k == s.keys {
		return
	}

	s.logger.Info("stored keys changed, restarting session on next use")
	s.teardownLocked()
	s.keys = k
}

// Destroy stops the dispatch loop, cancels in-flight work and invalidates
// every handle. No callback is delivered afterwards. Idempotent.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroyed {
		return
	}

	s.teardownLocked()
	s.keys = keys.Keys{}
	s.state = StateDestroyed
	s.logger.Info("session destroyed")
}
