package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/endpoint"
	"github.com/tonimelisma/storj-go/internal/entry"
	"github.com/tonimelisma/storj-go/internal/keys"
)

var testKeys = keys.Keys{User: "user@example.com", Pass: "secret", Mnemonic: "abandon about"}

var errNotFound = &bridge.Error{Code: bridge.CodeBridgeBucketNotFound, Message: "Bucket is not found", Err: bridge.ErrNotFound}

// fakeBridge is an in-memory Bridge. Buckets and files are fixed at
// construction; blockTransfers makes Download and Upload wait for ctx.
type fakeBridge struct {
	buckets        []entry.Entry
	files          map[string][]entry.Entry
	content        string
	listErr        error
	blockTransfers bool

	mu       sync.Mutex
	created  []string
	deleted  []string
	uploaded map[string]string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		buckets: []entry.Entry{
			entry.NewBucket("b1", "photos", time.Time{}, true),
			entry.NewBucket("b2", "docs", time.Time{}, true),
		},
		files: map[string][]entry.Entry{
			"b1": {
				entry.NewFile("b1", "f1", "a.txt", time.Time{}, true, entry.FileInfo{Size: 5}),
			},
		},
		content:  "hello",
		uploaded: make(map[string]string),
	}
}

// enter tracks concurrency for fan-out tests.
func (f *fakeBridge) enter() func() {
	f.calls.Add(1)
	n := f.inFlight.Add(1)

	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	time.Sleep(5 * time.Millisecond)

	return func() { f.inFlight.Add(-1) }
}

func (f *fakeBridge) ListBuckets(ctx context.Context) ([]entry.Entry, error) {
	f.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.buckets, nil
}

func (f *fakeBridge) GetBucket(_ context.Context, bucketID string) (entry.Entry, error) {
	defer f.enter()()

	for _, b := range f.buckets {
		if b.ID == bucketID {
			return b, nil
		}
	}

	return entry.Entry{}, errNotFound
}

func (f *fakeBridge) CreateBucket(_ context.Context, name string) (entry.Entry, error) {
	defer f.enter()()

	if name == "" {
		return entry.Entry{}, &bridge.Error{Code: bridge.CodeBadRequest, Message: "Bad Request", Err: bridge.ErrBadRequest}
	}

	f.mu.Lock()
	f.created = append(f.created, name)
	f.mu.Unlock()

	return entry.NewBucket("new-"+name, name, time.Time{}, true), nil
}

func (f *fakeBridge) DeleteBucket(ctx context.Context, bucketID string) error {
	if _, err := f.GetBucket(ctx, bucketID); err != nil {
		return err
	}

	f.mu.Lock()
	f.deleted = append(f.deleted, bucketID)
	f.mu.Unlock()

	return nil
}

func (f *fakeBridge) GetBucketID(_ context.Context, name string) (string, error) {
	for _, b := range f.buckets {
		if b.Name == name {
			return b.ID, nil
		}
	}

	return "", errNotFound
}

func (f *fakeBridge) ListFiles(_ context.Context, bucketID string) ([]entry.Entry, error) {
	f.calls.Add(1)

	files, ok := f.files[bucketID]
	if !ok {
		return nil, errNotFound
	}

	return files, nil
}

func (f *fakeBridge) GetFile(_ context.Context, bucketID, fileID string) (entry.Entry, error) {
	defer f.enter()()

	for _, file := range f.files[bucketID] {
		if file.ID == fileID {
			return file, nil
		}
	}

	return entry.Entry{}, &bridge.Error{Code: bridge.CodeBridgeFileNotFound, Message: "File is not found", Err: bridge.ErrNotFound}
}

func (f *fakeBridge) DeleteFile(ctx context.Context, bucketID, fileID string) error {
	if _, err := f.GetFile(ctx, bucketID, fileID); err != nil {
		return err
	}

	f.mu.Lock()
	f.deleted = append(f.deleted, fileID)
	f.mu.Unlock()

	return nil
}

func (f *fakeBridge) GetFileID(_ context.Context, bucketID, name string) (string, error) {
	for _, file := range f.files[bucketID] {
		if file.Name == name {
			return file.ID, nil
		}
	}

	return "", &bridge.Error{Code: bridge.CodeBridgeFileNotFound, Message: "File is not found", Err: bridge.ErrNotFound}
}

func (f *fakeBridge) Download(
	ctx context.Context, _, _ string, w io.Writer, progress bridge.ProgressFunc,
) (int64, error) {
	if f.blockTransfers {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	n, err := io.WriteString(w, f.content)
	if err != nil {
		return int64(n), err
	}

	if progress != nil {
		progress(int64(n), int64(len(f.content)))
	}

	return int64(n), nil
}

func (f *fakeBridge) Upload(
	ctx context.Context, bucketID, name string, r io.Reader, size int64, progress bridge.ProgressFunc,
) (entry.Entry, error) {
	if f.blockTransfers {
		<-ctx.Done()
		return entry.Entry{}, ctx.Err()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return entry.Entry{}, err
	}

	if progress != nil {
		progress(int64(len(data)), size)
	}

	f.mu.Lock()
	f.uploaded[name] = string(data)
	f.mu.Unlock()

	return entry.NewFile(bucketID, "up-"+name, name, time.Time{}, true, entry.FileInfo{Size: size}), nil
}

func (f *fakeBridge) Info(_ context.Context) (*bridge.Info, error) {
	return &bridge.Info{Title: "Storj Bridge", Version: "1.0.0", Host: "api.example.com"}, nil
}

func (f *fakeBridge) Register(_ context.Context, user, _ string) (string, error) {
	if user == "" {
		return "", &bridge.Error{Code: bridge.CodeBadRequest, Message: "Bad Request", Err: bridge.ErrBadRequest}
	}

	return user, nil
}

// memStore is an in-memory CredentialStore that honors passphrases.
type memStore struct {
	mu     sync.Mutex
	keys   map[string]keys.Keys
	phrase map[string]string
	reads  atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[string]keys.Keys), phrase: make(map[string]string)}
}

var (
	errStoreNotFound   = errors.New("not found")
	errWrongPassphrase = errors.New("wrong passphrase")
)

func (m *memStore) Exists(host string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.keys[host]

	return ok
}

func (m *memStore) Write(host string, k keys.Keys, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys[host] = k
	m.phrase[host] = passphrase

	return nil
}

func (m *memStore) Read(host, passphrase string) (keys.Keys, error) {
	m.reads.Add(1)
	time.Sleep(10 * time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[host]
	if !ok {
		return keys.Keys{}, errStoreNotFound
	}

	if m.phrase[host] != passphrase {
		return keys.Keys{}, errWrongPassphrase
	}

	return k, nil
}

func (m *memStore) Delete(host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, host)
	delete(m.phrase, host)

	return nil
}

// newTestSession returns a session whose every dial yields fb.
func newTestSession(t *testing.T, fb *fakeBridge, opts Options) *Session {
	t.Helper()

	opts.Endpoint = endpoint.MustParse("https://bridge.example.com")
	opts.Dial = func(endpoint.Endpoint, keys.Keys) Bridge { return fb }
	opts.PollInterval = time.Millisecond

	s := New(opts)
	t.Cleanup(s.Destroy)

	return s
}

// recorder collects callbacks for assertions. All methods run on the
// dispatch loop; the mutex guards reads from the test goroutine.
type recorder struct {
	mu        sync.Mutex
	terminal  int
	buckets   []entry.Entry
	files     []entry.Entry
	ids       []string
	errs      []*OpError
	progress  []Progress
	completed []string
	uploaded  []entry.Entry
}

func (r *recorder) funcs() Funcs {
	return Funcs{
		Error: func(e *OpError) { r.end(func() { r.errs = append(r.errs, e) }) },
		BucketsReceived: func(b []entry.Entry) {
			r.end(func() { r.buckets = append(r.buckets, b...) })
		},
		BucketReceived: func(b entry.Entry) { r.end(func() { r.buckets = append(r.buckets, b) }) },
		BucketCreated:  func(b entry.Entry) { r.end(func() { r.buckets = append(r.buckets, b) }) },
		BucketDeleted:  func(id string) { r.end(func() { r.ids = append(r.ids, id) }) },
		IDReceived:     func(_, id string) { r.end(func() { r.ids = append(r.ids, id) }) },
		FilesReceived: func(_ string, f []entry.Entry) {
			r.end(func() { r.files = append(r.files, f...) })
		},
		FileReceived: func(f entry.Entry) { r.end(func() { r.files = append(r.files, f) }) },
		FileDeleted:  func(id string) { r.end(func() { r.ids = append(r.ids, id) }) },
		DownloadProgress: func(_ string, p Progress) {
			r.mu.Lock()
			r.progress = append(r.progress, p)
			r.mu.Unlock()
		},
		DownloadComplete: func(_, path string) { r.end(func() { r.completed = append(r.completed, path) }) },
		UploadProgress: func(_ string, p Progress) {
			r.mu.Lock()
			r.progress = append(r.progress, p)
			r.mu.Unlock()
		},
		UploadComplete: func(path string, f entry.Entry) {
			r.end(func() {
				r.completed = append(r.completed, path)
				r.uploaded = append(r.uploaded, f)
			})
		},
	}
}

// end records one terminal callback.
func (r *recorder) end(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.terminal++
	fn()
}

func (r *recorder) terminals() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.terminal
}

func (r *recorder) waitTerminals(t *testing.T, n int) {
	t.Helper()

	require.Eventually(t, func() bool { return r.terminals() >= n }, 2*time.Second, time.Millisecond)
}

// recordingObserver captures TransferObserver calls.
type recordingObserver struct {
	mu       sync.Mutex
	started  []TransferEvent
	outcomes []TransferOutcome
	finished []TransferEvent
}

func (o *recordingObserver) TransferStarted(ev TransferEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.started = append(o.started, ev)
}

func (o *recordingObserver) TransferFinished(ev TransferEvent, outcome TransferOutcome, _ int64, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.finished = append(o.finished, ev)
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) snapshot() ([]TransferEvent, []TransferOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]TransferEvent(nil), o.finished...), append([]TransferOutcome(nil), o.outcomes...)
}
