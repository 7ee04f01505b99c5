package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/credstore"
	"github.com/tonimelisma/storj-go/internal/endpoint"
	"github.com/tonimelisma/storj-go/internal/keys"
	"github.com/tonimelisma/storj-go/internal/ledger"
	"github.com/tonimelisma/storj-go/internal/session"
	"github.com/tonimelisma/storj-go/internal/transfer"
	"github.com/tonimelisma/storj-go/internal/tree"
)

// newDialer builds the bridge dialer. Replaced in tests.
var newDialer = session.HTTPDialer

// app bundles the per-invocation session and its collaborators.
type app struct {
	cc      *CLIContext
	ep      endpoint.Endpoint
	store   *credstore.Store
	sess    *session.Session
	fs      *tree.FS
	history *ledger.Ledger // nil when history is disabled

	stopWatch context.CancelFunc
}

// newApp wires a session from the resolved configuration. The session stays
// uninitialized until the first operation; call unlock before operations
// that need credentials.
func newApp(ctx context.Context, cc *CLIContext) (*app, error) {
	cfg := cc.Cfg

	ep, err := endpoint.Parse(cfg.BridgeURL)
	if err != nil {
		return nil, fmt.Errorf("bridge url: %w", err)
	}

	httpClient, err := bridge.NewHTTPClient(cfg.Timeout, cfg.CAFile)
	if err != nil {
		return nil, err
	}

	limiter, err := transfer.NewBandwidthLimiter(cfg.BandwidthLimit, cc.Logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cc:    cc,
		ep:    ep,
		store: credstore.New(cfg.KeysDir(), cc.Logger),
	}

	opts := session.Options{
		Endpoint:     ep,
		Store:        a.store,
		Dial:         newDialer(httpClient, cfg.UserAgent, cc.Logger),
		Logger:       cc.Logger,
		PollInterval: cfg.PollInterval,
		Parallelism:  cfg.ParallelRequests,
		DownloadDir:  cfg.DownloadDir,
		Limiter:      limiter,
	}

	if cfg.HistoryEnabled {
		a.history, err = ledger.Open(ctx, cfg.HistoryPath(), cc.Logger)
		if err != nil {
			return nil, err
		}

		opts.Observer = a.history
	}

	a.sess = session.New(opts)
	a.fs = tree.NewFS(a.sess, cc.Logger)

	if cfg.WatchKeys {
		watchCtx, cancel := context.WithCancel(ctx)
		a.stopWatch = cancel

		go func() {
			if err := a.sess.WatchKeys(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				cc.Logger.Warn("watching stored keys failed", slog.String("error", err.Error()))
			}
		}()
	}

	cc.Logger.Debug("session configured",
		slog.String("bridge", ep.String()),
		slog.Bool("history", cfg.HistoryEnabled),
		slog.Int("parallel_requests", cfg.ParallelRequests),
	)

	return a, nil
}

// unlock activates the session. Keys stored without a passphrase load
// silently; otherwise the passphrase is taken from STORJ_KEYPASS or asked for.
func (a *app) unlock(p *prompter) error {
	err := a.sess.CheckSession()
	if err == nil {
		return nil
	}

	if !errors.Is(err, credstore.ErrWrongPassphrase) {
		if errors.Is(err, session.ErrKeysNotFound) {
			return fmt.Errorf("no keys stored for %s; run 'storj-go import-keys' first", a.ep)
		}

		return err
	}

	pass, err := p.passphrase()
	if err != nil {
		return err
	}

	if err := a.sess.LoadKeys(pass); err != nil {
		if errors.Is(err, credstore.ErrWrongPassphrase) {
			return errors.New("wrong key passphrase")
		}

		return err
	}

	return a.sess.CheckSession()
}

// storedKeys reads this bridge's keys from the store, asking for the
// passphrase when the empty one does not open them.
func (a *app) storedKeys(p *prompter) (keys.Keys, error) {
	host := a.ep.Key()

	k, err := a.store.Read(host, "")
	if errors.Is(err, credstore.ErrNotFound) {
		return keys.Keys{}, fmt.Errorf("no keys stored for %s", a.ep)
	}

	if !errors.Is(err, credstore.ErrWrongPassphrase) {
		return k, err
	}

	pass, err := p.passphrase()
	if err != nil {
		return keys.Keys{}, err
	}

	k, err = a.store.Read(host, pass)
	if err != nil {
		return keys.Keys{}, fmt.Errorf("reading keys: %w", err)
	}

	return k, nil
}

// Close destroys the session and releases the history database.
func (a *app) Close() {
	if a.stopWatch != nil {
		a.stopWatch()
	}

	a.sess.Destroy()

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.cc.Logger.Warn("closing transfer history", slog.String("error", err.Error()))
		}
	}
}
