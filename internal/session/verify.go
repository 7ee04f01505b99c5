package session

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/entry"
	"github.com/tonimelisma/storj-go/internal/keys"
)

// VerifyKeys checks that k can authenticate and that its mnemonic decrypts
// the account's bucket names. It uses a throwaway bridge client and never
// touches the session's own state.
//
// An account without buckets, or with at least one decryptable bucket name,
// is accepted. When no name decrypts, the buckets are listed again with an
// empty mnemonic: accounts whose buckets were all created without one are
// accepted as well. Anything else fails with CodeMetaDecryption wrapping
// ErrKeysMismatch.
func (s *Session) VerifyKeys(ctx context.Context, k keys.Keys) error {
	buckets, err := s.dial(s.ep, k).ListBuckets(ctx)
	if err != nil {
		return newOpError(k.User, err)
	}

	if len(buckets) == 0 || anyDecrypted(buckets) {
		return nil
	}

	s.logger.Debug("no bucket name decrypts, retrying with empty mnemonic",
		slog.Int("buckets", len(buckets)),
	)

	buckets, err = s.dial(s.ep, k.WithMnemonic("")).ListBuckets(ctx)
	if err != nil {
		return newOpError(k.User, err)
	}

	if len(buckets) > 0 && allDecrypted(buckets) {
		return nil
	}

	return &OpError{
		Subject: k.User,
		Code:    bridge.CodeMetaDecryption,
		Message: bridge.Message(bridge.CodeMetaDecryption),
		Err:     ErrKeysMismatch,
	}
}

func anyDecrypted(buckets []entry.Entry) bool {
	for i := range buckets {
		if buckets[i].Decrypted {
			return true
		}
	}

	return false
}

func allDecrypted(buckets []entry.Entry) bool {
	for i := range buckets {
		if !buckets[i].Decrypted {
			return false
		}
	}

	return true
}

// Info fetches the bridge's self-description. No credentials are needed.
func (s *Session) Info(ctx context.Context) (*bridge.Info, error) {
	info, err := s.dial(s.ep, keys.Keys{}).Info(ctx)
	if err != nil {
		return nil, newOpError(s.ep.String(), err)
	}

	return info, nil
}

// Register creates a new account on the bridge and returns the e-mail the
// bridge registered. The account must be activated before keys work.
func (s *Session) Register(ctx context.Context, user, pass string) (string, error) {
	email, err := s.dial(s.ep, keys.Keys{}).Register(ctx, user, pass)
	if err != nil {
		return "", newOpError(user, err)
	}

	s.logger.Info("account registered", slog.String("user", email))

	return email, nil
}
