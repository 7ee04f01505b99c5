package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/storj-go/internal/bridge"
	"github.com/tonimelisma/storj-go/internal/endpoint"
	"github.com/tonimelisma/storj-go/internal/entry"
	"github.com/tonimelisma/storj-go/internal/keys"
)

func buckets(decrypted ...bool) []entry.Entry {
	out := make([]entry.Entry, 0, len(decrypted))
	for i, d := range decrypted {
		out = append(out, entry.NewBucket(string(rune('a'+i)), "name", time.Time{}, d))
	}

	return out
}

func TestVerifyKeys(t *testing.T) {
	unauthorized := &bridge.Error{Code: bridge.CodeUnauthorized, Message: "Unauthorized", Err: bridge.ErrUnauthorized}

	tests := []struct {
		name      string
		withKey   []entry.Entry
		withEmpty []entry.Entry
		listErr   error
		wantCode  bridge.Code
	}{
		{name: "no buckets", withKey: nil},
		{name: "all decrypt", withKey: buckets(true, true)},
		{name: "one decrypts", withKey: buckets(false, true, false)},
		{name: "created without mnemonic", withKey: buckets(false, false), withEmpty: buckets(true, true)},
		{
			name: "nothing decrypts", withKey: buckets(false, false), withEmpty: buckets(false, false),
			wantCode: bridge.CodeMetaDecryption,
		},
		{
			name: "empty mnemonic decrypts only some", withKey: buckets(false, false), withEmpty: buckets(true, false),
			wantCode: bridge.CodeMetaDecryption,
		},
		{name: "auth failure", listErr: unauthorized, wantCode: bridge.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{
				Endpoint: endpoint.MustParse("https://bridge.example.com"),
				Dial: func(_ endpoint.Endpoint, k keys.Keys) Bridge {
					fb := newFakeBridge()
					fb.listErr = tt.listErr
					fb.buckets = tt.withKey

					if k.Mnemonic == "" {
						fb.buckets = tt.withEmpty
					}

					return fb
				},
			})
			defer s.Destroy()

			err := s.VerifyKeys(context.Background(), testKeys)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}

			var opErr *OpError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, tt.wantCode, opErr.Code)
			assert.Equal(t, testKeys.User, opErr.Subject)

			if tt.wantCode == bridge.CodeMetaDecryption {
				assert.ErrorIs(t, err, ErrKeysMismatch)
			}
		})
	}
}

func TestVerifyKeys_LeavesSessionAlone(t *testing.T) {
	s := newTestSession(t, newFakeBridge(), Options{})

	require.NoError(t, s.VerifyKeys(context.Background(), testKeys))
	assert.Equal(t, StateUninitialized, s.State())
	assert.True(t, s.keys.IsZero())
}

func TestInfoAndRegister(t *testing.T) {
	s := newTestSession(t, newFakeBridge(), Options{})

	info, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Storj Bridge", info.Title)

	email, err := s.Register(context.Background(), "new@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", email)

	_, err = s.Register(context.Background(), "", "pw")

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, bridge.CodeBadRequest, opErr.Code)
	assert.Equal(t, StateUninitialized, s.State(), "unauthenticated calls need no session")
}
