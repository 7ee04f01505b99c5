// Package keys holds the secret bundle used to authenticate against a bridge
// and to decrypt bucket and file names. It is a leaf package shared by the
// bridge client, the credential store and the session manager.
package keys

import (
	"fmt"
	"log/slog"
)

// redacted replaces secret values in any textual rendering of Keys.
const redacted = "[redacted]"

// Keys is the user/pass/mnemonic triple for one bridge account. Pass and
// Mnemonic must never reach logs or error messages; String and LogValue
// render them redacted.
type Keys struct {
	User     string `json:"user"`
	Pass     string `json:"pass"`
	Mnemonic string `json:"mnemonic"`
}

// IsZero reports whether no credentials are present.
func (k Keys) IsZero() bool {
	return k.User == "" && k.Pass == "" && k.Mnemonic == ""
}

// WithMnemonic returns a copy of k using the given mnemonic. Used for the
// empty-secret verification pass.
func (k Keys) WithMnemonic(mnemonic string) Keys {
	k.Mnemonic = mnemonic
	return k
}

// String implements fmt.Stringer with secrets redacted.
func (k Keys) String() string {
	return fmt.Sprintf("Keys{User: %q, Pass: %s, Mnemonic: %s}", k.User, redacted, redacted)
}

// GoString keeps %#v from leaking secrets too.
func (k Keys) GoString() string {
	return k.String()
}

// LogValue implements slog.LogValuer so a Keys value passed to a logger only
// exposes the user.
func (k Keys) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", k.User),
		slog.String("pass", redacted),
		slog.String("mnemonic", redacted),
	)
}

var (
	_ fmt.Stringer   = Keys{}
	_ fmt.GoStringer = Keys{}
	_ slog.LogValuer = Keys{}
)
