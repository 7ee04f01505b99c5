package session

import (
	"errors"
	"fmt"

	"github.com/tonimelisma/storj-go/internal/bridge"
)

// Local precondition errors. These are returned synchronously by the
// operation that detected them and never reach a callback.
var (
	ErrKeysNotFound      = errors.New("session: credentials not found")
	ErrDestroyed         = errors.New("session: destroyed")
	ErrDownloadDirNotSet = errors.New("session: download directory not set")
	ErrInvalidLocalPath  = errors.New("session: invalid local path")
	ErrKeysMismatch      = errors.New("session: credentials do not decrypt any bucket name")
)

// OpError is what error callbacks receive: the subject the operation was
// about (bucket ID, file ID, name, local path or listing scope), the
// numeric classification and a human-readable message.
type OpError struct {
	Subject string
	Code    bridge.Code
	Message string
	Err     error
}

func (e *OpError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}

	return fmt.Sprintf("%s: %s (code %d)", e.Subject, e.Message, e.Code)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// newOpError classifies err for delivery to a callback.
func newOpError(subject string, err error) *OpError {
	var be *bridge.Error
	if errors.As(err, &be) {
		return &OpError{Subject: subject, Code: be.Code, Message: be.Message, Err: err}
	}

	return &OpError{Subject: subject, Code: bridge.CodeOf(err), Message: err.Error(), Err: err}
}
