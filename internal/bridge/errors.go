// Package bridge provides an HTTP client for the storage bridge API with
// automatic retry, error classification and metadata (name) encryption.
package bridge

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the numeric error classification delivered to callers. HTTP
// statuses map to themselves; bridge, file and metadata failures use the
// 1000+ ranges.
type Code int

// Error codes.
const (
	CodeOK Code = 0

	CodeBadRequest        Code = 400
	CodeUnauthorized      Code = 401
	CodeForbidden         Code = 403
	CodeNotFound          Code = 404
	CodeConflict          Code = 409
	CodeTransferRateLimit Code = 420
	CodeTooManyRequests   Code = 429
	CodeInternalError     Code = 500
	CodeServiceUnavail    Code = 503

	CodeBridgeRequest          Code = 1000
	CodeBridgeAuth             Code = 1001
	CodeBridgeToken            Code = 1002
	CodeBridgeTimeout          Code = 1003
	CodeBridgeInternal         Code = 1004
	CodeBridgeRateLimit        Code = 1005
	CodeBridgeBucketNotFound   Code = 1006
	CodeBridgeFileNotFound     Code = 1007
	CodeBridgeJSON             Code = 1008
	CodeBridgeFrame            Code = 1009
	CodeBridgePointer          Code = 1010
	CodeBridgeRepointer        Code = 1011
	CodeBridgeFileInfo         Code = 1012
	CodeBridgeBucketFileExists Code = 1013
	CodeBridgeOffer            Code = 1014

	CodeFileIntegrity          Code = 2000
	CodeFileWrite              Code = 2001
	CodeFileEncryption         Code = 2002
	CodeFileSize               Code = 2003
	CodeFileDecryption         Code = 2004
	CodeFileGenerateHMAC       Code = 2005
	CodeFileRead               Code = 2006
	CodeFileShardMissing       Code = 2007
	CodeFileRecover            Code = 2008
	CodeFileResize             Code = 2009
	CodeFileUnsupportedErasure Code = 2010
	CodeFileParity             Code = 2011

	CodeMemory    Code = 4000
	CodeMapping   Code = 4001
	CodeUnmapping Code = 4002

	CodeQueue Code = 5000

	CodeMetaEncryption Code = 6000
	CodeMetaDecryption Code = 6001

	CodeHexDecode Code = 7000
)

var codeMessages = map[Code]string{
	CodeOK:                     "No errors",
	CodeBadRequest:             "Bad Request",
	CodeUnauthorized:           "Unauthorized",
	CodeForbidden:              "Forbidden",
	CodeNotFound:               "Not Found",
	CodeConflict:               "Conflict",
	CodeTransferRateLimit:      "Transfer Rate Limit Reached",
	CodeTooManyRequests:        "Too Many Requests",
	CodeInternalError:          "Internal Server Error",
	CodeServiceUnavail:         "Service Unavailable",
	CodeBridgeRequest:          "Bridge request error",
	CodeBridgeAuth:             "Bridge request authorization error",
	CodeBridgeToken:            "Bridge request token error",
	CodeBridgeTimeout:          "Bridge request timeout error",
	CodeBridgeInternal:         "Bridge request internal error",
	CodeBridgeRateLimit:        "Bridge rate limit error",
	CodeBridgeBucketNotFound:   "Bucket is not found",
	CodeBridgeFileNotFound:     "File is not found",
	CodeBridgeJSON:             "Unexpected JSON response",
	CodeBridgeFrame:            "Bridge frame request error",
	CodeBridgePointer:          "Bridge request pointer error",
	CodeBridgeRepointer:        "Bridge request replace pointer error",
	CodeBridgeFileInfo:         "Bridge file info error",
	CodeBridgeBucketFileExists: "File already exists",
	CodeBridgeOffer:            "Unable to receive storage offer",
	CodeFileIntegrity:          "File integrity error",
	CodeFileWrite:              "File write error",
	CodeFileEncryption:         "File encryption error",
	CodeFileSize:               "File size error",
	CodeFileDecryption:         "File decryption error",
	CodeFileGenerateHMAC:       "File hmac generation error",
	CodeFileRead:               "File read error",
	CodeFileShardMissing:       "File missing shard error",
	CodeFileRecover:            "File recover error",
	CodeFileResize:             "File resize error",
	CodeFileUnsupportedErasure: "File unsupported erasure code error",
	CodeFileParity:             "File create parity error",
	CodeMemory:                 "Memory error",
	CodeMapping:                "Memory mapped file error",
	CodeUnmapping:              "Memory mapped file unmap error",
	CodeQueue:                  "Queue error",
	CodeMetaEncryption:         "Meta encryption error",
	CodeMetaDecryption:         "Meta decryption error",
	CodeHexDecode:              "Unable to decode hex string",
}

// Message returns the human-readable text for code.
func Message(code Code) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}

	return "Unknown error"
}

func (c Code) String() string {
	return fmt.Sprintf("%d %s", int(c), Message(c))
}

// Sentinel errors for classification. Use errors.Is(err, bridge.ErrNotFound)
// to check.
var (
	ErrBadRequest     = errors.New("bridge: bad request")
	ErrUnauthorized   = errors.New("bridge: unauthorized")
	ErrForbidden      = errors.New("bridge: forbidden")
	ErrNotFound       = errors.New("bridge: not found")
	ErrConflict       = errors.New("bridge: conflict")
	ErrThrottled      = errors.New("bridge: throttled")
	ErrServerError    = errors.New("bridge: server error")
	ErrRequest        = errors.New("bridge: request failed")
	ErrBadResponse    = errors.New("bridge: unexpected response")
	ErrTransfer       = errors.New("bridge: transfer failed")
	ErrMetaEncryption = errors.New("bridge: name encryption failed")
)

// Error wraps a sentinel with the numeric code, the HTTP status (when the
// failure came from a response) and the response message for debugging.
type Error struct {
	Code       Code
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bridge: HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}

	return fmt.Sprintf("bridge: code %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the classification from err. Errors not produced by the
// bridge classify as CodeBridgeRequest; nil is CodeOK.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}

	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}

	return CodeBridgeRequest
}

// newError builds a non-HTTP classified error.
func newError(code Code, sentinel, cause error) *Error {
	msg := Message(code)
	if cause != nil {
		msg += ": " + cause.Error()
	}

	return &Error{Code: code, Message: msg, Err: sentinel}
}

// classifyStatus maps an HTTP status code to a sentinel error and code.
func classifyStatus(status int) (Code, error) {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest, ErrBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized, ErrUnauthorized
	case http.StatusForbidden:
		return CodeForbidden, ErrForbidden
	case http.StatusNotFound:
		return CodeNotFound, ErrNotFound
	case http.StatusConflict:
		return CodeConflict, ErrConflict
	case int(CodeTransferRateLimit):
		return CodeTransferRateLimit, ErrThrottled
	case http.StatusTooManyRequests:
		return CodeTooManyRequests, ErrThrottled
	case http.StatusServiceUnavailable:
		return CodeServiceUnavail, ErrServerError
	default:
		if status >= http.StatusInternalServerError {
			return CodeInternalError, ErrServerError
		}

		return CodeBridgeRequest, ErrRequest
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
