package bridge

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/tonimelisma/storj-go/internal/endpoint"
	"github.com/tonimelisma/storj-go/internal/keys"
)

// Retry and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "storj-go/0.1"
)

// Client is an HTTP client for the bridge API.
// It handles request construction, basic authentication, retry with
// exponential backoff, error classification and name encryption.
type Client struct {
	baseURL    string
	httpClient *http.Client
	user       string
	passHash   string
	names      *NameCipher
	userAgent  string
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a bridge client for ep authenticating with k. A zero k
// yields a client that can only issue unauthenticated calls (Info, Register).
func NewClient(ep endpoint.Endpoint, httpClient *http.Client, k keys.Keys, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    ep.BaseURL(),
		httpClient: httpClient,
		user:       k.User,
		passHash:   hashPassword(k.Pass),
		names:      NewNameCipher(k.Mnemonic),
		userAgent:  DefaultUserAgent,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// SetUserAgent overrides DefaultUserAgent. Empty values are ignored.
func (c *Client) SetUserAgent(ua string) {
	if ua != "" {
		c.userAgent = ua
	}
}

// hashPassword is the form in which the bridge expects passwords: the hex
// SHA-256 digest, never the plaintext.
func hashPassword(pass string) string {
	if pass == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(pass))

	return hex.EncodeToString(sum[:])
}

// Do executes an authenticated request against the bridge. The path is
// appended to the client's base URL. For non-nil bodies, Content-Type is set
// to application/json. The caller is responsible for closing the response
// body on success.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	return c.do(ctx, method, path, body, true)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, authenticated bool) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int
	for {
		resp, err := c.doOnce(ctx, method, url, body, authenticated)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("bridge: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("bridge: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, newError(CodeBridgeRequest, ErrRequest,
				fmt.Errorf("%s %s failed after %d retries: %w", method, path, maxRetries, err))
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			drainAndClose(resp)

			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("bridge: request canceled: %w", err)
			}

			attempt++

			continue
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, responseError(resp)
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url string, body []byte, authenticated bool) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if authenticated {
		req.SetBasicAuth(c.user, c.passHash)
	}

	req.Header.Set("User-Agent", c.userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// errorResponse is the JSON body the bridge sends with non-2xx statuses.
type errorResponse struct {
	Error string `json:"error"`
}

// responseError reads and closes resp and classifies it.
func responseError(resp *http.Response) *Error {
	errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	msg := string(errBody)
	if readErr != nil {
		msg = "(failed to read response body)"
	}

	var er errorResponse
	if json.Unmarshal(errBody, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	code, sentinel := classifyStatus(resp.StatusCode)
	if msg == "" {
		msg = Message(code)
	}

	return &Error{
		Code:       code,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Err:        sentinel,
	}
}

// getJSON issues an authenticated GET and decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, v, true)
}

// doJSON marshals payload (when non-nil), issues the request and decodes the
// JSON response into v (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, payload, v any, authenticated bool) error {
	var body []byte

	if payload != nil {
		var err error

		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("bridge: encoding request: %w", err)
		}
	}

	resp, err := c.do(ctx, method, path, body, authenticated)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v == nil {
		if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
			return fmt.Errorf("bridge: draining response body: %w", copyErr)
		}

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return newError(CodeBridgeJSON, ErrBadResponse, err)
	}

	return nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // best-effort drain for connection reuse
	resp.Body.Close()
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 and 503 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
