// Package endpoint identifies a bridge by protocol, host and port. It is the
// key under which credentials are stored and the base of every bridge URL.
package endpoint

import (
	"encoding"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Supported protocols.
const (
	ProtoHTTPS = "https"
	ProtoHTTP  = "http"
)

// DefaultURL is the production bridge.
const DefaultURL = "https://api.storj.io:443"

var defaultPorts = map[string]int{
	ProtoHTTPS: 443,
	ProtoHTTP:  80,
}

// Endpoint is a parsed bridge address. The zero value represents an absent
// endpoint.
type Endpoint struct {
	proto string
	host  string
	port  int
}

// Parse validates a raw bridge URL. The port defaults from the protocol when
// omitted; paths, queries and user info are rejected.
func Parse(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("endpoint: empty bridge URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint: parsing %q: %w", raw, err)
	}

	proto := strings.ToLower(u.Scheme)

	defPort, ok := defaultPorts[proto]
	if !ok {
		return Endpoint{}, fmt.Errorf("endpoint: %q has unsupported protocol %q (valid: https, http)", raw, u.Scheme)
	}

	if u.User != nil {
		return Endpoint{}, fmt.Errorf("endpoint: %q must not embed credentials", raw)
	}

	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return Endpoint{}, fmt.Errorf("endpoint: %q must not contain a path, query or fragment", raw)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Endpoint{}, fmt.Errorf("endpoint: %q has no host", raw)
	}

	port := defPort

	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("endpoint: %q has invalid port %q", raw, p)
		}
	}

	return Endpoint{proto: proto, host: host, port: port}, nil
}

// MustParse is like Parse but panics on invalid input. Use only in tests and
// initialization code where the value is known-good.
func MustParse(raw string) Endpoint {
	ep, err := Parse(raw)
	if err != nil {
		panic(err)
	}

	return ep
}

// Default returns the production bridge endpoint.
func Default() Endpoint {
	return MustParse(DefaultURL)
}

// Proto returns "https" or "http".
func (e Endpoint) Proto() string {
	return e.proto
}

// Host returns the lower-cased host name.
func (e Endpoint) Host() string {
	return e.host
}

// Port returns the TCP port.
func (e Endpoint) Port() int {
	return e.port
}

// IsZero reports whether this is the zero-value Endpoint.
func (e Endpoint) IsZero() bool {
	return e.proto == ""
}

// Equal reports whether two endpoints are identical.
func (e Endpoint) Equal(other Endpoint) bool {
	return e == other
}

// Key is the credential store key: the host, plus the port when it is not
// the protocol default. Keys are safe to use as file names.
func (e Endpoint) Key() string {
	if e.IsZero() {
		return ""
	}

	if e.port == defaultPorts[e.proto] {
		return e.host
	}

	return e.host + "_" + strconv.Itoa(e.port)
}

// BaseURL returns the URL that bridge request paths are appended to.
func (e Endpoint) BaseURL() string {
	if e.IsZero() {
		return ""
	}

	return e.proto + "://" + net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// String returns the canonical "proto://host:port" form.
func (e Endpoint) String() string {
	return e.BaseURL()
}

// MarshalText implements encoding.TextMarshaler.
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The input is validated
// just like Parse.
func (e *Endpoint) UnmarshalText(text []byte) error {
	ep, err := Parse(string(text))
	if err != nil {
		return err
	}

	*e = ep

	return nil
}

// Compile-time interface assertions.
var (
	_ encoding.TextMarshaler   = Endpoint{}
	_ encoding.TextUnmarshaler = (*Endpoint)(nil)
	_ fmt.Stringer             = Endpoint{}
)
