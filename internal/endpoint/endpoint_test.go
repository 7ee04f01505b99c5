package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		key     string
		wantErr bool
	}{
		{name: "default https", raw: "https://api.storj.io", want: "https://api.storj.io:443", key: "api.storj.io"},
		{name: "explicit default port", raw: "https://api.storj.io:443", want: "https://api.storj.io:443", key: "api.storj.io"},
		{name: "trailing slash", raw: "https://api.storj.io/", want: "https://api.storj.io:443", key: "api.storj.io"},
		{name: "custom port", raw: "http://localhost:6382", want: "http://localhost:6382", key: "localhost_6382"},
		{name: "upper case", raw: "HTTPS://API.Storj.IO", want: "https://api.storj.io:443", key: "api.storj.io"},
		{name: "ipv6", raw: "http://[::1]:8080", want: "http://[::1]:8080", key: "::1_8080"},
		{name: "empty", raw: "", wantErr: true},
		{name: "no scheme", raw: "api.storj.io", wantErr: true},
		{name: "ftp", raw: "ftp://api.storj.io", wantErr: true},
		{name: "path", raw: "https://api.storj.io/v1", wantErr: true},
		{name: "query", raw: "https://api.storj.io?x=1", wantErr: true},
		{name: "user info", raw: "https://u:p@api.storj.io", wantErr: true},
		{name: "bad port", raw: "https://api.storj.io:99999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := Parse(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, ep.String())
			assert.Equal(t, tt.key, ep.Key())
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("not a url") })
}

func TestDefault(t *testing.T) {
	ep := Default()

	assert.Equal(t, "https", ep.Proto())
	assert.Equal(t, "api.storj.io", ep.Host())
	assert.Equal(t, 443, ep.Port())
	assert.False(t, ep.IsZero())
}

func TestZeroValue(t *testing.T) {
	var ep Endpoint

	assert.True(t, ep.IsZero())
	assert.Empty(t, ep.String())
	assert.Empty(t, ep.Key())
}

func TestTextRoundTrip(t *testing.T) {
	var ep Endpoint

	require.NoError(t, ep.UnmarshalText([]byte("http://localhost:6382")))
	assert.True(t, ep.Equal(MustParse("http://LOCALHOST:6382/")))

	text, err := ep.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:6382", string(text))

	assert.Error(t, ep.UnmarshalText([]byte("gopher://x")))
}
