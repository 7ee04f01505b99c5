package bridge

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func TestNameCipher_BucketRoundTrip(t *testing.T) {
	n := NewNameCipher(testMnemonic)

	enc, err := n.EncryptBucketName("photos")
	require.NoError(t, err)
	assert.NotEqual(t, "photos", enc)
	assert.NotContains(t, enc, "/")

	name, ok := n.DecryptBucketName(enc)
	assert.True(t, ok)
	assert.Equal(t, "photos", name)
}

func TestNameCipher_SealsWithChaCha20Poly1305(t *testing.T) {
	n := NewNameCipher(testMnemonic)

	enc, err := n.EncryptBucketName("photos")
	require.NoError(t, err)

	data, err := base64.URLEncoding.DecodeString(enc)
	require.NoError(t, err)
	require.Len(t, data, chacha20poly1305.NonceSize+len("photos")+chacha20poly1305.Overhead)

	key, err := n.key(bucketNameInfo)
	require.NoError(t, err)

	aead, err := chacha20poly1305.New(key)
	require.NoError(t, err)

	plain, err := aead.Open(nil, data[:chacha20poly1305.NonceSize], data[chacha20poly1305.NonceSize:], nil)
	require.NoError(t, err)
	assert.Equal(t, "photos", string(plain))
}

func TestNameCipher_Deterministic(t *testing.T) {
	a, err := NewNameCipher(testMnemonic).EncryptBucketName("photos")
	require.NoError(t, err)

	b, err := NewNameCipher(testMnemonic).EncryptBucketName("photos")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNameCipher_WrongMnemonic(t *testing.T) {
	enc, err := NewNameCipher(testMnemonic).EncryptBucketName("photos")
	require.NoError(t, err)

	raw, ok := NewNameCipher("").DecryptBucketName(enc)
	assert.False(t, ok)
	assert.Equal(t, enc, raw, "undecryptable names are returned raw")
}

func TestNameCipher_FileKeysAreBucketScoped(t *testing.T) {
	n := NewNameCipher(testMnemonic)

	enc, err := n.EncryptFileName("bucket-1", "a/b/c.txt")
	require.NoError(t, err)

	name, ok := n.DecryptFileName("bucket-1", enc)
	assert.True(t, ok)
	assert.Equal(t, "a/b/c.txt", name)

	_, ok = n.DecryptFileName("bucket-2", enc)
	assert.False(t, ok)

	_, ok = n.DecryptBucketName(enc)
	assert.False(t, ok)
}

func TestNameCipher_GarbageInput(t *testing.T) {
	n := NewNameCipher(testMnemonic)

	for _, raw := range []string{"", "plain-name", "!!!not base64", strings.Repeat("A", 8)} {
		got, ok := n.DecryptBucketName(raw)
		assert.False(t, ok, raw)
		assert.Equal(t, raw, got)
	}
}

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic(DefaultMnemonicStrength)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 24)
	assert.True(t, CheckMnemonic(m))

	m12, err := GenerateMnemonic(128)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m12), 12)

	_, err = GenerateMnemonic(100)
	assert.Error(t, err)
}

func TestCheckMnemonic(t *testing.T) {
	assert.True(t, CheckMnemonic(testMnemonic))
	assert.True(t, CheckMnemonic("  "+strings.ReplaceAll(testMnemonic, " ", "  ")+"\n"))
	assert.False(t, CheckMnemonic("abandon abandon abandon"))
	assert.False(t, CheckMnemonic(strings.Replace(testMnemonic, "about", "abandon", 1)))
	assert.False(t, CheckMnemonic(""))
}
