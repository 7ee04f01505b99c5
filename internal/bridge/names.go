package bridge

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	bucketNameInfo = "bucket-name"
	fileNameInfo   = "file-name:"
)

// NameCipher deterministically encrypts bucket and file names with keys
// derived from the account mnemonic. The same plaintext always yields the
// same ciphertext, so encrypted names double as lookup keys.
//
// An empty mnemonic is a valid (legacy) key source, not the absence of one.
type NameCipher struct {
	seed []byte
}

// NewNameCipher derives the cipher seed from mnemonic.
func NewNameCipher(mnemonic string) *NameCipher {
	return &NameCipher{seed: bip39.NewSeed(mnemonic, "")}
}

// EncryptBucketName encrypts a plaintext bucket name.
func (n *NameCipher) EncryptBucketName(name string) (string, error) {
	return n.encrypt(bucketNameInfo, name)
}

// DecryptBucketName returns the plaintext name and true, or the raw input and
// false when it cannot be decrypted with this key.
func (n *NameCipher) DecryptBucketName(raw string) (string, bool) {
	return n.decrypt(bucketNameInfo, raw)
}

// EncryptFileName encrypts a file name. File keys are scoped to the bucket.
func (n *NameCipher) EncryptFileName(bucketID, name string) (string, error) {
	return n.encrypt(fileNameInfo+bucketID, name)
}

// DecryptFileName is DecryptBucketName for file names within bucketID.
func (n *NameCipher) DecryptFileName(bucketID, raw string) (string, bool) {
	return n.decrypt(fileNameInfo+bucketID, raw)
}

func (n *NameCipher) key(info string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha512.New, n.seed, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("deriving name key: %w", err)
	}

	return key, nil
}

func (n *NameCipher) newAEAD(info string) ([]byte, cipher.AEAD, error) {
	key, err := n.key(info)
	if err != nil {
		return nil, nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating name cipher: %w", err)
	}

	return key, aead, nil
}

func (n *NameCipher) encrypt(info, plaintext string) (string, error) {
	key, aead, err := n.newAEAD(info)
	if err != nil {
		return "", newError(CodeMetaEncryption, ErrMetaEncryption, err)
	}

	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(plaintext))
	nonce := mac.Sum(nil)[:chacha20poly1305.NonceSize]

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (n *NameCipher) decrypt(info, raw string) (string, bool) {
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil || len(data) < chacha20poly1305.NonceSize {
		return raw, false
	}

	_, aead, err := n.newAEAD(info)
	if err != nil {
		return raw, false
	}

	plain, err := aead.Open(nil, data[:chacha20poly1305.NonceSize], data[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return raw, false
	}

	return string(plain), true
}
