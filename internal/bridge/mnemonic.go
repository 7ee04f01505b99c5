package bridge

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// DefaultMnemonicStrength is the entropy size in bits of generated mnemonics
// (24 words).
const DefaultMnemonicStrength = 256

// GenerateMnemonic returns a fresh BIP39 mnemonic with the given entropy
// strength: a multiple of 32 between 128 and 256 bits.
func GenerateMnemonic(strength int) (string, error) {
	entropy, err := bip39.NewEntropy(strength)
	if err != nil {
		return "", fmt.Errorf("bridge: generating mnemonic entropy: %w", err)
	}

	m, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("bridge: encoding mnemonic: %w", err)
	}

	return m, nil
}

// CheckMnemonic reports whether m is a valid BIP39 mnemonic (word list and
// checksum).
func CheckMnemonic(m string) bool {
	_, err := bip39.EntropyFromMnemonic(strings.Join(strings.Fields(m), " "))

	return err == nil
}
