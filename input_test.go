package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()

	orig, origTTY := readPassword, stdinIsTerminal
	t.Cleanup(func() { readPassword, stdinIsTerminal = orig, origTTY })

	stdinIsTerminal = func() bool { return true }

	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more answers")
		}

		a := answers[0]
		answers = answers[1:]

		return []byte(a), nil
	}
}

func TestPrompter_Line(t *testing.T) {
	var out bytes.Buffer

	p := newPrompter(strings.NewReader("  alice@example.com \nlast"), &out)

	got, err := p.line("User: ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got)
	assert.Equal(t, "User: ", out.String())

	got, err = p.line("Again: ")
	require.NoError(t, err)
	assert.Equal(t, "last", got, "final line without newline is accepted")

	_, err = p.line("EOF: ")
	assert.Error(t, err)
}

func TestPrompter_NewPassphrase(t *testing.T) {
	stubPasswords(t, "s3cret", "s3cret")

	p := newPrompter(strings.NewReader(""), &bytes.Buffer{})

	got, err := p.newPassphrase()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestPrompter_NewPassphraseMismatch(t *testing.T) {
	stubPasswords(t, "one", "two")

	p := newPrompter(strings.NewReader(""), &bytes.Buffer{})

	_, err := p.newPassphrase()
	assert.EqualError(t, err, "passphrases do not match")
}

func TestPrompter_PassphraseFromEnv(t *testing.T) {
	stubPasswords(t)
	t.Setenv(envKeyPass, "from-env")

	p := newPrompter(strings.NewReader(""), &bytes.Buffer{})

	got, err := p.passphrase()
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	got, err = p.newPassphrase()
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestPrompter_SecretError(t *testing.T) {
	stubPasswords(t)

	p := newPrompter(strings.NewReader(""), &bytes.Buffer{})

	_, err := p.secret("Bridge password: ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading Bridge password")
}

func TestPrompter_SecretFromPipe(t *testing.T) {
	stubPasswords(t)
	stdinIsTerminal = func() bool { return false }

	p := newPrompter(strings.NewReader("piped-secret\n"), &bytes.Buffer{})

	got, err := p.secret("Bridge password: ")
	require.NoError(t, err)
	assert.Equal(t, "piped-secret", got)
}
