package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// envKeyPass supplies the key passphrase without prompting.
const envKeyPass = "STORJ_KEYPASS"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// stdinIsTerminal reports whether secrets can be read without echo. Piped
// input is read line by line instead.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompter reads answers to interactive questions. Plain answers come from
// in; secrets are read without echo from the terminal on stdin.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// line prints prompt and reads one line. A final line without a newline is
// accepted.
func (p *prompter) line(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}

	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}

		return "", err
	}

	return strings.TrimSpace(line), nil
}

// secret prints prompt and reads a value without echo. When stdin is not a
// terminal the value is read as a plain line.
func (p *prompter) secret(prompt string) (string, error) {
	if !stdinIsTerminal() {
		return p.line(prompt)
	}

	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}

	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)

	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.TrimSpace(prompt), ":"), err)
	}

	return string(b), nil
}

// passphrase returns the key passphrase from STORJ_KEYPASS or by prompting.
func (p *prompter) passphrase() (string, error) {
	if v, ok := os.LookupEnv(envKeyPass); ok {
		return v, nil
	}

	return p.secret("Key passphrase: ")
}

// newPassphrase asks for a passphrase twice. STORJ_KEYPASS, when set, is used
// as is. An empty passphrase stores keys that unlock without prompting.
func (p *prompter) newPassphrase() (string, error) {
	if v, ok := os.LookupEnv(envKeyPass); ok {
		return v, nil
	}

	first, err := p.secret("Key passphrase (empty for none): ")
	if err != nil {
		return "", err
	}

	again, err := p.secret("Repeat passphrase: ")
	if err != nil {
		return "", err
	}

	if first != again {
		return "", errors.New("passphrases do not match")
	}

	return first, nil
}
