// Package prompt reads secrets from the controlling terminal.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when a passphrase is needed but stdin is not a
// terminal.
var ErrNoTerminal = errors.New("stdin is not a terminal; set MM_DATA_PASSWORD")

// Passphrase prints label to stderr and reads a line from stdin without
// echoing it.
func Passphrase(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// NewPassphrase asks twice and requires both entries to match.
func NewPassphrase() (string, error) {
	first, err := Passphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("passphrase must not be empty")
	}
	second, err := Passphrase("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

// Resolve returns the configured passphrase, or prompts for one.
func Resolve(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return Passphrase("Data passphrase: ")
}

// Width returns the terminal width of w, or fallback when w is not a
// terminal.
func Width(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fallback
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}
