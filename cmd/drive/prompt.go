package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"drive-go/internal/app"
)

var stdin = bufio.NewReader(os.Stdin)

func promptLine(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSpace(strings.TrimSuffix(label, ":")), err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo from a terminal.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s required but stdin is not a terminal", strings.TrimSuffix(strings.TrimSpace(label), ":"))
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(b), nil
}

// promptNewSecret asks twice and requires both entries to match.
func promptNewSecret(label string) (string, error) {
	first, err := promptSecret(label)
	if err != nil {
		return "", err
	}
	second, err := promptSecret("Repeat " + strings.ToLower(label[:1]) + label[1:])
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("entries do not match")
	}
	return first, nil
}

// credentials fills in whatever env left empty by prompting.
func credentials(c app.Credentials) (app.Credentials, error) {
	if c.Complete() {
		return c, nil
	}
	var err error
	if c.Email == "" {
		if c.Email, err = promptLine("Email: "); err != nil {
			return c, err
		}
	}
	if c.Password == "" {
		if c.Password, err = promptSecret("Password: "); err != nil {
			return c, err
		}
	}
	return c, nil
}

func passphrase() (string, error) {
	if p := os.Getenv(app.EnvPassphrase); p != "" {
		return p, nil
	}
	return promptSecret("Passphrase: ")
}
