package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/atbitcoin/handlekeeper/internal/config"
	"golang.org/x/term"
)

// readPassword returns the configured secret store password or prompts for
// it when running in a terminal.
func readPassword(prompt string) ([]byte, error) {
	if password := config.GetString(config.SecretPasswordKey); password != "" {
		return []byte(password), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf(
			"missing password, set HANDLES_%s", config.SecretPasswordKey,
		)
	}

	_, _ = fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, errors.New("password must not be empty")
	}
	return password, nil
}

// readMnemonic returns the seed flag value or reads the phrase from stdin.
func readMnemonic(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(os.Stderr, "seed phrase: ")
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("missing seed phrase")
	}
	return strings.TrimSpace(line), nil
}
