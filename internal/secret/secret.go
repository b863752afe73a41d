package secret

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const maxSecretLen = 65536

// Credentials keeps a password in a byte slice so it can be wiped once the session ends.
type Credentials struct {
	Username string
	password []byte
}

func NewCredentials(username, password string) *Credentials {
	return &Credentials{
		Username: username,
		password: []byte(password),
	}
}

func (c *Credentials) Password() string {
	return string(c.password)
}

func (c *Credentials) Clear() {
	Wipe(c.password)
	c.password = nil
}

// Wipe overwrites data with zeros.
func Wipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// Ask reads a secret from in without echoing it when in is a terminal.
// Piped input is read up to the first newline.
func Ask(prompt string, in *os.File, out io.Writer) ([]byte, error) {
	fmt.Fprint(out, prompt)

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		value, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return nil, fmt.Errorf("error reading secret: %w", err)
		}
		if len(value) > maxSecretLen {
			Wipe(value)
			return nil, errors.New("secret too long")
		}
		return value, nil
	}

	reader := bufio.NewReaderSize(in, 4096)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error reading secret: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) > maxSecretLen {
		return nil, errors.New("secret too long")
	}
	return []byte(line), nil
}
