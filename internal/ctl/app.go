// Package ctl implements profolioctl, the operator tool for generating
// secrets, inspecting encrypted values and moving documents through
// presigned URLs.
package ctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// test seams
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	getenv       = os.Getenv
)

// DefaultKeyEnv names the variable holding the encryption passphrase.
const DefaultKeyEnv = "ENCRYPTION_KEY"

// NewApp builds the CLI reading from in and writing results to out.
func NewApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "profolioctl",
		Usage:     "Operator tooling for the Profolio server",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Commands: []*cli.Command{
			genkeyCmd(),
			encryptCmd(),
			decryptCmd(),
			hashCmd(),
			documentsCmd(),
		},
	}
}

func keyEnvFlag(dest *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "key-env",
		Usage:       "environment variable holding the encryption passphrase",
		Value:       DefaultKeyEnv,
		Destination: dest,
	}
}

// passphrase returns the value of envName or, on a terminal, prompts for it
// without echo.
func passphrase(c *cli.Context, envName string) (string, error) {
	if v := getenv(envName); v != "" {
		return v, nil
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", fmt.Errorf("%s is not set and stdin is not a terminal", envName)
	}

	if _, err := fmt.Fprint(c.App.ErrWriter, "Encryption passphrase: "); err != nil {
		return "", err
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return "", err
	}
	if len(pw) == 0 {
		return "", errors.New("empty passphrase")
	}
	return string(pw), nil
}

// inputValue returns the first argument, or the whole of stdin with the
// trailing newline removed.
func inputValue(c *cli.Context) (string, error) {
	if c.Args().Len() > 0 {
		return c.Args().First(), nil
	}

	b, err := io.ReadAll(bufio.NewReader(c.App.Reader))
	if err != nil {
		return "", err
	}
	v := strings.TrimRight(string(b), "\r\n")
	if v == "" {
		return "", errors.New("no input: pass a value or pipe it on stdin")
	}
	return v, nil
}
