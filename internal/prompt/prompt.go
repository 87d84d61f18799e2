// Package prompt reads operator input from a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"golang.org/x/term"
)

// Prompter asks questions on out and reads answers from in. Passwords are
// read from the terminal without echo.
type Prompter struct {
	in           *bufio.Reader
	out          io.Writer
	readPassword func(fd int) ([]byte, error)
	fd           int
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:           bufio.NewReader(in),
		out:          out,
		readPassword: term.ReadPassword,
		fd:           int(os.Stdin.Fd()),
	}
}

// WithPasswordReader replaces term.ReadPassword; tests use it to avoid a
// terminal.
func (p *Prompter) WithPasswordReader(fn func(fd int) ([]byte, error)) *Prompter {
	p.readPassword = fn
	return p
}

// Text prints prompt and returns one trimmed line. A final line without a
// newline is still returned.
func (p *Prompter) Text(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt+"\n> "); err != nil {
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

// Line prints prefix without a newline and reads one trimmed line.
func (p *Prompter) Line(prefix string) (string, error) {
	if _, err := fmt.Fprint(p.out, prefix); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) Password(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt+": "); err != nil {
		return "", err
	}
	pw, err := p.readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// Println writes a line to the output.
func (p *Prompter) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Prompter) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}
