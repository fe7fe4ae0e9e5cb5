package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Prompter asks the user for values on a line-oriented terminal.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	// fd is the descriptor used for hidden input; -1 when In is not a terminal.
	fd     int
	reader *bufio.Reader
}

// NewPrompter prompts on stdin/stdout.
func NewPrompter() *Prompter {
	fd := -1
	if IsTerminal(os.Stdin) {
		fd = int(os.Stdin.Fd())
	}
	return &Prompter{In: os.Stdin, Out: os.Stdout, fd: fd}
}

// NewPrompterFrom prompts on arbitrary streams; passwords are read as plain lines.
func NewPrompterFrom(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{In: in, Out: out, fd: -1}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Prompter) readLine() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PromptField asks for a value. An empty answer returns def.
func (p *Prompter) PromptField(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.Out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.Out, "%s: ", label)
	}
	v, err := p.readLine()
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	return v, nil
}

// PromptPassword prompts for a password (hidden input on a terminal)
func (p *Prompter) PromptPassword() (string, error) {
	fmt.Fprint(p.Out, "Password: ")
	if p.fd < 0 {
		return p.readLine()
	}
	password, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// Confirm asks a yes/no question; anything but y/yes is no.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.Out, "%s [y/N]: ", question)
	response, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(strings.ToLower(response)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
