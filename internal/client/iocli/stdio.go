package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio is IO over a reader and a writer. Passwords are read without echo
// when the input is a terminal.
type Stdio struct {
	in     *bufio.Reader
	out    io.Writer
	file   *os.File
	isTerm func(fd int) bool
}

// NewStdio returns IO bound to os.Stdin and os.Stdout
func NewStdio() *Stdio {
	s := New(os.Stdin, os.Stdout)
	s.file = os.Stdin
	return s
}

// New returns IO over arbitrary streams; used by tests and pipes
func New(in io.Reader, out io.Writer) *Stdio {
	return &Stdio{
		in:     bufio.NewReader(in),
		out:    out,
		isTerm: term.IsTerminal,
	}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// ReadInput печатает prompt и читает строку без перевода строки
func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	line, err := s.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadPassword читает пароль без эха, если stdin является терминалом
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	if s.file == nil || !s.isTerm(int(s.file.Fd())) {
		return s.ReadInput(prompt)
	}

	s.Printf("%s", prompt)
	pw, err := term.ReadPassword(int(s.file.Fd()))
	s.Println()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
