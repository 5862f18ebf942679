// prompt.go reads interactive answers for commands that need them.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads line answers from in and echoes questions to out. Passwords
// are read without echo when in is a terminal.
type prompter struct {
	in  *bufio.Reader
	raw io.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), raw: in, out: out}
}

func (p *prompter) line(question string) (string, error) {
	fmt.Fprint(p.out, question)
	answer, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && answer != "") {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (p *prompter) password(question string) (string, error) {
	if f, ok := p.raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, question)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	return p.line(question)
}

// Confirm implements chat.Confirmer. Anything but y/yes declines.
func (p *prompter) Confirm(question string) bool {
	answer, err := p.line(question + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
