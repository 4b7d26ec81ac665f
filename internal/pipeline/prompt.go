package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// IOPrompter reads operator answers line by line from in, echoing the
// query to out. It is the only interactive surface in the engine.
type IOPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewIOPrompter creates a prompter over the given reader and writer
// (stdin/stdout in production, buffers in tests).
func NewIOPrompter(in io.Reader, out io.Writer) *IOPrompter {
	return &IOPrompter{in: bufio.NewReader(in), out: out}
}

func (p *IOPrompter) Prompt(query string) (string, error) {
	fmt.Fprint(p.out, query)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
