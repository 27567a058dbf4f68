// SPDX-License-Identifier: MPL-2.0

package console

import (
	"bufio"
	"errors"
	"io"
)

const (
	keyCtrlC     = 3
	keyCtrlD     = 4
	keyBackspace = 8
	keyDelete    = 127
	maxLineBytes = 4096
)

// errInterrupted is returned when the user presses Ctrl-C.
var errInterrupted = errors.New("interrupted")

// lineReader reads input lines from an SSH channel. With a pseudo-terminal
// the client sends raw keystrokes, so the reader echoes them and handles
// backspace itself.
type lineReader struct {
	in   *bufio.Reader
	echo io.Writer
}

func newLineReader(in io.Reader, echo io.Writer) *lineReader {
	return &lineReader{in: bufio.NewReader(in), echo: echo}
}

// readLine returns the next line without its terminator. A line ends at
// CR, LF or CRLF. io.EOF is returned at end of input with nothing pending,
// or on Ctrl-D at the start of a line.
func (lr *lineReader) readLine() (string, error) {
	var buf []byte
	for {
		b, err := lr.in.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(buf) > 0 {
				return string(buf), nil
			}
			return "", err
		}

		switch b {
		case '\r', '\n':
			if b == '\r' {
				if next, err := lr.in.Peek(1); err == nil && next[0] == '\n' {
					lr.in.ReadByte() //nolint:errcheck // peeked
				}
			}
			lr.write("\r\n")
			return string(buf), nil
		case keyCtrlC:
			lr.write("^C\r\n")
			return "", errInterrupted
		case keyCtrlD:
			if len(buf) == 0 {
				return "", io.EOF
			}
		case keyBackspace, keyDelete:
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
				lr.write("\b \b")
			}
		default:
			if b < 0x20 || len(buf) >= maxLineBytes {
				continue
			}
			buf = append(buf, b)
			lr.write(string(b))
		}
	}
}

func (lr *lineReader) write(s string) {
	if lr.echo != nil {
		io.WriteString(lr.echo, s) //nolint:errcheck // echo is best effort
	}
}
