// Package liner reads CRLF-terminated response lines from servers.
package liner

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// MaxLineLength bounds a single response line.
const MaxLineLength = 1 << 20

type Liner struct {
	br *bufio.Reader
	mu sync.Mutex
}

func New(r io.Reader) *Liner {
	return &Liner{br: bufio.NewReader(r)}
}

// Reset resets the liner to read from a new reader, discarding anything buffered.
func (l *Liner) Reset(r io.Reader) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.br.Reset(r)
}

// ReadLine reads one line and strips its line ending. A bare LF ends a line as well.
func (l *Liner) ReadLine() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder

	for {
		chunk, err := l.br.ReadSlice('\n')

		if b.Len()+len(chunk) > MaxLineLength {
			return "", ErrLineTooLong
		}

		b.Write(chunk)

		switch err {
		case nil:
			return strings.TrimSuffix(strings.TrimSuffix(b.String(), "\n"), "\r"), nil

		case bufio.ErrBufferFull:
			continue

		default:
			if err == io.EOF && b.Len() > 0 {
				err = io.ErrUnexpectedEOF
			}

			return "", err
		}
	}
}

// Buffered returns the number of bytes that were read from the source but not returned yet.
func (l *Liner) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.br.Buffered()
}
