package rfc822

import (
	"fmt"
	"io"
)

// MultipartWriter writes boundary-delimited body parts.
type MultipartWriter struct {
	w        io.Writer
	boundary string
}

func NewMultipartWriter(w io.Writer, boundary string) *MultipartWriter {
	return &MultipartWriter{w: w, boundary: boundary}
}

func (w *MultipartWriter) Boundary() string {
	return w.boundary
}

// AddPart writes a delimiter line followed by whatever fn writes.
func (w *MultipartWriter) AddPart(fn func(io.Writer) error) error {
	if _, err := fmt.Fprintf(w.w, "--%v\r\n", w.boundary); err != nil {
		return err
	}

	if err := fn(w.w); err != nil {
		return err
	}

	_, err := fmt.Fprint(w.w, "\r\n")

	return err
}

// Done writes the close delimiter.
func (w *MultipartWriter) Done() error {
	_, err := fmt.Fprintf(w.w, "--%v--\r\n", w.boundary)

	return err
}
