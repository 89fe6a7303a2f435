package rfc822

import (
	"bytes"
)

// Scanner walks the body parts of a multipart body.
type Scanner struct {
	data      []byte
	delimiter []byte
	offset    int
}

// Part is the content between two boundary delimiters, excluding the line break that precedes a delimiter.
type Part struct {
	Data   []byte
	Offset int

	// Complete is true if a delimiter line followed the part.
	Complete bool
}

func NewScanner(data []byte, boundary string) *Scanner {
	return &Scanner{data: data, delimiter: []byte("--" + boundary)}
}

// ScanAll returns every part after the preamble. A part that runs into the end of the data is returned as incomplete.
func (s *Scanner) ScanAll() []Part {
	// Skip the preamble.
	if _, _, found, closing := s.next(); !found || closing {
		return nil
	}

	var parts []Part

	for {
		offset := s.offset

		data, more, found, closing := s.next()

		if found || len(data) > 0 {
			parts = append(parts, Part{Data: data, Offset: offset, Complete: found})
		}

		if !more || closing {
			return parts
		}
	}
}

// next reads up to the next delimiter line. It reports whether a delimiter was found and whether it was the close delimiter.
func (s *Scanner) next() (data []byte, more, found, closing bool) {
	start := s.offset

	for s.offset < len(s.data) {
		lineStart := s.offset
		line := s.data[lineStart:]

		if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx+1]
		}

		s.offset += len(line)

		trimmed := bytes.TrimRight(line, " \t\r\n")

		if !bytes.HasPrefix(trimmed, s.delimiter) {
			continue
		}

		switch rest := trimmed[len(s.delimiter):]; {
		case len(rest) == 0:
			return trimLineBreak(s.data[start:lineStart]), true, true, false

		case bytes.Equal(rest, []byte("--")):
			return trimLineBreak(s.data[start:lineStart]), false, true, true
		}
	}

	return s.data[start:], false, false, false
}

func trimLineBreak(b []byte) []byte {
	return bytes.TrimSuffix(bytes.TrimSuffix(b, []byte("\n")), []byte("\r"))
}
