package rfc822

import (
	"bytes"
	"errors"
	"net/textproto"
	"strings"

	"github.com/bradenaw/juniper/xslices"
)

var (
	ErrNonASCIIHeaderKey = errors.New("header key contains invalid characters")
	ErrKeyNotFound       = errors.New("invalid header line without key")
	ErrBareCR            = errors.New("header line contains CR without LF")
)

type field struct {
	key string

	// raw holds the complete field including folded continuation lines and line endings.
	raw []byte
}

// Header is an ordered list of header fields. Field lookup is case-insensitive; the raw bytes are preserved.
type Header struct {
	fields []*field
}

// NewHeader parses a raw header block. Folded lines are attached to the field they continue.
func NewHeader(raw []byte) (*Header, error) {
	header := &Header{}

	for len(raw) > 0 {
		line := raw

		if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
			line = raw[:idx+1]
		}

		raw = raw[len(line):]

		if idx := bytes.IndexByte(line, '\r'); idx >= 0 && idx < len(line)-1 && line[idx+1] != '\n' {
			return nil, ErrBareCR
		}

		switch {
		case len(bytes.TrimRight(line, "\r\n")) == 0:
			// The blank line terminating the header.
			header.fields = append(header.fields, &field{raw: line})

		case line[0] == ' ' || line[0] == '\t':
			if len(header.fields) == 0 || header.fields[len(header.fields)-1].key == "" {
				return nil, ErrKeyNotFound
			}

			last := header.fields[len(header.fields)-1]
			last.raw = append(last.raw, line...)

		default:
			key, _, ok := bytes.Cut(line, []byte(":"))
			if !ok {
				return nil, ErrKeyNotFound
			}

			if err := validateKey(key); err != nil {
				return nil, err
			}

			header.fields = append(header.fields, &field{
				key: string(key),
				raw: append([]byte(nil), line...),
			})
		}
	}

	return header, nil
}

func validateKey(key []byte) error {
	if len(key) == 0 {
		return ErrKeyNotFound
	}

	for _, c := range key {
		if c < 33 || c > 126 {
			return ErrNonASCIIHeaderKey
		}
	}

	return nil
}

// Raw returns the header exactly as parsed or built.
func (h *Header) Raw() []byte {
	return bytes.Join(xslices.Map(h.fields, func(f *field) []byte { return f.raw }), nil)
}

func (h *Header) Has(key string) bool {
	return h.find(key) != nil
}

// Get returns the unfolded value of the first field with the given key, or the empty string.
func (h *Header) Get(key string) string {
	f := h.find(key)
	if f == nil {
		return ""
	}

	return unfold(value(f.raw))
}

// GetRaw returns the value of the first field with the given key without unfolding.
func (h *Header) GetRaw(key string) []byte {
	f := h.find(key)
	if f == nil {
		return nil
	}

	return value(f.raw)
}

// Set replaces the first field with the given key or prepends a new field.
func (h *Header) Set(key, val string) {
	line := []byte(textproto.CanonicalMIMEHeaderKey(key) + ": " + val + "\r\n")

	if f := h.find(key); f != nil {
		f.raw = line
		return
	}

	h.fields = append([]*field{{key: key, raw: line}}, h.fields...)
}

// Del removes every field with the given key.
func (h *Header) Del(key string) {
	h.fields = xslices.Filter(h.fields, func(f *field) bool {
		return !strings.EqualFold(f.key, key)
	})
}

// Entries calls fn on every field in order with the unfolded value.
func (h *Header) Entries(fn func(key, val string)) {
	for _, f := range h.fields {
		if f.key == "" {
			continue
		}

		fn(f.key, unfold(value(f.raw)))
	}
}

func (h *Header) find(key string) *field {
	for _, f := range h.fields {
		if f.key != "" && strings.EqualFold(f.key, key) {
			return f
		}
	}

	return nil
}

func value(raw []byte) []byte {
	_, val, _ := bytes.Cut(raw, []byte(":"))

	return val
}

func unfold(val []byte) string {
	var parts []string

	for _, line := range bytes.Split(val, []byte("\n")) {
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			parts = append(parts, string(trimmed))
		}
	}

	return strings.Join(parts, " ")
}
