package message

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"
	"unicode"

	"github.com/emersion/go-message/charset"
)

// streamThreshold is the payload size above which base64 content is decoded through a reader.
const streamThreshold = 32768

// Content is the decoded content of a leaf: *TextContent, *BinaryContent or *UnsupportedContent.
type Content interface {
	content()
}

// TextContent is text converted to UTF-8.
type TextContent struct {
	Subtype string
	Text    string
}

// BinaryContent is transfer-decoded binary data.
type BinaryContent struct {
	MIMEType string
	Data     []byte
}

// UnsupportedContent stands in for content that could not be decoded.
type UnsupportedContent struct {
	Err error
}

func (*TextContent) content()        {}
func (*BinaryContent) content()      {}
func (*UnsupportedContent) content() {}

// Reader returns a reader over the transfer-decoded payload of the leaf.
func Reader(part Leaf) (io.Reader, error) {
	payload := bytes.NewReader(part.Payload())

	switch encoding := part.Header().Encoding; encoding {
	case "", "7bit", "8bit", "binary":
		return payload, nil

	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &spaceFilter{r: payload}), nil

	case "quoted-printable":
		return quotedprintable.NewReader(payload), nil

	default:
		return nil, &DecodeError{Encoding: encoding}
	}
}

// Decode returns the transfer-decoded payload of the leaf.
func Decode(part Leaf) ([]byte, error) {
	header := part.Header()

	if header.Encoding == "base64" && len(part.Payload()) <= streamThreshold {
		clean := bytes.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}

			return r
		}, part.Payload())

		data, err := base64.StdEncoding.DecodeString(string(clean))
		if err != nil {
			return nil, &DecodeError{Encoding: header.Encoding, Err: err}
		}

		return data, nil
	}

	r, err := Reader(part)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Encoding: header.Encoding, Err: err}
	}

	return data, nil
}

// DecodeContent decodes the leaf for display. Failures degrade to UnsupportedContent.
func DecodeContent(part Leaf) Content {
	data, err := Decode(part)
	if err != nil {
		return &UnsupportedContent{Err: err}
	}

	header := part.Header()

	if _, ok := part.(*TextPart); ok {
		return &TextContent{Subtype: header.Subtype, Text: toUTF8(header.Charset, data)}
	}

	return &BinaryContent{MIMEType: header.MIMEType(), Data: data}
}

// toUTF8 converts text from the given charset. Unknown charsets leave the bytes as they are.
func toUTF8(label string, data []byte) string {
	switch strings.ToLower(label) {
	case "", "us-ascii", "utf-8", "utf8":
		return string(data)
	}

	r, err := charset.Reader(label, bytes.NewReader(data))
	if err != nil {
		return string(data)
	}

	text, err := io.ReadAll(r)
	if err != nil {
		return string(data)
	}

	return string(text)
}

// spaceFilter drops whitespace that the base64 decoder would reject.
type spaceFilter struct {
	r io.Reader
}

func (f *spaceFilter) Read(p []byte) (int, error) {
	for {
		n, err := f.r.Read(p)

		kept := 0

		for _, c := range p[:n] {
			if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
				p[kept] = c
				kept++
			}
		}

		if kept > 0 || err != nil {
			return kept, err
		}
	}
}
