package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"

	"github.com/courier-mail/courier/rfc822"
	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// Placeholder is written in place of a part that cannot be encoded.
const Placeholder = "Unable to encode part"

const base64LineLength = 76

// ContentProvider supplies the content to serialize for a leaf: UTF-8 text for text parts, raw bytes otherwise.
type ContentProvider interface {
	Content(part Leaf) ([]byte, error)
}

type ContentProviderFunc func(part Leaf) ([]byte, error)

func (fn ContentProviderFunc) Content(part Leaf) ([]byte, error) {
	return fn(part)
}

// PayloadProvider serves each leaf's own payload, decoded.
var PayloadProvider ContentProvider = ContentProviderFunc(func(part Leaf) ([]byte, error) {
	switch content := DecodeContent(part).(type) {
	case *TextContent:
		return []byte(content.Text), nil

	case *BinaryContent:
		return content.Data, nil

	case *UnsupportedContent:
		return nil, content.Err

	default:
		return nil, fmt.Errorf("unexpected content type %T", content)
	}
})

// Serialize writes the tree as MIME. Multiparts are written with their own boundary, or a fresh one if they have
// none. Text is encoded according to its charset and every other leaf is base64-encoded.
func Serialize(root Part, provider ContentProvider) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := writePart(buf, root, provider); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writePart(w io.Writer, part Part, provider ContentProvider) error {
	switch part := part.(type) {
	case *MultiPart:
		return writeMultiPart(w, part, provider)

	case *TextPart:
		return writeText(w, part, provider)

	case *ImagePart, *ApplicationPart, *AudioPart, *VideoPart:
		return writeBinary(w, part.(Leaf), provider)

	case *MessagePart:
		return writeMessage(w, part, provider)

	case *UnsupportedPart:
		return writeUnsupported(w, part, provider)

	default:
		return fmt.Errorf("unexpected part type %T", part)
	}
}

func writeMultiPart(w io.Writer, part *MultiPart, provider ContentProvider) error {
	boundary := part.Boundary
	if boundary == "" {
		boundary = NewBoundary()
	}

	var h gomessage.Header

	h.SetContentType(part.Header().MIMEType(), map[string]string{"boundary": boundary})

	if err := textproto.WriteHeader(w, h.Header); err != nil {
		return err
	}

	mw := rfc822.NewMultipartWriter(w, boundary)

	for _, child := range part.Children {
		child := child

		if err := mw.AddPart(func(w io.Writer) error {
			return writePart(w, child, provider)
		}); err != nil {
			return err
		}
	}

	return mw.Done()
}

func writeText(w io.Writer, part *TextPart, provider ContentProvider) error {
	text, err := provider.Content(part)
	if err != nil {
		return writePlaceholder(w)
	}

	header := part.Header()
	label := strings.ToLower(header.Charset)

	if label == "" || label == "us-ascii" {
		if isASCII(text) {
			label = "us-ascii"
		} else {
			label = "utf-8"
		}
	}

	switch label {
	case "us-ascii":
		return writeLeaf(w, header, label, "7bit", text)

	case "iso-8859-1":
		encoded, err := encodeCharset(label, text)
		if err != nil {
			return writeLeaf(w, header, "utf-8", "base64", encodeBase64(text))
		}

		return writeLeaf(w, header, label, "quoted-printable", encodeQuotedPrintable(encoded))

	default:
		encoded, err := encodeCharset(label, text)
		if err != nil {
			return writeLeaf(w, header, "utf-8", "base64", encodeBase64(text))
		}

		return writeLeaf(w, header, label, "base64", encodeBase64(encoded))
	}
}

func writeBinary(w io.Writer, part Leaf, provider ContentProvider) error {
	data, err := provider.Content(part)
	if err != nil {
		return writePlaceholder(w)
	}

	return writeLeaf(w, part.Header(), "", "base64", encodeBase64(data))
}

func writeMessage(w io.Writer, part *MessagePart, provider ContentProvider) error {
	data, err := provider.Content(part)
	if err != nil {
		return writePlaceholder(w)
	}

	encoding := "7bit"
	if !isASCII(data) {
		encoding = "8bit"
	}

	return writeLeaf(w, part.Header(), "", encoding, data)
}

// writeUnsupported base64-encodes the part if its type can be declared, and writes the placeholder otherwise.
func writeUnsupported(w io.Writer, part *UnsupportedPart, provider ContentProvider) error {
	header := part.Header()

	switch header.Type {
	case "", "multipart", "message":
		return writePlaceholder(w)
	}

	if header.Subtype == "" {
		return writePlaceholder(w)
	}

	data, err := provider.Content(part)
	if err != nil {
		return writePlaceholder(w)
	}

	return writeLeaf(w, header, "", "base64", encodeBase64(data))
}

func writePlaceholder(w io.Writer) error {
	return writeLeaf(w, PartHeader{Type: "text", Subtype: "plain"}, "us-ascii", "7bit", []byte(Placeholder))
}

func writeLeaf(w io.Writer, header PartHeader, charset, encoding string, body []byte) error {
	var h gomessage.Header

	params := make(map[string]string)

	if charset != "" {
		params["charset"] = charset
	}

	if header.Filename != "" {
		params["name"] = header.Filename
	}

	h.SetContentType(header.MIMEType(), params)
	h.Set("Content-Transfer-Encoding", encoding)

	if header.Disposition != "" {
		dispParams := make(map[string]string)

		if header.Filename != "" {
			dispParams["filename"] = header.Filename
		}

		h.SetContentDisposition(header.Disposition, dispParams)
	}

	if header.ContentID != "" {
		h.Set("Content-Id", "<"+header.ContentID+">")
	}

	if err := textproto.WriteHeader(w, h.Header); err != nil {
		return err
	}

	_, err := w.Write(body)

	return err
}

// NewBoundary returns a fresh multipart boundary.
func NewBoundary() string {
	return "courier-" + uuid.NewString()
}

func encodeBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)

	var lines []string

	for len(encoded) > base64LineLength {
		lines = append(lines, encoded[:base64LineLength])
		encoded = encoded[base64LineLength:]
	}

	lines = append(lines, encoded)

	return []byte(strings.Join(lines, "\r\n"))
}

func encodeQuotedPrintable(data []byte) []byte {
	buf := new(bytes.Buffer)

	qw := quotedprintable.NewWriter(buf)

	// Writes to a bytes.Buffer cannot fail.
	_, _ = qw.Write(data)
	_ = qw.Close()

	return buf.Bytes()
}

// encodeCharset converts UTF-8 text to the given charset.
func encodeCharset(label string, text []byte) ([]byte, error) {
	var enc encoding.Encoding

	if strings.EqualFold(label, "iso-8859-1") {
		enc = charmap.ISO8859_1
	} else if found, err := htmlindex.Get(label); err == nil {
		enc = found
	} else {
		return nil, err
	}

	return enc.NewEncoder().Bytes(text)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}

	return true
}
