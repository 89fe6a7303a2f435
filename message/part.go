// Package message turns raw messages into a typed MIME part tree and back.
package message

import (
	"strings"
)

// PartHeader is the MIME metadata of one part.
type PartHeader struct {
	Type    string
	Subtype string

	// Encoding is the lowercased Content-Transfer-Encoding; it defaults to 7bit.
	Encoding string

	Charset     string
	Disposition string
	Filename    string
	ContentID   string
}

// MIMEType returns "type/subtype".
func (h PartHeader) MIMEType() string {
	return h.Type + "/" + h.Subtype
}

// IsAttachment reports whether the part is explicitly marked as an attachment.
func (h PartHeader) IsAttachment() bool {
	return strings.EqualFold(h.Disposition, "attachment")
}

// Part is one node of a message tree. The concrete type is one of
// *MultiPart, *TextPart, *ImagePart, *ApplicationPart, *AudioPart, *VideoPart, *MessagePart or *UnsupportedPart.
type Part interface {
	Header() PartHeader

	// Parent returns the multipart containing this part, or nil for the root.
	Parent() *MultiPart

	setParent(parent *MultiPart)
}

// Leaf is a part that carries a payload.
type Leaf interface {
	Part

	// Payload returns the raw, still transfer-encoded content.
	Payload() []byte

	// Complete is false if the payload was cut short by a partial download.
	Complete() bool
}

type base struct {
	header PartHeader
	parent *MultiPart
}

func (b *base) Header() PartHeader {
	return b.header
}

func (b *base) Parent() *MultiPart {
	return b.parent
}

func (b *base) setParent(parent *MultiPart) {
	b.parent = parent
}

type leaf struct {
	base

	payload  []byte
	complete bool
}

func (l *leaf) Payload() []byte {
	return l.payload
}

func (l *leaf) Complete() bool {
	return l.complete
}

// MultiPart is a boundary-delimited container.
type MultiPart struct {
	base

	Boundary string
	Children []Part
}

// NewMultiPart returns an empty multipart/subtype container.
func NewMultiPart(subtype, boundary string) *MultiPart {
	return &MultiPart{
		base:     base{header: PartHeader{Type: "multipart", Subtype: subtype, Encoding: "7bit"}},
		Boundary: boundary,
	}
}

// AddChild appends child and makes this part its parent.
func (p *MultiPart) AddChild(child Part) {
	child.setParent(p)
	p.Children = append(p.Children, child)
}

type TextPart struct{ leaf }

type ImagePart struct{ leaf }

type ApplicationPart struct{ leaf }

type AudioPart struct{ leaf }

type VideoPart struct{ leaf }

// MessagePart is an embedded message/rfc822. It is kept as a leaf; its payload can be parsed on its own.
type MessagePart struct{ leaf }

// UnsupportedPart is a part of unknown type, or one whose structure could not be parsed.
type UnsupportedPart struct {
	leaf

	// Err is the parse error that degraded the part, if any.
	Err error
}

// NewLeaf returns the leaf variant matching the header's primary type.
func NewLeaf(header PartHeader, payload []byte, complete bool) Leaf {
	if header.Encoding == "" {
		header.Encoding = "7bit"
	}

	l := leaf{base: base{header: header}, payload: payload, complete: complete}

	switch header.Type {
	case "text":
		return &TextPart{l}

	case "image":
		return &ImagePart{l}

	case "application":
		return &ApplicationPart{l}

	case "audio":
		return &AudioPart{l}

	case "video":
		return &VideoPart{l}

	case "message":
		return &MessagePart{l}

	default:
		return &UnsupportedPart{leaf: l}
	}
}

// NewText returns an 8bit text part holding text encoded in the given charset.
// Text that the charset cannot represent is kept as UTF-8.
func NewText(subtype, charset, text string) *TextPart {
	payload := []byte(text)

	switch strings.ToLower(charset) {
	case "", "us-ascii", "utf-8":

	default:
		if encoded, err := encodeCharset(charset, payload); err == nil {
			payload = encoded
		} else {
			charset = "utf-8"
		}
	}

	return &TextPart{leaf{
		base: base{header: PartHeader{
			Type:     "text",
			Subtype:  subtype,
			Encoding: "8bit",
			Charset:  charset,
		}},
		payload:  payload,
		complete: true,
	}}
}

// NewAttachment returns a binary leaf holding data as a named attachment.
func NewAttachment(mimeType, filename string, data []byte) Leaf {
	typ, subtype, ok := strings.Cut(strings.ToLower(mimeType), "/")
	if !ok {
		typ, subtype = "application", "octet-stream"
	}

	return NewLeaf(PartHeader{
		Type:        typ,
		Subtype:     subtype,
		Encoding:    "binary",
		Disposition: "attachment",
		Filename:    filename,
	}, data, true)
}

func newUnsupported(header PartHeader, payload []byte, complete bool, err error) *UnsupportedPart {
	if header.Encoding == "" {
		header.Encoding = "7bit"
	}

	return &UnsupportedPart{
		leaf: leaf{base: base{header: header}, payload: payload, complete: complete},
		Err:  err,
	}
}

// Walk calls fn on every part of the tree, parents before children.
func Walk(root Part, fn func(Part)) {
	if root == nil {
		return
	}

	fn(root)

	if multi, ok := root.(*MultiPart); ok {
		for _, child := range multi.Children {
			Walk(child, fn)
		}
	}
}

// Leaves returns every leaf of the tree in depth-first order.
func Leaves(root Part) []Leaf {
	var leaves []Leaf

	Walk(root, func(part Part) {
		if l, ok := part.(Leaf); ok {
			leaves = append(leaves, l)
		}
	})

	return leaves
}
