package message

import (
	"strings"

	"github.com/courier-mail/courier/rfc822"
)

// StructureTemplate infers the shape of a message from its header alone, before the body is downloaded.
//
// A multipart message yields an empty MultiPart that only knows its boundary. Any other type yields a single
// payload-less leaf. A missing or malformed Content-Type yields nil.
func StructureTemplate(h *rfc822.Header) Part {
	value := h.Get("Content-Type")
	if value == "" {
		return nil
	}

	mediaType, params, err := rfc822.ParseContentType(value)
	if err != nil {
		return nil
	}

	typ, subtype, ok := rfc822.SplitMediaType(mediaType)
	if !ok || typ == "" || subtype == "" {
		return nil
	}

	if typ == "multipart" {
		return NewMultiPart(subtype, params["boundary"])
	}

	encoding := strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding")))

	return NewLeaf(PartHeader{
		Type:     typ,
		Subtype:  subtype,
		Encoding: encoding,
		Charset:  params["charset"],
	}, nil, false)
}
