package message

import (
	"bytes"
	"errors"
	"mime"
	"strings"

	"github.com/courier-mail/courier/rfc822"
	"github.com/emersion/go-message/charset"
)

var errNoSubtype = errors.New("content type has no subtype")

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// Parse builds the part tree of a raw message. complete is false when the literal was cut short,
// as with a line-limited TOP download.
//
// Only a message whose top-level header cannot be read fails; a malformed sub-part degrades to an UnsupportedPart.
func Parse(literal []byte, complete bool) (Part, error) {
	var (
		section *rfc822.Section
		err     error
	)

	if complete {
		section, err = rfc822.Parse(literal)
	} else {
		section, err = rfc822.ParsePartial(literal)
	}

	if err != nil {
		return nil, &ParseError{Err: err}
	}

	return buildPart(section), nil
}

func buildPart(section *rfc822.Section) Part {
	if err := section.Err(); err != nil {
		return newUnsupported(PartHeader{}, section.Literal(), section.Complete(), &ParseError{Err: err})
	}

	header, params, err := readPartHeader(section.Header())
	if err != nil {
		return newUnsupported(header, section.Body(), section.Complete(), &ParseError{Err: err})
	}

	if header.Type == "multipart" {
		children, err := section.Children()
		if err != nil {
			return newUnsupported(header, section.Body(), section.Complete(), &ParseError{Err: err})
		}

		if len(children) > 0 {
			multi := &MultiPart{
				base:     base{header: header},
				Boundary: params["boundary"],
			}

			for _, child := range children {
				multi.AddChild(buildPart(child))
			}

			return multi
		}
	}

	return NewLeaf(header, leafPayload(section, header), section.Complete())
}

// leafPayload returns the raw content of a leaf. A complete base64 payload starts after the first blank line
// of the part, which skips any stray bytes before the header terminator.
func leafPayload(section *rfc822.Section, header PartHeader) []byte {
	if header.Encoding == "base64" && section.Complete() {
		literal := section.Literal()

		if idx := bytes.Index(literal, []byte("\r\n\r\n")); idx >= 0 {
			return literal[idx+4:]
		}
	}

	return section.Body()
}

// readPartHeader extracts the MIME metadata of a section. The Content-Type parameters are returned as well.
func readPartHeader(h *rfc822.Header) (PartHeader, map[string]string, error) {
	header := PartHeader{
		Encoding:  strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding"))),
		ContentID: strings.Trim(strings.TrimSpace(h.Get("Content-Id")), "<>"),
	}

	if header.Encoding == "" {
		header.Encoding = "7bit"
	}

	mediaType, params, err := rfc822.ParseContentType(h.Get("Content-Type"))
	if err != nil {
		return header, nil, err
	}

	typ, subtype, ok := rfc822.SplitMediaType(mediaType)
	if !ok {
		return header, nil, errNoSubtype
	}

	header.Type, header.Subtype = typ, subtype
	header.Charset = params["charset"]
	header.Filename = decodeWord(params["name"])

	if disposition := h.Get("Content-Disposition"); disposition != "" {
		if value, dispParams, err := mime.ParseMediaType(disposition); err == nil {
			header.Disposition = value

			if filename := dispParams["filename"]; filename != "" {
				header.Filename = decodeWord(filename)
			}
		}
	}

	return header, params, nil
}

func decodeWord(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}

	return decoded
}
