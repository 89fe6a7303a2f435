// Package rfc822 splits raw messages into a tree of MIME sections without decoding their content.
package rfc822

import (
	"bytes"
	"strings"
)

// Section is one node of a message: its header and body as offsets into the shared literal.
type Section struct {
	identifier []int
	literal    []byte
	header     *Header
	headerAt   int
	bodyAt     int
	end        int

	// complete is false when the section was cut short, e.g. by a line-limited download.
	complete bool

	children []*Section
	loaded   bool

	// err is set on a sub-section whose header could not be parsed.
	err error
}

// Parse parses a fully downloaded message.
func Parse(literal []byte) (*Section, error) {
	return parse(literal, []int{}, 0, len(literal), true)
}

// ParsePartial parses a message whose tail may be missing.
func ParsePartial(literal []byte) (*Section, error) {
	return parse(literal, []int{}, 0, len(literal), false)
}

func (section *Section) Identifier() []int {
	return section.identifier
}

// ContentType returns the lowercased media type and its parameters. A missing header yields text/plain.
func (section *Section) ContentType() (string, map[string]string, error) {
	return ParseContentType(section.header.Get("Content-Type"))
}

func (section *Section) Header() *Header {
	return section.header
}

func (section *Section) RawHeader() []byte {
	return section.literal[section.headerAt:section.bodyAt]
}

func (section *Section) Body() []byte {
	return section.literal[section.bodyAt:section.end]
}

// Literal returns the header and body of the section.
func (section *Section) Literal() []byte {
	return section.literal[section.headerAt:section.end]
}

func (section *Section) Complete() bool {
	return section.complete
}

// Err returns the header parse error of a broken sub-section. Its header is empty and its body is the whole part.
func (section *Section) Err() error {
	return section.err
}

// Children returns the sub-sections of a multipart or message/rfc822 section.
func (section *Section) Children() ([]*Section, error) {
	if !section.loaded {
		if err := section.load(); err != nil {
			return nil, err
		}

		section.loaded = true
	}

	return section.children, nil
}

// Part returns the section at the given 1-based path, or nil if there is none.
func (section *Section) Part(identifier ...int) *Section {
	if len(identifier) == 0 {
		return section
	}

	children, err := section.Children()
	if err != nil {
		return nil
	}

	if identifier[0] <= 0 || identifier[0] > len(children) {
		return nil
	}

	return children[identifier[0]-1].Part(identifier[1:]...)
}

func (section *Section) load() error {
	contentType, contentParams, err := section.ContentType()
	if err != nil {
		return err
	}

	switch {
	case MIMEType(contentType) == MessageRFC822:
		child, err := parse(section.literal, section.identifier, section.bodyAt, section.end, section.complete)
		if err != nil {
			return err
		}

		children, err := child.Children()
		if err != nil {
			return err
		}

		section.children = children

	case strings.HasPrefix(contentType, "multipart/"):
		parts := NewScanner(section.Body(), contentParams["boundary"]).ScanAll()

		for idx, part := range parts {
			identifier := append(append([]int{}, section.identifier...), idx+1)
			begin := section.bodyAt + part.Offset
			end := begin + len(part.Data)
			complete := section.complete && part.Complete

			child, err := parse(section.literal, identifier, begin, end, complete)
			if err != nil {
				child = &Section{
					identifier: identifier,
					literal:    section.literal,
					header:     &Header{},
					headerAt:   begin,
					bodyAt:     begin,
					end:        end,
					complete:   complete,
					err:        err,
				}
			}

			section.children = append(section.children, child)
		}
	}

	return nil
}

// Split separates the header block, including its terminating blank line, from the body.
func Split(b []byte) ([]byte, []byte) {
	offset := 0

	for offset < len(b) {
		line := b[offset:]

		if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx+1]
		}

		offset += len(line)

		if len(bytes.Trim(line, "\r\n")) == 0 {
			break
		}
	}

	return b[:offset], b[offset:]
}

func parse(literal []byte, identifier []int, begin, end int, complete bool) (*Section, error) {
	rawHeader, _ := Split(literal[begin:end])

	header, err := NewHeader(rawHeader)
	if err != nil {
		return nil, err
	}

	return &Section{
		identifier: identifier,
		literal:    literal,
		header:     header,
		headerAt:   begin,
		bodyAt:     begin + len(rawHeader),
		end:        end,
		complete:   complete,
	}, nil
}
