package rfc822

import (
	"mime"
	"strings"
)

type MIMEType string

const (
	TextPlain            MIMEType = "text/plain"
	TextHTML             MIMEType = "text/html"
	MultipartMixed       MIMEType = "multipart/mixed"
	MultipartAlternative MIMEType = "multipart/alternative"
	MultipartRelated     MIMEType = "multipart/related"
	MessageRFC822        MIMEType = "message/rfc822"
)

// ParseContentType parses a Content-Type value. An empty value is text/plain.
func ParseContentType(val string) (string, map[string]string, error) {
	if val == "" {
		val = string(TextPlain)
	}

	mediaType, params, err := mime.ParseMediaType(val)
	if err != nil {
		return "", nil, err
	}

	return strings.ToLower(mediaType), params, nil
}

// SplitMediaType splits "type/subtype" on the first slash. ok is false if there is no slash.
func SplitMediaType(mediaType string) (string, string, bool) {
	return strings.Cut(mediaType, "/")
}
