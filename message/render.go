package message

import (
	"html"

	"github.com/k3a/html2text"
	"github.com/microcosm-cc/bluemonday"
)

// RenderText decodes a text part for display in the given format. HTML is converted to plain text when the
// format is plain and sanitized when it is html; plain text is escaped for html display.
func RenderText(part *TextPart, format DisplayFormat) (string, error) {
	var text *TextContent

	switch content := DecodeContent(part).(type) {
	case *TextContent:
		text = content

	case *UnsupportedContent:
		return "", content.Err

	default:
		return "", &DecodeError{Encoding: part.Header().Encoding}
	}

	switch {
	case text.Subtype == "html" && format == DisplayPlain:
		return html2text.HTML2Text(text.Text), nil

	case text.Subtype == "html":
		return bluemonday.UGCPolicy().Sanitize(text.Text), nil

	case format == DisplayHTML:
		return "<pre>" + html.EscapeString(text.Text) + "</pre>", nil

	default:
		return text.Text, nil
	}
}
