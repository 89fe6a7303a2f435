package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayablePart(t *testing.T) {
	root, err := Parse([]byte(mixedLiteral), true)
	require.NoError(t, err)

	plain := DisplayablePart(root, DisplayPlain)
	require.NotNil(t, plain)
	assert.Equal(t, "plain", plain.Header().Subtype)

	html := DisplayablePart(root, DisplayHTML)
	require.NotNil(t, html)
	assert.Equal(t, "html", html.Header().Subtype)

	attachments := Attachments(root, DisplayPlain)
	require.Len(t, attachments, 1)
	assert.Equal(t, "dot.png", attachments[0].Header().Filename)
}

func TestDisplayablePartFallsBackWithinAlternative(t *testing.T) {
	root := NewMultiPart("alternative", "")
	root.AddChild(NewText("html", "utf-8", "<b>only html</b>"))

	text := DisplayablePart(root, DisplayPlain)
	require.NotNil(t, text)
	assert.Equal(t, "html", text.Header().Subtype)
}

func TestAttachmentsIncludeOddText(t *testing.T) {
	root := NewMultiPart("mixed", "")
	body := NewText("plain", "us-ascii", "body")
	calendar := NewText("calendar", "utf-8", "BEGIN:VCALENDAR")
	notes := NewAttachment("text/plain", "notes.txt", []byte("notes"))
	forwarded := NewLeaf(PartHeader{Type: "message", Subtype: "rfc822"}, []byte("Subject: fwd\r\n\r\nhi"), true)

	root.AddChild(body)
	root.AddChild(calendar)
	root.AddChild(notes)
	root.AddChild(forwarded)

	assert.Same(t, body, DisplayablePart(root, DisplayPlain))
	assert.Equal(t, []Leaf{calendar, notes, forwarded}, Attachments(root, DisplayPlain))
}

func TestDisplayablePartNone(t *testing.T) {
	root := NewMultiPart("mixed", "")
	root.AddChild(NewAttachment("application/pdf", "a.pdf", []byte("%PDF")))

	assert.Nil(t, DisplayablePart(root, DisplayHTML))
	assert.Len(t, Attachments(root, DisplayHTML), 1)
}

func TestRenderText(t *testing.T) {
	html := NewText("html", "utf-8", "<p>Hello <b>there</b></p><script>alert(1)</script>")

	plain, err := RenderText(html, DisplayPlain)
	require.NoError(t, err)
	assert.Contains(t, plain, "Hello there")
	assert.NotContains(t, plain, "<b>")

	sanitized, err := RenderText(html, DisplayHTML)
	require.NoError(t, err)
	assert.Contains(t, sanitized, "<p>Hello <b>there</b></p>")
	assert.NotContains(t, sanitized, "script")

	escaped, err := RenderText(NewText("plain", "us-ascii", "a < b"), DisplayHTML)
	require.NoError(t, err)
	assert.Equal(t, "<pre>a &lt; b</pre>", escaped)

	_, err = RenderText(NewLeaf(PartHeader{Type: "text", Subtype: "plain", Encoding: "x-binhex"}, nil, true).(*TextPart), DisplayPlain)
	require.Error(t, err)
}
