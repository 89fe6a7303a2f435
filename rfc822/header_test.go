package rfc822

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const literal = "To: somebody\r\nFrom: somebody else\r\nSubject: this is\r\n\ta multiline field\r\nFrom: duplicate entry\r\n\r\n"

func TestHeader_New(t *testing.T) {
	header, err := NewHeader(nil)
	require.NoError(t, err)
	assert.Equal(t, "", string(header.Raw()))

	header.Set("to", "someone@pm.me")
	assert.Equal(t, "To: someone@pm.me\r\n", string(header.Raw()))
}

func TestHeader_Raw(t *testing.T) {
	header, err := NewHeader([]byte(literal))
	require.NoError(t, err)
	assert.Equal(t, literal, string(header.Raw()))
}

func TestHeader_Get(t *testing.T) {
	header, err := NewHeader([]byte(literal))
	require.NoError(t, err)

	assert.True(t, header.Has("subject"))
	assert.False(t, header.Has("cc"))
	assert.Equal(t, "somebody else", header.Get("from"))
	assert.Equal(t, "this is a multiline field", header.Get("Subject"))
	assert.Equal(t, " this is\r\n\ta multiline field\r\n", string(header.GetRaw("SUBJECT")))
}

func TestHeader_SetAndDel(t *testing.T) {
	header, err := NewHeader([]byte(literal))
	require.NoError(t, err)

	header.Set("subject", "replaced")
	header.Del("from")

	assert.Equal(t, "To: somebody\r\nSubject: replaced\r\n\r\n", string(header.Raw()))
}

func TestHeader_Entries(t *testing.T) {
	header, err := NewHeader([]byte(literal))
	require.NoError(t, err)

	var keys, vals []string

	header.Entries(func(key, val string) {
		keys = append(keys, key)
		vals = append(vals, val)
	})

	assert.Equal(t, []string{"To", "From", "Subject", "From"}, keys)
	assert.Equal(t, []string{"somebody", "somebody else", "this is a multiline field", "duplicate entry"}, vals)
}

func TestHeader_FoldedLines(t *testing.T) {
	const literal = "Subject: a very\r\n\tlong: line with a colon and indent\r\n \r\n and space line\r\nFrom: sender\r\n"

	header, err := NewHeader([]byte(literal))
	require.NoError(t, err)

	assert.Equal(t, "a very long: line with a colon and indent and space line", header.Get("Subject"))
	assert.Equal(t, "sender", header.Get("From"))
}

func TestHeader_MultilineFilename(t *testing.T) {
	const literal = "Content-Type: application/msword; name=\"this is a very long\n filename: too long.doc\"\n"

	header, err := NewHeader([]byte(literal))
	require.NoError(t, err)

	assert.Equal(t, `application/msword; name="this is a very long filename: too long.doc"`, header.Get("Content-Type"))
}

func TestHeader_WithTabs(t *testing.T) {
	const literal = "From: Bar <bar@bar.com>\n" +
		"Subject: Weird header field\n" +
		"To:\t<receiver@pm.test>,\n" +
		" <another@pm.test>\n"

	header, err := NewHeader([]byte(literal))
	require.NoError(t, err)
	require.Equal(t, "<receiver@pm.test>, <another@pm.test>", header.Get("To"))
}

func TestHeader_Malformed(t *testing.T) {
	_, err := NewHeader([]byte("X-Mozilla-Keys:\n>From 1637354717149124322@xxx Tue Jun 25 22:52:20 +0000 2019\nX-GM-THIRD: 12345\n"))
	require.ErrorIs(t, err, ErrNonASCIIHeaderKey)

	_, err = NewHeader([]byte("X-Mozilla-Keys:\rX-GM-THIRD: 12345\r\n"))
	require.ErrorIs(t, err, ErrBareCR)

	_, err = NewHeader([]byte(" leading continuation\r\n"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestHeader_EmptyValues(t *testing.T) {
	header, err := NewHeader([]byte("Content-tYpe:\r"))
	require.NoError(t, err)
	require.Empty(t, header.Get("Content-Type"))

	header, err = NewHeader([]byte("Content-tYpe:Foobar\r\n"))
	require.NoError(t, err)
	require.Equal(t, "Foobar", header.Get("Content-Type"))
}

func TestSplit(t *testing.T) {
	header, body := Split([]byte("To: user@pm.me\r\n\r\nhi\r\n"))
	assert.Equal(t, "To: user@pm.me\r\n\r\n", string(header))
	assert.Equal(t, "hi\r\n", string(body))

	header, body = Split([]byte("To: user@pm.me"))
	assert.Equal(t, "To: user@pm.me", string(header))
	assert.Empty(t, body)
}
