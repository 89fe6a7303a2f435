package connector

import (
	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/rfc822"
)

// envelope parses the envelope from the header of a literal.
func envelope(literal []byte) (*message.Envelope, error) {
	raw, _ := rfc822.Split(literal)

	header, err := rfc822.NewHeader(raw)
	if err != nil {
		return nil, &message.ParseError{Err: err}
	}

	return message.ParseEnvelope(header)
}
