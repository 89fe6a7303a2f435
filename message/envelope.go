package message

import (
	"bufio"
	"bytes"
	"strings"
	"time"

	"github.com/courier-mail/courier/rfc822"
	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/sirupsen/logrus"
)

// DefaultSubject is used for messages without a subject.
const DefaultSubject = "<subject>"

// Address is one decoded mailbox.
type Address struct {
	Name string
	Addr string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Addr
	}

	return a.Name + " <" + a.Addr + ">"
}

// Envelope is the decoded header metadata of a message.
type Envelope struct {
	Subject string

	From    []Address
	To      []Address
	Cc      []Address
	Bcc     []Address
	ReplyTo []Address
	Sender  []Address

	MessageID string
	InReplyTo string
	Date      time.Time

	// Mailer is the X-Mailer header.
	Mailer string

	// Structure is the template derived from the Content-Type header, or nil.
	Structure Part
}

// Recipients returns the To, Cc and Bcc addresses.
func (env *Envelope) Recipients() []Address {
	recipients := make([]Address, 0, len(env.To)+len(env.Cc)+len(env.Bcc))

	recipients = append(recipients, env.To...)
	recipients = append(recipients, env.Cc...)
	recipients = append(recipients, env.Bcc...)

	return recipients
}

// ParseEnvelope decodes the envelope of a message header. A missing subject becomes DefaultSubject and a missing
// or malformed date becomes the current time.
func ParseEnvelope(h *rfc822.Header) (*Envelope, error) {
	raw := h.Raw()

	switch {
	case len(raw) == 0:
		raw = []byte("\r\n")

	case !bytes.HasSuffix(raw, []byte("\n\n")) && !bytes.HasSuffix(raw, []byte("\r\n\r\n")):
		raw = append(append([]byte(nil), raw...), "\r\n"...)
	}

	parsed, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	header := mail.Header{Header: gomessage.Header{Header: parsed}}

	env := &Envelope{
		Subject:   subject(header),
		From:      addressList(header, "From"),
		To:        addressList(header, "To"),
		Cc:        addressList(header, "Cc"),
		Bcc:       addressList(header, "Bcc"),
		ReplyTo:   addressList(header, "Reply-To"),
		Sender:    addressList(header, "Sender"),
		MessageID: strings.TrimSpace(h.Get("Message-Id")),
		InReplyTo: strings.TrimSpace(h.Get("In-Reply-To")),
		Date:      date(header),
		Mailer:    h.Get("X-Mailer"),
		Structure: StructureTemplate(h),
	}

	return env, nil
}

func subject(header mail.Header) string {
	value, err := header.Subject()
	if err != nil {
		value = header.Get("Subject")
	}

	if value = strings.TrimSpace(value); value == "" {
		return DefaultSubject
	}

	return value
}

func date(header mail.Header) time.Time {
	value, err := header.Date()
	if err != nil || value.IsZero() {
		return time.Now()
	}

	return value
}

// addressList decodes an address header. An unparsable list is kept as one raw address.
func addressList(header mail.Header, key string) []Address {
	if !header.Has(key) {
		return nil
	}

	list, err := header.AddressList(key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Debug("Failed to parse address list")

		if raw := strings.TrimSpace(header.Get(key)); raw != "" {
			return []Address{{Addr: raw}}
		}

		return nil
	}

	addresses := make([]Address, 0, len(list))

	for _, addr := range list {
		addresses = append(addresses, Address{
			Name: strings.Trim(strings.TrimSpace(addr.Name), `"`),
			Addr: addr.Address,
		})
	}

	return addresses
}
