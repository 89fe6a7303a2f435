package message

import (
	"bytes"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/sirupsen/logrus"
)

// SerializeMessage writes a complete message: the envelope header followed by the serialized tree.
func SerializeMessage(env *Envelope, root Part, provider ContentProvider) ([]byte, error) {
	header := newMailHeader(env)

	buf := new(bytes.Buffer)

	if err := textproto.WriteHeader(buf, header.Header.Header); err != nil {
		return nil, err
	}

	// The root part's header continues the message header.
	buf.Truncate(buf.Len() - len("\r\n"))

	if err := writePart(buf, root, provider); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func newMailHeader(env *Envelope) mail.Header {
	var header mail.Header

	date := env.Date
	if date.IsZero() {
		date = time.Now()
	}

	header.SetDate(date)
	header.SetSubject(env.Subject)

	for _, field := range []struct {
		key  string
		list []Address
	}{
		{"From", env.From},
		{"Sender", env.Sender},
		{"Reply-To", env.ReplyTo},
		{"To", env.To},
		{"Cc", env.Cc},
	} {
		if len(field.list) > 0 {
			header.SetAddressList(field.key, toMailAddresses(field.list))
		}
	}

	if env.MessageID != "" {
		header.Set("Message-Id", env.MessageID)
	} else if err := header.GenerateMessageID(); err != nil {
		logrus.WithError(err).Warn("Failed to generate message ID")
	}

	if env.InReplyTo != "" {
		header.Set("In-Reply-To", env.InReplyTo)
	}

	if env.Mailer != "" {
		header.Set("X-Mailer", env.Mailer)
	}

	header.Set("Mime-Version", "1.0")

	return header
}

func toMailAddresses(list []Address) []*mail.Address {
	addresses := make([]*mail.Address, 0, len(list))

	for _, addr := range list {
		addresses = append(addresses, &mail.Address{Name: addr.Name, Address: addr.Addr})
	}

	return addresses
}
