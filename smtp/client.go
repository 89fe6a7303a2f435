package smtp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/observability"
	"github.com/courier-mail/courier/transport"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDomain       = "localhost"
	DefaultStallTimeout = 60 * time.Second
)

var ErrNoRecipients = errors.New("message has no recipients")

type Config struct {
	Username string
	Password string

	// Domain is announced in EHLO.
	Domain string

	// Security selects whether STARTTLS is issued after the first EHLO.
	Security transport.Security

	Auth AuthMechanism

	StallTimeout time.Duration
}

// Client is an outgoing mail client for an SMTP submission server.
type Client struct {
	cfg Config
	tr  transport.Transport
	log *logrus.Entry

	proto      *Protocol
	extensions map[string]string
}

var _ connector.Outgoing = (*Client)(nil)

func NewClient(cfg Config, tr transport.Transport) *Client {
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}

	if cfg.Auth == "" {
		cfg.Auth = AuthAuto
	}

	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = DefaultStallTimeout
	}

	return &Client{
		cfg: cfg,
		tr:  tr,
		log: logrus.WithField("pkg", "smtp").WithField("host", tr.Host()),
	}
}

func (c *Client) Protocol() string {
	return protocolName
}

// Extensions returns the extensions advertised in the last EHLO.
func (c *Client) Extensions() map[string]string {
	return c.extensions
}

// Open connects, negotiates TLS if configured and authenticates.
func (c *Client) Open(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	if err := c.open(ctx); err != nil {
		c.disconnect()
		return err
	}

	return nil
}

func (c *Client) open(ctx context.Context) error {
	err := c.tr.Open(ctx)

	observability.AddConnection(ctx, protocolName, err)

	if err != nil {
		return err
	}

	c.proto = NewProtocol(ctx, c.tr, c.cfg.StallTimeout)

	if _, err := c.proto.ReceiveGreeting(); err != nil {
		return err
	}

	if c.extensions, err = c.proto.Ehlo(c.cfg.Domain); err != nil {
		return err
	}

	if c.cfg.Security == transport.SecurityStartTLS {
		if _, ok := c.extensions["STARTTLS"]; !ok {
			return &mail.ProtocolError{Command: "STARTTLS", Message: "server does not support STARTTLS", Fatal: true}
		}

		if err := c.proto.StartTLS(ctx); err != nil {
			return err
		}

		if c.extensions, err = c.proto.Ehlo(c.cfg.Domain); err != nil {
			return err
		}
	}

	mech := chooseMechanism(c.cfg.Auth, c.extensions)
	if mech == AuthNone {
		c.log.Info("Connected without authentication")
		return nil
	}

	client, err := NewSASLClient(mech, c.cfg.Username, c.cfg.Password)
	if err != nil {
		return err
	}

	err = c.proto.Auth(client)

	observability.AddAuthAttempt(ctx, protocolName, err)

	if err != nil {
		return err
	}

	c.log.WithField("mech", mech).Info("Logged in")

	return nil
}

// SendMessage transmits literal from the envelope's sender to all of its recipients.
// A rejected transaction is reset so that the connection stays usable.
func (c *Client) SendMessage(_ context.Context, env *message.Envelope, literal []byte) error {
	if !c.IsConnected() {
		return mail.ErrNotConnected
	}

	recipients := env.Recipients()
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	if err := c.transaction(sender(env), recipients, literal); err != nil {
		var protoErr *mail.ProtocolError

		if errors.As(err, &protoErr) && c.IsConnected() {
			if rsetErr := c.proto.Rset(); rsetErr != nil {
				c.log.WithError(rsetErr).Warn("Failed to reset transaction")
			}
		}

		return err
	}

	c.log.WithField("recipients", len(recipients)).Debug("Message sent")

	return nil
}

func (c *Client) transaction(from string, recipients []message.Address, literal []byte) error {
	if err := c.proto.Mail(from); err != nil {
		return err
	}

	for _, rcpt := range recipients {
		if err := c.proto.Rcpt(rcpt.Addr); err != nil {
			return fmt.Errorf("recipient %s: %w", rcpt.Addr, err)
		}
	}

	return c.proto.Data(literal)
}

// Close ends the session. Errors from QUIT are ignored.
func (c *Client) Close(context.Context) error {
	if c.proto != nil && c.tr.IsConnected() {
		if err := c.proto.Quit(); err != nil {
			c.log.WithError(err).Debug("QUIT failed")
		}
	}

	c.disconnect()

	return nil
}

func (c *Client) IsConnected() bool {
	return c.proto != nil && c.tr.IsConnected()
}

func (c *Client) disconnect() {
	if err := c.tr.Close(); err != nil {
		c.log.WithError(err).Debug("Failed to close transport")
	}

	if c.proto != nil {
		c.proto.Stop()
		c.proto = nil
	}
}

func sender(env *message.Envelope) string {
	switch {
	case len(env.From) > 0:
		return env.From[0].Addr

	case len(env.Sender) > 0:
		return env.Sender[0].Addr

	default:
		return ""
	}
}
