// Package smtp implements the SMTP command layer and an outgoing mail client on top of it.
package smtp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/courier-mail/courier/internal/watchdog"
	"github.com/courier-mail/courier/logging"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/observability"
	"github.com/courier-mail/courier/transport"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"
)

const (
	protocolName = "smtp"

	greetingTimeout = 60 * time.Second
)

const (
	codeReady      = 220
	codeClosing    = 221
	codeAuthOK     = 235
	codeOK         = 250
	codeForwarding = 251
	codeChallenge  = 334
	codeStartInput = 354
)

// Reply is a complete, possibly multi-line, server reply.
type Reply struct {
	Code  int
	Lines []string
}

// Text returns the reply text of the last line.
func (r Reply) Text() string {
	if len(r.Lines) == 0 {
		return ""
	}

	return r.Lines[len(r.Lines)-1]
}

// Protocol executes SMTP commands over a transport, one at a time.
type Protocol struct {
	ctx          context.Context
	tr           transport.Transport
	stallTimeout time.Duration
	watchdog     *watchdog.Watchdog
	log          *logrus.Entry
}

func NewProtocol(ctx context.Context, tr transport.Transport, stallTimeout time.Duration) *Protocol {
	p := &Protocol{
		ctx:          ctx,
		tr:           tr,
		stallTimeout: stallTimeout,
		log:          logrus.WithField("pkg", "smtp").WithField("protocol", protocolName).WithField("host", tr.Host()),
	}

	p.watchdog = p.newWatchdog(stallTimeout)

	return p
}

func (p *Protocol) Stop() {
	p.watchdog.Stop()
}

// ReceiveGreeting reads the server greeting, which must carry code 220.
func (p *Protocol) ReceiveGreeting() (Reply, error) {
	// The greeting may legitimately take longer than a command response.
	if greetingTimeout > p.stallTimeout {
		greeting := p.newWatchdog(greetingTimeout)
		defer greeting.Stop()

		return p.greeting(greeting)
	}

	return p.greeting(p.watchdog)
}

func (p *Protocol) greeting(w *watchdog.Watchdog) (Reply, error) {
	w.Start()
	defer w.Cancel()

	reply, err := p.readReply(w)
	if err != nil {
		return Reply{}, err
	}

	if reply.Code != codeReady {
		return reply, &mail.ProtocolError{
			Command: "greeting",
			Message: "Invalid server greeting: " + logging.Sanitize(reply.Text()),
			Fatal:   true,
		}
	}

	return reply, nil
}

// Ehlo identifies the client and returns the advertised extensions mapped to their parameters.
func (p *Protocol) Ehlo(domain string) (map[string]string, error) {
	reply, err := p.execute("EHLO "+domain, codeOK)
	if err != nil {
		return nil, err
	}

	extensions := make(map[string]string)

	// The first line is the server's own greeting.
	for _, line := range reply.Lines[1:] {
		keyword, params, _ := strings.Cut(line, " ")
		extensions[strings.ToUpper(keyword)] = params
	}

	return extensions, nil
}

// StartTLS asks the server to begin TLS and upgrades the transport.
func (p *Protocol) StartTLS(ctx context.Context) error {
	if _, err := p.execute("STARTTLS", codeReady); err != nil {
		return err
	}

	return p.tr.StartTLS(ctx)
}

// Auth authenticates with the given SASL client.
func (p *Protocol) Auth(client sasl.Client) error {
	mech, ir, err := client.Start()
	if err != nil {
		return err
	}

	command := "AUTH " + mech

	if ir != nil {
		command += " " + encodeAuth(ir)
	}

	reply, err := p.execute(command)

	for err == nil {
		switch reply.Code {
		case codeAuthOK:
			return nil

		case codeChallenge:
			challenge, decodeErr := base64.StdEncoding.DecodeString(reply.Text())
			if decodeErr != nil {
				_, _ = p.execute("*")
				return &mail.ProtocolError{Command: "AUTH", Message: "malformed challenge", Fatal: true}
			}

			response, nextErr := client.Next(challenge)
			if nextErr != nil {
				_, _ = p.execute("*")
				return nextErr
			}

			reply, err = p.execute(encodeAuth(response))

		default:
			return authFailure(reply)
		}
	}

	return err
}

func (p *Protocol) Mail(from string) error {
	_, err := p.execute("MAIL FROM:<"+from+">", codeOK)

	return err
}

func (p *Protocol) Rcpt(to string) error {
	_, err := p.execute("RCPT TO:<"+to+">", codeOK, codeForwarding)

	return err
}

// Data transmits payload, dot-stuffed and terminated by a lone dot. The final reply is awaited without the
// watchdog since servers may take long to accept a message.
func (p *Protocol) Data(payload []byte) error {
	p.watchdog.Start()

	if _, err := p.exchange("DATA", p.watchdog, codeStartInput); err != nil {
		p.watchdog.Cancel()
		return err
	}

	p.watchdog.Kick()

	if err := p.tr.SendRaw(stuff(payload)); err != nil {
		p.watchdog.Cancel()
		return p.transportFailure(nil, err)
	}

	p.watchdog.Kick()

	if err := p.tr.SendCommand("."); err != nil {
		p.watchdog.Cancel()
		return p.transportFailure(nil, err)
	}

	p.watchdog.Cancel()

	reply, err := p.readReply(nil)

	observability.AddCommand(p.ctx, protocolName, "DATA", err)

	if err != nil {
		return err
	}

	if reply.Code != codeOK {
		return replyError("DATA", reply)
	}

	return nil
}

func (p *Protocol) Rset() error {
	_, err := p.execute("RSET", codeOK)

	return err
}

func (p *Protocol) Quit() error {
	_, err := p.execute("QUIT", codeClosing)

	return err
}

// execute sends one command and reads its reply. If expected codes are given, any other code is an error.
func (p *Protocol) execute(command string, expected ...int) (Reply, error) {
	p.watchdog.Start()
	defer p.watchdog.Cancel()

	return p.exchange(command, p.watchdog, expected...)
}

func (p *Protocol) exchange(command string, w *watchdog.Watchdog, expected ...int) (Reply, error) {
	p.log.Trace("C: " + redact(command))

	if err := p.tr.SendCommand(command); err != nil {
		observability.AddCommand(p.ctx, protocolName, verb(command), err)
		return Reply{}, p.transportFailure(w, err)
	}

	w.Kick()

	reply, err := p.readReply(w)
	if err == nil && len(expected) > 0 && !hasCode(reply, expected) {
		err = replyError(verb(command), reply)
	}

	observability.AddCommand(p.ctx, protocolName, verb(command), err)

	return reply, err
}

// readReply reads lines until one without the continuation marker.
func (p *Protocol) readReply(w *watchdog.Watchdog) (Reply, error) {
	var reply Reply

	before := p.tr.BytesReceived()

	for {
		line, err := p.tr.Receive()
		if err != nil {
			return Reply{}, p.transportFailure(w, err)
		}

		if w != nil {
			w.Kick()
		}

		p.log.Trace("S: " + logging.Sanitize(line))

		if len(line) < 3 {
			return Reply{}, &mail.ProtocolError{Message: "malformed reply: " + logging.Sanitize(line), Fatal: true}
		}

		code, err := strconv.Atoi(line[:3])
		if err != nil {
			return Reply{}, &mail.ProtocolError{Message: "malformed reply: " + logging.Sanitize(line), Fatal: true}
		}

		reply.Code = code

		if len(line) > 4 {
			reply.Lines = append(reply.Lines, line[4:])
		} else {
			reply.Lines = append(reply.Lines, "")
		}

		if len(line) == 3 || line[3] == ' ' {
			break
		}
	}

	observability.AddBytesReceived(p.ctx, protocolName, int(p.tr.BytesReceived()-before))

	return reply, nil
}

func (p *Protocol) newWatchdog(timeout time.Duration) *watchdog.Watchdog {
	return watchdog.New(timeout, func() {
		p.log.Warn("Server not responding, closing connection")
		observability.AddStall(p.ctx, protocolName)

		_ = p.tr.Close()
	})
}

// transportFailure reports an I/O error caused by the watchdog w, or the protocol's own if w is nil, as a stall.
func (p *Protocol) transportFailure(w *watchdog.Watchdog, err error) error {
	if w == nil {
		w = p.watchdog
	}

	if w.Expired() {
		return fmt.Errorf("%w: %v", mail.ErrStallTimeout, err)
	}

	return err
}

// replyError turns an unexpected reply into a ProtocolError. Transient 4xx replies are not fatal.
func replyError(command string, reply Reply) error {
	return &mail.ProtocolError{
		Command: command,
		Message: fmt.Sprintf("%d %s", reply.Code, reply.Text()),
		Fatal:   reply.Code >= 500,
	}
}

// authFailure classifies a rejected authentication. A 4xx reply naming the credentials is a recoverable AuthError,
// any other 4xx reply is transient.
func authFailure(reply Reply) error {
	text := fmt.Sprintf("%d %s", reply.Code, reply.Text())

	if reply.Code < 500 && !mail.IsAuthKeyword(reply.Text()) {
		return replyError("AUTH", reply)
	}

	return mail.ClassifyAuthFailure(text)
}

func hasCode(reply Reply, codes []int) bool {
	for _, code := range codes {
		if reply.Code == code {
			return true
		}
	}

	return false
}

// stuff normalizes line endings to CRLF and doubles a leading dot on every line. The result ends with CRLF.
func stuff(payload []byte) []byte {
	var buf bytes.Buffer

	buf.Grow(len(payload) + len(payload)/64 + 2)

	for len(payload) > 0 {
		line := payload

		if idx := bytes.IndexByte(payload, '\n'); idx >= 0 {
			line, payload = payload[:idx], payload[idx+1:]
		} else {
			payload = nil
		}

		line = bytes.TrimSuffix(line, []byte("\r"))

		if bytes.HasPrefix(line, []byte(".")) {
			buf.WriteByte('.')
		}

		buf.Write(line)
		buf.WriteString("\r\n")
	}

	return buf.Bytes()
}

func encodeAuth(b []byte) string {
	if len(b) == 0 {
		return "="
	}

	return base64.StdEncoding.EncodeToString(b)
}

// redact hides AUTH responses, which are bare base64 lines.
func redact(command string) string {
	switch v := verb(command); v {
	case "EHLO", "HELO", "MAIL", "RCPT", "DATA", "RSET", "QUIT", "NOOP", "STARTTLS", "*", ".":
		return logging.Sanitize(command)

	case "AUTH":
		return logging.RedactCommand(command)

	default:
		return "<credentials>"
	}
}

func verb(command string) string {
	v, _, _ := strings.Cut(command, " ")

	return strings.ToUpper(v)
}
