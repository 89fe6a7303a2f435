// Package pop3 implements the POP3 command layer and an incoming mail client on top of it.
package pop3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/courier-mail/courier/internal/watchdog"
	"github.com/courier-mail/courier/logging"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/observability"
	"github.com/courier-mail/courier/transport"
	"github.com/sirupsen/logrus"
)

const protocolName = "pop3"

// Protocol executes POP3 commands over a transport, one at a time.
type Protocol struct {
	ctx      context.Context
	tr       transport.Transport
	watchdog *watchdog.Watchdog
	log      *logrus.Entry
}

// NewProtocol returns a protocol over tr. An exchange that sees no traffic for stallTimeout is aborted by closing tr.
func NewProtocol(ctx context.Context, tr transport.Transport, stallTimeout time.Duration) *Protocol {
	p := &Protocol{
		ctx: ctx,
		tr:  tr,
		log: logrus.WithField("pkg", "pop3").WithField("protocol", protocolName).WithField("host", tr.Host()),
	}

	p.watchdog = watchdog.New(stallTimeout, func() {
		p.log.Warn("Server not responding, closing connection")
		observability.AddStall(ctx, protocolName)

		_ = tr.Close()
	})

	return p
}

// Stop releases the watchdog.
func (p *Protocol) Stop() {
	p.watchdog.Stop()
}

// ReceiveGreeting reads the server greeting that follows a connect.
func (p *Protocol) ReceiveGreeting() (string, error) {
	p.watchdog.Start()
	defer p.watchdog.Cancel()

	return p.response("", "greeting")
}

// Capa returns the server capabilities mapped to their parameters. A server without CAPA yields nil.
func (p *Protocol) Capa() (map[string]string, error) {
	lines, err := p.executeMultiline("CAPA", nil)
	if err != nil {
		var protoErr *mail.ProtocolError
		if errors.As(err, &protoErr) {
			return nil, nil
		}

		return nil, err
	}

	capabilities := make(map[string]string, len(lines))

	for _, line := range lines {
		keyword, params, _ := strings.Cut(line, " ")
		capabilities[strings.ToUpper(keyword)] = params
	}

	return capabilities, nil
}

// Stls asks the server to begin TLS and upgrades the transport. It returns false if the server refused.
func (p *Protocol) Stls(ctx context.Context) (bool, error) {
	if _, err := p.execute("STLS"); err != nil {
		var protoErr *mail.ProtocolError
		if errors.As(err, &protoErr) {
			return false, nil
		}

		return false, err
	}

	if err := p.tr.StartTLS(ctx); err != nil {
		return false, err
	}

	return true, nil
}

func (p *Protocol) User(username string) error {
	if _, err := p.execute("USER " + username); err != nil {
		return authFailure(err)
	}

	return nil
}

func (p *Protocol) Pass(password string) error {
	if _, err := p.execute("PASS " + password); err != nil {
		return authFailure(err)
	}

	return nil
}

// Stat returns the number of messages in the mailbox.
func (p *Protocol) Stat() (int, error) {
	result, err := p.execute("STAT")
	if err != nil {
		return 0, err
	}

	// "+OK count size": the count sits between the first and second space.
	fields := strings.SplitN(result, " ", 3)
	if len(fields) < 3 {
		return 0, unexpected("STAT", result)
	}

	count, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, unexpected("STAT", result)
	}

	return count, nil
}

// List returns the size of one message.
func (p *Protocol) List(index int) (int, error) {
	result, err := p.execute("LIST " + strconv.Itoa(index))
	if err != nil {
		return 0, err
	}

	size, err := strconv.Atoi(lastField(result))
	if err != nil {
		return 0, unexpected("LIST", result)
	}

	return size, nil
}

// ListAll returns the size of every message by index.
func (p *Protocol) ListAll(progress mail.ProgressHandler) (map[int]int, error) {
	lines, err := p.executeMultiline("LIST", progress)
	if err != nil {
		return nil, err
	}

	sizes := make(map[int]int, len(lines))

	for _, line := range lines {
		indexField, sizeField, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}

		index, err := strconv.Atoi(indexField)
		if err != nil {
			continue
		}

		size, err := strconv.Atoi(strings.TrimSpace(sizeField))
		if err != nil {
			continue
		}

		sizes[index] = size
	}

	return sizes, nil
}

// Top returns the header and the first lines of the body of a message.
func (p *Protocol) Top(index, lines int, progress mail.ProgressHandler) ([]byte, error) {
	body, err := p.executeMultiline(fmt.Sprintf("TOP %d %d", index, lines), progress)
	if err != nil {
		return nil, err
	}

	return joinLines(body), nil
}

// Retr returns a complete message.
func (p *Protocol) Retr(index int, progress mail.ProgressHandler) ([]byte, error) {
	body, err := p.executeMultiline("RETR "+strconv.Itoa(index), progress)
	if err != nil {
		return nil, err
	}

	return joinLines(body), nil
}

// Uidl returns the unique ID of one message.
func (p *Protocol) Uidl(index int) (string, error) {
	result, err := p.execute("UIDL " + strconv.Itoa(index))
	if err != nil {
		return "", err
	}

	uid := lastField(result)
	if uid == "" || uid == result {
		return "", unexpected("UIDL", result)
	}

	return uid, nil
}

// UidlAll returns the unique ID of every message by index.
func (p *Protocol) UidlAll(progress mail.ProgressHandler) (map[int]string, error) {
	lines, err := p.executeMultiline("UIDL", progress)
	if err != nil {
		return nil, err
	}

	uids := make(map[int]string, len(lines))

	for _, line := range lines {
		indexField, uid, ok := strings.Cut(line, " ")
		if !ok || uid == "" {
			continue
		}

		index, err := strconv.Atoi(indexField)
		if err != nil {
			continue
		}

		uids[index] = uid
	}

	return uids, nil
}

// Dele marks a message for deletion. Indexes stay valid until the session ends.
func (p *Protocol) Dele(index int) error {
	_, err := p.execute("DELE " + strconv.Itoa(index))

	return err
}

func (p *Protocol) Noop() error {
	_, err := p.execute("NOOP")

	return err
}

// Quit ends the session, which commits deletions.
func (p *Protocol) Quit() error {
	_, err := p.execute("QUIT")

	return err
}

// execute sends one command and returns its status line.
func (p *Protocol) execute(command string) (string, error) {
	p.watchdog.Start()
	defer p.watchdog.Cancel()

	return p.exchange(command)
}

// executeMultiline sends one command and collects the lines up to the terminating ".", dot-unescaped.
func (p *Protocol) executeMultiline(command string, progress mail.ProgressHandler) ([]string, error) {
	p.watchdog.Start()
	defer p.watchdog.Cancel()

	before := p.tr.BytesReceived()

	if _, err := p.exchange(command); err != nil {
		return nil, err
	}

	var lines []string

	for {
		line, err := p.receive()
		if err != nil {
			return nil, err
		}

		p.watchdog.Kick()

		received := p.tr.BytesReceived()
		mail.NotifyProgress(progress, mail.ProgressNetwork, int(received-before), -1)
		before = received

		if line == "." {
			break
		}

		if strings.HasPrefix(line, "..") {
			line = line[1:]
		}

		lines = append(lines, line)
	}

	p.log.WithField("cmd", verb(command)).WithField("lines", len(lines)).Trace("Multi-line response received")

	return lines, nil
}

func (p *Protocol) exchange(command string) (string, error) {
	p.log.Trace("C: " + logging.RedactCommand(command))

	if err := p.tr.SendCommand(command); err != nil {
		observability.AddCommand(p.ctx, protocolName, verb(command), err)
		return "", p.transportFailure(err)
	}

	p.watchdog.Kick()

	result, err := p.response(command, verb(command))

	observability.AddCommand(p.ctx, protocolName, verb(command), err)

	return result, err
}

// response reads one status line. A negative line becomes a ProtocolError carrying the text after the first space.
func (p *Protocol) response(command, name string) (string, error) {
	before := p.tr.BytesReceived()

	line, err := p.receive()
	if err != nil {
		return "", err
	}

	observability.AddBytesReceived(p.ctx, protocolName, int(p.tr.BytesReceived()-before))

	p.watchdog.Kick()

	switch {
	case strings.HasPrefix(line, "-"):
		message := line
		if idx := strings.IndexByte(line, ' '); idx >= 0 && idx < len(line)-1 {
			message = line[idx+1:]
		}

		return "", &mail.ProtocolError{Command: name, Message: message, Fatal: true}

	case strings.HasPrefix(line, "+"):
		return line, nil

	default:
		return "", unexpected(name, line)
	}
}

func (p *Protocol) receive() (string, error) {
	line, err := p.tr.Receive()
	if err != nil {
		return "", p.transportFailure(err)
	}

	p.log.Trace("S: " + logging.Sanitize(line))

	return line, nil
}

// transportFailure reports an I/O error caused by the watchdog as a stall.
func (p *Protocol) transportFailure(err error) error {
	if p.watchdog.Expired() {
		return fmt.Errorf("%w: %v", mail.ErrStallTimeout, err)
	}

	return err
}

// authFailure classifies a negative USER or PASS response.
func authFailure(err error) error {
	var protoErr *mail.ProtocolError

	if !errors.As(err, &protoErr) {
		return err
	}

	return mail.ClassifyAuthFailure(protoErr.Message)
}

func unexpected(command, line string) error {
	return &mail.ProtocolError{Command: command, Message: "unexpected response: " + logging.Sanitize(line), Fatal: true}
}

func verb(command string) string {
	v, _, _ := strings.Cut(command, " ")

	return strings.ToUpper(v)
}

// lastField returns the text after the last space.
func lastField(line string) string {
	return line[strings.LastIndexByte(line, ' ')+1:]
}

func joinLines(lines []string) []byte {
	var buf bytes.Buffer

	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteString("\r\n")
	}

	return buf.Bytes()
}
