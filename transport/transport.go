// Package transport provides the line-oriented connection the protocol clients talk over.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/courier-mail/courier/internal/conn"
	"github.com/courier-mail/courier/internal/liner"
	"github.com/courier-mail/courier/mail"
	"github.com/sirupsen/logrus"
)

// Transport is a byte-oriented, optionally TLS-wrapped connection to a mail server.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	IsConnected() bool

	// SendCommand writes line followed by CRLF.
	SendCommand(line string) error

	// SendRaw writes b as it is.
	SendRaw(b []byte) error

	// Receive reads one line without its line ending.
	Receive() (string, error)

	// StartTLS secures the open connection.
	StartTLS(ctx context.Context) error

	// BytesReceived is the number of bytes received since the transport was created.
	BytesReceived() int64

	Host() string
}

type Security string

const (
	SecurityNone     Security = "none"
	SecuritySSL      Security = "ssl"
	SecurityStartTLS Security = "starttls"
)

type Options struct {
	Host     string
	Port     int
	Security Security

	// TLSConfig overrides the default configuration, which verifies Host.
	TLSConfig *tls.Config

	DialTimeout time.Duration
}

func (opts Options) Addr() string {
	return net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
}

func (opts Options) tlsConfig() *tls.Config {
	if opts.TLSConfig != nil {
		return opts.TLSConfig
	}

	return &tls.Config{ServerName: opts.Host, MinVersion: tls.VersionTLS12}
}

// TCP is a Transport over a TCP connection.
type TCP struct {
	opts Options
	log  *logrus.Entry

	mu    sync.Mutex
	conn  *conn.Conn
	liner *liner.Liner

	// received accumulates the counts of previous connections.
	received int64
}

func New(opts Options) *TCP {
	return &TCP{
		opts: opts,
		log:  logrus.WithField("pkg", "transport").WithField("host", opts.Addr()),
	}
}

func (t *TCP) Host() string {
	return t.opts.Host
}

func (t *TCP) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	if t.opts.DialTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, t.opts.DialTimeout)
		defer cancel()
	}

	var config *tls.Config

	if t.opts.Security == SecuritySSL {
		config = t.opts.tlsConfig()
	}

	c, err := conn.Dial(ctx, t.opts.Addr(), config)
	if err != nil {
		return &mail.TransportError{Op: "dial", Err: err}
	}

	t.conn = c
	t.liner = liner.New(c)

	t.log.WithField("tls", c.IsTLS()).Info("Connection opened")

	return nil
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	t.received += t.conn.BytesReceived()

	err := t.conn.Close()

	t.conn, t.liner = nil, nil

	t.log.Info("Connection closed")

	return err
}

func (t *TCP) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *TCP) SendCommand(line string) error {
	return t.SendRaw([]byte(line + "\r\n"))
}

func (t *TCP) SendRaw(b []byte) error {
	c, _, err := t.current()
	if err != nil {
		return err
	}

	if _, err := c.Write(b); err != nil {
		return &mail.TransportError{Op: "write", Err: err}
	}

	return nil
}

func (t *TCP) Receive() (string, error) {
	_, l, err := t.current()
	if err != nil {
		return "", err
	}

	line, err := l.ReadLine()
	if err != nil {
		return "", &mail.TransportError{Op: "read", Err: err}
	}

	return line, nil
}

func (t *TCP) StartTLS(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return mail.ErrNotConnected
	}

	if t.liner.Buffered() > 0 {
		return &mail.TransportError{Op: "starttls", Err: fmt.Errorf("unexpected data before TLS handshake")}
	}

	if err := t.conn.StartTLS(ctx, t.opts.tlsConfig()); err != nil {
		return &mail.TransportError{Op: "starttls", Err: err}
	}

	t.liner.Reset(t.conn)

	t.log.Debug("Connection upgraded to TLS")

	return nil
}

func (t *TCP) BytesReceived() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return t.received
	}

	return t.received + t.conn.BytesReceived()
}

func (t *TCP) current() (*conn.Conn, *liner.Liner, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, nil, mail.ErrNotConnected
	}

	return t.conn, t.liner, nil
}
