// Package faketransport is an in-memory transport driven by a scripted server, for protocol tests.
package faketransport

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/courier-mail/courier/mail"
)

// Handler answers one command line with the lines the server sends back.
type Handler func(line string) []string

type Transport struct {
	mu sync.Mutex

	handler  Handler
	greeting []string

	connected bool
	lines     chan string
	closed    chan struct{}

	sent     []string
	raw      bytes.Buffer
	received int64
	opens    int
	tls      bool

	openErr error
}

// New returns a transport whose server sends greeting on every connect and answers commands with handler.
func New(handler Handler, greeting ...string) *Transport {
	return &Transport{
		handler:  handler,
		greeting: greeting,
		lines:    make(chan string, 4096),
		closed:   make(chan struct{}),
	}
}

// FailOpen makes the next opens fail with err.
func (t *Transport) FailOpen(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.openErr = err
}

func (t *Transport) Open(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openErr != nil {
		return &mail.TransportError{Op: "dial", Err: t.openErr}
	}

	if t.connected {
		return nil
	}

	t.drain()

	t.connected = true
	t.closed = make(chan struct{})
	t.opens++
	t.tls = false

	for _, line := range t.greeting {
		t.lines <- line
	}

	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		t.connected = false
		close(t.closed)
	}

	return nil
}

func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.connected
}

func (t *Transport) SendCommand(line string) error {
	t.mu.Lock()

	if !t.connected {
		t.mu.Unlock()
		return mail.ErrNotConnected
	}

	t.sent = append(t.sent, line)
	handler := t.handler

	t.mu.Unlock()

	if handler != nil {
		t.Queue(handler(line)...)
	}

	return nil
}

func (t *Transport) SendRaw(b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return mail.ErrNotConnected
	}

	t.raw.Write(b)

	return nil
}

// Receive returns the next queued server line. With nothing queued it blocks until the transport is closed.
func (t *Transport) Receive() (string, error) {
	t.mu.Lock()

	if !t.connected {
		t.mu.Unlock()
		return "", mail.ErrNotConnected
	}

	closed := t.closed

	t.mu.Unlock()

	select {
	case line := <-t.lines:
		return t.count(line), nil

	default:
	}

	select {
	case line := <-t.lines:
		return t.count(line), nil

	case <-closed:
		return "", &mail.TransportError{Op: "read", Err: io.EOF}
	}
}

func (t *Transport) StartTLS(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return mail.ErrNotConnected
	}

	t.tls = true

	return nil
}

func (t *Transport) BytesReceived() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.received
}

func (t *Transport) Host() string {
	return "fake.example.com"
}

// Queue appends server lines to be received.
func (t *Transport) Queue(lines ...string) {
	for _, line := range lines {
		t.lines <- line
	}
}

// Sent returns every command line sent so far.
func (t *Transport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.sent...)
}

// Raw returns everything written with SendRaw.
func (t *Transport) Raw() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.raw.String()
}

// Opens returns how many times the transport was opened.
func (t *Transport) Opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.opens
}

func (t *Transport) IsTLS() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tls
}

func (t *Transport) count(line string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.received += int64(len(line) + 2)

	return line
}

func (t *Transport) drain() {
	for {
		select {
		case <-t.lines:
		default:
			return
		}
	}
}
