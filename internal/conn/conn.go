// Package conn wraps client connections so they can count traffic and be upgraded to TLS in place.
package conn

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
)

// Conn is a client connection that counts the bytes it transfers. Counting happens below TLS, so handshakes and
// record overhead are included.
type Conn struct {
	mu sync.RWMutex
	c  net.Conn

	raw *counter
}

// counter counts the bytes moving through the underlying connection.
type counter struct {
	net.Conn

	received atomic.Int64
	sent     atomic.Int64
}

func (c *counter) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)

	c.received.Add(int64(n))

	return n, err
}

func (c *counter) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)

	c.sent.Add(int64(n))

	return n, err
}

// Dial connects to addr. With a TLS config the connection is secured immediately.
func Dial(ctx context.Context, addr string, config *tls.Config) (*Conn, error) {
	var dialer net.Dialer

	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c := New(raw)

	if config != nil {
		if err := c.StartTLS(ctx, config); err != nil {
			_ = raw.Close()
			return nil, err
		}
	}

	return c, nil
}

func New(c net.Conn) *Conn {
	raw := &counter{Conn: c}

	return &Conn{c: raw, raw: raw}
}

// Read implements the io.Reader interface.
func (c *Conn) Read(b []byte) (int, error) {
	return c.conn().Read(b)
}

// Write implements the io.Writer interface.
func (c *Conn) Write(b []byte) (int, error) {
	return c.conn().Write(b)
}

func (c *Conn) Close() error {
	return c.conn().Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn().RemoteAddr()
}

// StartTLS performs a client handshake over the current connection and continues over TLS.
func (c *Conn) StartTLS(ctx context.Context, config *tls.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tlsConn := tls.Client(c.c, config)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return err
	}

	c.c = tlsConn

	return nil
}

// IsTLS reports whether the connection has been secured.
func (c *Conn) IsTLS() bool {
	_, ok := c.conn().(*tls.Conn)

	return ok
}

func (c *Conn) BytesReceived() int64 {
	return c.raw.received.Load()
}

func (c *Conn) BytesSent() int64 {
	return c.raw.sent.Load()
}

func (c *Conn) conn() net.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.c
}
