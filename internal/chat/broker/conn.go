package broker

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Conn - network connection shared by the reader and the writer of one peer.
// net.Conn supports concurrent Read and Write, so both sides use it without coordination.
// The socket is closed when the last holder releases it, or at once with Close.
type Conn struct {
	net.Conn
	// ID - identifies the connection in logs.
	ID uuid.UUID

	refs     int32
	once     sync.Once
	closeErr error
}

// NewConn - wraps c, the caller holds the first reference.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		Conn: c,
		ID:   uuid.New(),
		refs: 1,
	}
}

// Acquire - registers one more holder of the connection.
func (c *Conn) Acquire() {
	atomic.AddInt32(&c.refs, 1)
}

// Release - unregisters a holder and closes the socket when nobody holds it.
func (c *Conn) Release() error {
	if atomic.AddInt32(&c.refs, -1) > 0 {
		return nil
	}
	return c.Close()
}

// Close - closes the socket regardless of holders. Safe to call many times.
// Blocked Read and Write calls of other holders return with error.
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}

// String - connection label for logs.
func (c *Conn) String() string {
	if addr := c.RemoteAddr(); addr != nil {
		return c.ID.String() + "@" + addr.String()
	}
	return c.ID.String()
}
