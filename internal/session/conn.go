// Package session implements the connection registry and session manager:
// per-connection mutable state, token issuance, idle expiry and the
// single-active-session rule. Writes are serialized with a per-connection
// send mutex rather than a buffering goroutine, since this protocol's
// replies and pushes are small and synchronous.
package session

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"

	"github.com/chatline/linechatd/internal/types"
)

var connCounter uint64

// Conn wraps a live TCP connection with the state the protocol mutates on
// it: the bound session token (if any) and the current chat focus. All
// writes to the connection are serialized by sendMu so replies and pushes
// never interleave.
type Conn struct {
	ID  uint64
	Raw net.Conn

	sendMu sync.Mutex
	w      *bufio.Writer

	mu    sync.Mutex
	token string
	focus types.ChatFocus
}

// NewConn wraps raw in a Conn ready for use.
func NewConn(raw net.Conn) *Conn {
	return &Conn{
		ID:  atomic.AddUint64(&connCounter, 1),
		Raw: raw,
		w:   bufio.NewWriter(raw),
	}
}

// WriteLine writes s terminated by CRLF under the send mutex.
func (c *Conn) WriteLine(s string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if _, err := c.w.WriteString(s); err != nil {
		return err
	}
	if _, err := c.w.WriteString("\r\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.Raw.Close()
}

func (c *Conn) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the session token currently bound to this connection, or ""
// if unauthenticated.
func (c *Conn) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Conn) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Focus returns the connection's current ChatFocus.
func (c *Conn) Focus() types.ChatFocus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus
}

// SetFocus replaces the connection's ChatFocus, returning the previous value.
func (c *Conn) SetFocus(f types.ChatFocus) types.ChatFocus {
	c.mu.Lock()
	prev := c.focus
	c.focus = f
	c.mu.Unlock()
	return prev
}

// ClearFocus resets the connection's ChatFocus to none, returning the
// previous value.
func (c *Conn) ClearFocus() types.ChatFocus {
	return c.SetFocus(types.ChatFocus{})
}
