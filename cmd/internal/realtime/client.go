package realtime

import (
	"sync"

	v1 "plume/shared/contracts/realtime/v1"
)

// Conn represents one connected websocket client.
//
// Design notes:
// - Send is intentionally NOT closed by the server to avoid panics from concurrent emitters.
// - done is used to signal goroutines to stop.
// - Close is idempotent.
// - UserID is set once, by Bind, when the connection authenticates.
type Conn struct {
	ID     string
	Send   chan v1.Envelope
	userID string

	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn constructs a Conn with a bounded send queue.
func NewConn(id string, sendQueueSize int) *Conn {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Conn{
		ID:   id,
		Send: make(chan v1.Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Bind attaches the authenticated user to the connection. First bind wins;
// re-authentication on a live connection is a protocol error handled by the
// gateway before this point.
func (c *Conn) Bind(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == "" {
		c.userID = userID
	}
}

// UserID returns the bound user, or "" before authentication.
func (c *Conn) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Done returns a channel that is closed when the connection is shutting down.
func (c *Conn) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the connection goroutines to stop (idempotent).
// It does NOT close Send to keep emits safe under concurrency.
func (c *Conn) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
