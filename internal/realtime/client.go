package realtime

import "sync"

// Client represents one connected push channel session.
//
// Send is never closed by the server so a concurrent broadcaster cannot
// panic on a closed channel; done signals shutdown instead.  Close is
// idempotent.
type Client struct {
	SessionID string
	Send      chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close signals the client to stop.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
