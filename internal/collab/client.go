package collab

import "sync"

// Client is one connected peer's roster membership and outbound mailbox.
// The transport itself (reading/writing frames) lives behind the Conn
// interface so Room never touches a network socket directly.
type Client struct {
	ID   string
	Conn Conn

	// Send is the bounded per-peer outbound queue. Matches the teacher's
	// Client.Send capacity exactly; once it is full, each new message for a
	// slow consumer is dropped rather than disconnecting the peer or
	// blocking the broadcaster.
	Send chan []byte

	room *Room

	closeOnce sync.Once
}

// Conn is the transport contract a Client is driven over. internal/wsconn
// implements it for gorilla/websocket; tests use an in-memory fake.
type Conn interface {
	ReadMessage() ([]byte, error)
	Send([]byte) error
	Close() error
}

func newClient(id string, conn Conn) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
}

// enqueue attempts to queue data for delivery, dropping it if the client's
// mailbox is full instead of blocking the broadcaster or the room loop.
func (c *Client) enqueue(data []byte) (dropped bool) {
	select {
	case c.Send <- data:
		return false
	default:
		return true
	}
}

// close closes the Send channel exactly once, signalling the write pump to
// stop after draining whatever remains queued.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}
