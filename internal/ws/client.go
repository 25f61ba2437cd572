package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	sendBufferSize = 256
)

// Client is one live realtime connection. It implements room.Subscriber:
// broadcasts are queued on an ordered buffer that the write pump drains, so
// events from a single publisher reach the peer in publish order.
type Client struct {
	id       string
	userID   string
	userName string

	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	closed   bool
	document string // current document id, "" before join_room
}

func NewClient(conn *websocket.Conn, id, userID, userName string) *Client {
	return &Client{
		id:       id,
		userID:   userID,
		userName: userName,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Deliver queues data for the peer without blocking. A full buffer drops
// the event: delivery is best-effort and the peer is probably stalled.
func (c *Client) Deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close marks the client closed and closes the send channel so the write
// pump terminates.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) documentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.document
}

func (c *Client) setDocumentID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.document = id
}
