// Package wsconn adapts a gorilla/websocket connection to the plain byte-
// message Conn interface internal/collab and internal/provider drive,
// carrying over the teacher's deadline/ping/pong plumbing from its
// readPump/writePump pair.
package wsconn

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// Upgrader upgrades an HTTP request to a WebSocket connection, allowing any
// origin. Authorization and origin checks belong to a layer above this
// package, per the sync core's contract.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn is the minimal byte-message transport internal/collab and
// internal/provider depend on.
type Conn interface {
	// ReadMessage blocks for the next binary or text message, or returns an
	// error once the connection is closed or a read deadline is exceeded
	// without a pong.
	ReadMessage() ([]byte, error)
	// Send writes a binary message synchronously and may block until the
	// write completes or its deadline passes: callers that need drop-if-full
	// semantics wrap this themselves, same as the teacher's per-client Send
	// channel.
	Send([]byte) error
	Close() error
}

// WS wraps *websocket.Conn, running its own ping ticker so that idle
// connections are detected even while ReadMessage is blocked.
type WS struct {
	conn *websocket.Conn
	done chan struct{}
}

// New wraps conn, installs read deadline/pong handling, and starts the ping
// ticker goroutine. Callers must call Close when done.
func New(conn *websocket.Conn) *WS {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	w := &WS{conn: conn, done: make(chan struct{})}
	go w.pingLoop()
	return w
}

func (w *WS) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadMessage reads the next binary or text message's payload, skipping
// control frames gorilla/websocket already handles internally.
func (w *WS) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

// Send writes a binary message, applying the teacher's write deadline.
func (w *WS) Send(data []byte) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close stops the ping loop and closes the underlying connection.
func (w *WS) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.conn.Close()
}

var _ Conn = (*WS)(nil)
